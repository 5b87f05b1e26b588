package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/inspect-cli/internal/model"
	"github.com/sells-group/inspect-cli/pkg/anthropic"
)

const synthesisSystemText = `You are a home-repair cost analyst. You are given one inspection finding and web search results about repair costs. Return a single JSON object with exactly these keys:
{"summary": "<2-3 sentence repair summary>", "estimatedCostRange": "<e.g. $500 - $2,000>", "contractorType": "<trade needed, e.g. roofing contractor>", "confidence": "<High|Medium|Low>", "severity": "<High|Medium|Low>", "localContractors": [{"name": "<company>", "url": "<website or empty>"}]}
Base the cost range on the search results where possible. Return only the JSON object, no other text.`

// searchOutcome is the Phase 1 result for one finding, success or failure.
type searchOutcome struct {
	finding model.Finding
	results []model.SearchResult
	err     error
}

// synthesisResponse is the validated shape of the per-finding synthesis reply.
type synthesisResponse struct {
	Summary            string             `json:"summary"`
	EstimatedCostRange string             `json:"estimatedCostRange"`
	ContractorType     string             `json:"contractorType"`
	Confidence         string             `json:"confidence"`
	Severity           string             `json:"severity"`
	LocalContractors   []model.Contractor `json:"localContractors"`
}

// researchFindings obtains a cost/severity judgment for every finding via
// two rate-limited batch phases: retrieval search, then LLM synthesis. The
// output contract is exactly one ResearchResult per finding regardless of
// how many individual calls fail.
func (p *Pipeline) researchFindings(ctx context.Context, st *State, sink Sink) {
	findings := st.Findings

	// Degraded mode: no retrieval credential means no network calls at all.
	if p.search == nil || p.cfg.Jina.Key == "" {
		st.MarkDegraded()
		p.emit(st, sink, "Research skipped: search service not configured")
		for _, f := range findings {
			r := degradedResult(f, "Research skipped: search service not configured")
			r.Confidence = model.ConfidenceLow
			st.MergeResearch(r)
		}
		return
	}

	p.emit(st, sink, fmt.Sprintf("Researching %d findings", len(findings)))

	outcomes := p.runSearchPhase(ctx, st, sink, findings)
	p.runSynthesisPhase(ctx, st, sink, outcomes)

	// Cardinality backstop: every finding ends with exactly one entry.
	// MergeResearch is insert-only, so this is a no-op for findings whose
	// synthesis task already reported.
	for _, f := range findings {
		st.MergeResearch(degradedResult(f, "Research did not complete for this finding"))
	}

	p.emit(st, sink, "Research complete")
}

// runSearchPhase executes one retrieval query per finding in fixed-size
// batches. Queries within a batch run concurrently; batches run sequentially
// with the configured delay between them, matching the retrieval service's
// fixed-window rate ceiling.
func (p *Pipeline) runSearchPhase(ctx context.Context, st *State, sink Sink, findings []model.Finding) []searchOutcome {
	outcomes := make([]searchOutcome, len(findings))
	batchSize := p.cfg.Research.SearchBatchSize
	totalBatches := batchCount(len(findings), batchSize)

	p.runBatches(ctx, len(findings), batchSize, p.cfg.Research.SearchBatchDelay(),
		func(batch int) {
			p.emit(st, sink, fmt.Sprintf("Search batch %d/%d", batch+1, totalBatches))
		},
		func(batch int) {
			p.emit(st, sink, fmt.Sprintf("Search batch %d/%d complete", batch+1, totalBatches))
		},
		func(ctx context.Context, i int) {
			f := findings[i]
			p.emit(st, sink, fmt.Sprintf("Searching cost data for %s", f.ID))

			query := fmt.Sprintf("cost to repair %s in %s", f.Description, st.PropertyAddress)

			callCtx, cancel := context.WithTimeout(ctx, p.cfg.Research.CallTimeout())
			defer cancel()

			resp, err := p.search.Search(callCtx, query)
			if err != nil {
				zap.L().Warn("research: search failed",
					zap.String("run_id", st.RunID),
					zap.String("finding", f.ID),
					zap.Error(err),
				)
				outcomes[i] = searchOutcome{finding: f, err: err}
				st.MarkDegraded()
				p.emit(st, sink, fmt.Sprintf("Search failed for %s", f.ID))
				return
			}

			results := make([]model.SearchResult, 0, len(resp.Data))
			for _, r := range resp.Data {
				results = append(results, model.SearchResult{
					Title:   r.Title,
					Link:    r.URL,
					Snippet: r.Description,
				})
			}
			outcomes[i] = searchOutcome{finding: f, results: results}
			p.emit(st, sink, fmt.Sprintf("Search complete for %s (%d results)", f.ID, len(results)))
		})

	return outcomes
}

// runSynthesisPhase calls the inference service once per search outcome
// (success or failure) to obtain the structured judgment. The inference
// service tolerates higher concurrency than retrieval, so this phase runs
// wider batches with shorter delays.
func (p *Pipeline) runSynthesisPhase(ctx context.Context, st *State, sink Sink, outcomes []searchOutcome) {
	batchSize := p.cfg.Research.SynthesisBatchSize
	totalBatches := batchCount(len(outcomes), batchSize)

	p.runBatches(ctx, len(outcomes), batchSize, p.cfg.Research.SynthesisBatchDelay(),
		func(batch int) {
			p.emit(st, sink, fmt.Sprintf("Synthesis batch %d/%d", batch+1, totalBatches))
		},
		func(batch int) {
			p.emit(st, sink, fmt.Sprintf("Synthesis batch %d/%d complete", batch+1, totalBatches))
		},
		func(ctx context.Context, i int) {
			out := outcomes[i]
			result := p.synthesizeFinding(ctx, st, out)
			st.MergeResearch(result)
			p.emit(st, sink, fmt.Sprintf("Estimated %s: %s", out.finding.ID, result.EstimatedCostRange))
		})
}

// synthesizeFinding builds the synthesis prompt for one finding and parses
// the judgment. Any fault yields a degraded result instead of an error.
func (p *Pipeline) synthesizeFinding(ctx context.Context, st *State, out searchOutcome) model.ResearchResult {
	f := out.finding

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Finding: %s\n", f.Description)
	if f.Context != "" {
		fmt.Fprintf(&prompt, "Report excerpt: %s\n", f.Context)
	}
	fmt.Fprintf(&prompt, "Property: %s\n\n", st.PropertyAddress)

	if out.err != nil {
		prompt.WriteString("Web search was unavailable for this finding; estimate from general knowledge and say so in the summary.\n")
	} else {
		prompt.WriteString("Search results:\n")
		prompt.WriteString(formatSnippets(out.results, p.cfg.Research.SnippetCharBudget))
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Research.CallTimeout())
	defer cancel()

	resp, err := p.ai.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.Model,
		MaxTokens: int64(p.cfg.Anthropic.MaxTokens),
		System:    synthesisSystemText,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt.String()},
		},
	})
	if err != nil {
		zap.L().Warn("research: synthesis failed",
			zap.String("run_id", st.RunID),
			zap.String("finding", f.ID),
			zap.Error(err),
		)
		st.MarkDegraded()
		return degradedResult(f, "Cost synthesis failed: "+err.Error())
	}
	resp.Usage.LogCost(p.cfg.Anthropic.Model, "synthesize")

	var parsed synthesisResponse
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &parsed); err != nil {
		zap.L().Warn("research: failed to parse synthesis JSON",
			zap.String("finding", f.ID),
			zap.Error(err),
		)
		st.MarkDegraded()
		return degradedResult(f, "Cost synthesis returned an unreadable response")
	}

	result := model.ResearchResult{
		FindingID:          f.ID,
		Summary:            parsed.Summary,
		EstimatedCostRange: parsed.EstimatedCostRange,
		Confidence:         model.ParseConfidence(parsed.Confidence),
		ContractorType:     parsed.ContractorType,
		Severity:           model.ParseSeverity(parsed.Severity),
		LocalContractors:   parsed.LocalContractors,
	}
	for _, r := range out.results {
		result.Sources = append(result.Sources, r.Link)
	}

	if len(result.LocalContractors) == 0 {
		result.LocalContractors = p.lookupContractors(ctx, st, result.ContractorType)
	}

	return result
}

// lookupContractors queries Google Places for local contractors of the given
// trade. Optional enrichment: any failure returns nil.
func (p *Pipeline) lookupContractors(ctx context.Context, st *State, contractorType string) []model.Contractor {
	if p.places == nil || contractorType == "" || st.PropertyAddress == notSpecified {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Research.CallTimeout())
	defer cancel()

	resp, err := p.places.TextSearch(callCtx, fmt.Sprintf("%s near %s", contractorType, st.PropertyAddress))
	if err != nil {
		zap.L().Warn("research: contractor lookup failed",
			zap.String("run_id", st.RunID),
			zap.String("trade", contractorType),
			zap.Error(err),
		)
		return nil
	}

	maxN := p.cfg.Research.MaxContractors
	var out []model.Contractor
	for _, place := range resp.Places {
		if place.DisplayName.Text == "" {
			continue
		}
		out = append(out, model.Contractor{
			Name: place.DisplayName.Text,
			URL:  place.WebsiteURI,
		})
		if len(out) >= maxN {
			break
		}
	}
	return out
}

// runBatches executes n tasks in fixed-size batches. Tasks within a batch
// run concurrently; the next batch starts only after every task in the
// current batch has settled and the inter-batch delay has elapsed. The delay
// is a fixed window, not an in-flight cap: wait for all, then sleep, then
// continue.
func (p *Pipeline) runBatches(ctx context.Context, n, size int, delay time.Duration, onBatch, afterBatch func(batch int), task func(ctx context.Context, i int)) {
	if size <= 0 {
		size = 1
	}
	batch := 0
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		if onBatch != nil {
			onBatch(batch)
		}

		g := new(errgroup.Group)
		for i := start; i < end; i++ {
			g.Go(func() error {
				task(ctx, i)
				return nil
			})
		}
		_ = g.Wait()

		if afterBatch != nil {
			afterBatch(batch)
		}
		if end < n {
			p.sleep(delay)
		}
		batch++
	}
}

// batchCount returns how many batches n items form at the given batch size.
func batchCount(n, size int) int {
	if size <= 0 {
		size = 1
	}
	return (n + size - 1) / size
}

// degradedResult is the placeholder substituted when research for a finding
// could not complete: low confidence, unknown severity, no sources.
func degradedResult(f model.Finding, summary string) model.ResearchResult {
	return model.ResearchResult{
		FindingID:          f.ID,
		Summary:            summary,
		EstimatedCostRange: "Unknown",
		Confidence:         model.ConfidenceLow,
		Severity:           model.SeverityUnknown,
	}
}

// formatSnippets renders search results as prompt context within a character
// budget.
func formatSnippets(results []model.SearchResult, budget int) string {
	var b strings.Builder
	for _, r := range results {
		entry := fmt.Sprintf("- %s (%s): %s\n", r.Title, r.Link, r.Snippet)
		if b.Len()+len(entry) > budget {
			remaining := budget - b.Len()
			if remaining > 0 {
				b.WriteString(entry[:remaining])
			}
			break
		}
		b.WriteString(entry)
	}
	if b.Len() == 0 {
		return "(no results)\n"
	}
	return b.String()
}
