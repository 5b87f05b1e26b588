package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/inspect-cli/internal/model"
	"github.com/sells-group/inspect-cli/pkg/anthropic"
)

const findingsSystemText = `You are a home-inspection analyst. You are given the plain text of a property inspection report. Return a single JSON object with exactly these keys:
{"property_address": "<address or empty string>", "inspection_date": "<date or empty string>", "issues": [{"issueId": "<short-kebab-case-slug>", "description": "<one-sentence issue description>", "context": "<verbatim supporting excerpt from the report>"}]}
Each issueId must be unique. Report only genuine defects and recommended repairs, not informational notes. Return only the JSON object, no other text.`

// findingsResponse is the validated shape of the finding-extraction reply.
type findingsResponse struct {
	PropertyAddress string          `json:"property_address"`
	InspectionDate  string          `json:"inspection_date"`
	Issues          []model.Finding `json:"issues"`
}

// extractFindings calls the inference service to turn extracted text into a
// structured finding list plus document metadata. Every fault degrades to an
// empty finding list and a progress-log entry; this stage never aborts the
// run.
func (p *Pipeline) extractFindings(ctx context.Context, st *State, sink Sink) {
	if strings.TrimSpace(st.ExtractedText) == "" {
		p.emit(st, sink, "No text to analyze; skipping finding extraction")
		return
	}

	text := truncateText(st.ExtractedText, p.cfg.Extract.MaxDocChars)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Research.CallTimeout())
	defer cancel()

	p.emit(st, sink, "Analyzing report for findings")

	resp, err := p.ai.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.Model,
		MaxTokens: int64(p.cfg.Anthropic.MaxTokens),
		System:    findingsSystemText,
		Messages: []anthropic.Message{
			{Role: "user", Content: "Inspection report text:\n\n" + text},
		},
	})
	if err != nil {
		zap.L().Warn("findings: inference call failed", zap.String("run_id", st.RunID), zap.Error(err))
		p.emit(st, sink, "Finding extraction failed: "+err.Error())
		return
	}
	resp.Usage.LogCost(p.cfg.Anthropic.Model, "extract_findings")

	parsed, ok := parseFindingsResponse(resp.Text())
	if !ok {
		p.emit(st, sink, "Finding extraction returned no usable findings")
		return
	}

	if parsed.PropertyAddress != "" {
		st.PropertyAddress = parsed.PropertyAddress
	}
	if parsed.InspectionDate != "" {
		st.InspectionDate = parsed.InspectionDate
	}
	st.Findings = ensureUniqueIDs(parsed.Issues)

	if len(st.Findings) == 0 {
		p.emit(st, sink, "No issues found in report")
		return
	}
	p.emit(st, sink, fmt.Sprintf("Extracted %d findings", len(st.Findings)))
}

// parseFindingsResponse validates the model reply. The issues array missing
// or malformed is the explicit parse-failure branch: ok=false, caller falls
// back to an empty finding list.
func parseFindingsResponse(text string) (findingsResponse, bool) {
	var parsed findingsResponse
	if err := json.Unmarshal([]byte(cleanJSON(text)), &parsed); err != nil {
		zap.L().Warn("findings: failed to parse response JSON", zap.Error(err))
		return findingsResponse{}, false
	}
	return parsed, true
}

// ensureUniqueIDs drops findings with empty descriptions and rewrites empty
// or duplicate IDs so the identity invariant (unique ID per finding) holds
// regardless of model output.
func ensureUniqueIDs(findings []model.Finding) []model.Finding {
	seen := make(map[string]bool, len(findings))
	out := make([]model.Finding, 0, len(findings))
	for i, f := range findings {
		if strings.TrimSpace(f.Description) == "" {
			continue
		}
		if f.ID == "" || seen[f.ID] {
			// The synthesized ID can itself collide with a model-assigned
			// one, so keep bumping until it is unseen.
			n := i + 1
			f.ID = fmt.Sprintf("finding-%d", n)
			for seen[f.ID] {
				n++
				f.ID = fmt.Sprintf("finding-%d", n)
			}
		}
		seen[f.ID] = true
		out = append(out, f)
	}
	return out
}

// truncateText caps text at max bytes, trimming back to a rune boundary so
// the inference service never receives a split multi-byte sequence.
func truncateText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// cleanJSON strips markdown code fences and surrounding prose from a model
// reply, keeping the outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
