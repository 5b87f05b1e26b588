package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/inspect-cli/internal/cost"
	"github.com/sells-group/inspect-cli/internal/model"
)

const reportDisclaimer = `Cost estimates are based on automated web research and are approximate. Obtain quotes from licensed local contractors before making repair decisions.`

// reportEntry pairs a finding with its research result for rendering.
type reportEntry struct {
	finding  model.Finding
	research model.ResearchResult
}

// severityBucket aggregates the entries and cost subtotal for one severity.
type severityBucket struct {
	severity model.Severity
	entries  []reportEntry
	subtotal cost.Range
	costed   int
}

// CompileReport renders the final markdown report from findings and their
// research results. Pure function of its inputs: no I/O, no clock, no
// randomness, so identical inputs always produce an identical report.
func CompileReport(propertyAddress, inspectionDate string, findings []model.Finding, research map[string]model.ResearchResult) string {
	if len(findings) == 0 {
		return ""
	}

	buckets := bucketBySeverity(findings, research)

	var total cost.Range
	var costed, uncosted int
	for _, b := range buckets {
		total.Add(b.subtotal)
		costed += b.costed
		uncosted += len(b.entries) - b.costed
	}

	var b strings.Builder
	b.WriteString("# Inspection Repair Cost Report\n\n")
	fmt.Fprintf(&b, "**Property:** %s\n", propertyAddress)
	fmt.Fprintf(&b, "**Inspection date:** %s\n", inspectionDate)
	fmt.Fprintf(&b, "**Findings analyzed:** %d\n\n", len(findings))

	b.WriteString("## Cost Summary\n\n")
	if costed == 0 {
		b.WriteString("The total repair cost could not be determined: no finding produced a parsable estimate.\n\n")
	} else {
		fmt.Fprintf(&b, "**Estimated total:** %s\n\n", formatRange(total))
		fmt.Fprintf(&b, "Based on %d of %d findings with parsable estimates", costed, len(findings))
		if uncosted > 0 {
			fmt.Fprintf(&b, "; %d findings have no usable estimate and are excluded from the total", uncosted)
		}
		b.WriteString(".\n\n")

		b.WriteString("| Severity | Findings | Estimated Subtotal |\n")
		b.WriteString("|----------|----------|--------------------|\n")
		for _, bucket := range buckets {
			sub := "—"
			if bucket.costed > 0 {
				sub = formatRange(bucket.subtotal)
			}
			fmt.Fprintf(&b, "| %s | %d | %s |\n", bucket.severity, len(bucket.entries), sub)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Findings\n")
	for _, bucket := range buckets {
		fmt.Fprintf(&b, "\n### %s Severity\n", bucket.severity)
		for _, e := range bucket.entries {
			writeFindingSection(&b, e)
		}
	}

	b.WriteString("\n---\n\n")
	b.WriteString(reportDisclaimer)
	b.WriteString("\n")
	writeSourceAttribution(&b, findings, research)
	return b.String()
}

// writeSourceAttribution renders the finding → sources table. Findings whose
// research carried no sources are omitted; when none did, the table is
// omitted entirely.
func writeSourceAttribution(b *strings.Builder, findings []model.Finding, research map[string]model.ResearchResult) {
	var rows [][2]string
	for _, f := range findings {
		r, ok := research[f.ID]
		if !ok || len(r.Sources) == 0 {
			continue
		}
		rows = append(rows, [2]string{f.ID, strings.Join(r.Sources, ", ")})
	}
	if len(rows) == 0 {
		return
	}

	b.WriteString("\n## Sources\n\n")
	b.WriteString("| Finding | Sources |\n")
	b.WriteString("|---------|----------|\n")
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", row[0], row[1])
	}
}

// bucketBySeverity groups findings by researched severity, ordered High,
// Medium, Low, Unknown. Within a bucket the findings keep their extraction
// order, so the report is stable across runs with identical inputs.
func bucketBySeverity(findings []model.Finding, research map[string]model.ResearchResult) []severityBucket {
	byRank := make(map[model.Severity]*severityBucket)
	for _, f := range findings {
		r, ok := research[f.ID]
		if !ok {
			r = model.ResearchResult{
				FindingID:          f.ID,
				Summary:            "No research result available",
				EstimatedCostRange: "Unknown",
				Confidence:         model.ConfidenceLow,
				Severity:           model.SeverityUnknown,
			}
		}

		bucket, exists := byRank[r.Severity]
		if !exists {
			bucket = &severityBucket{severity: r.Severity}
			byRank[r.Severity] = bucket
		}
		bucket.entries = append(bucket.entries, reportEntry{finding: f, research: r})
		if rng, ok := cost.ParseRange(r.EstimatedCostRange); ok {
			bucket.subtotal.Add(rng)
			bucket.costed++
		}
	}

	out := make([]severityBucket, 0, len(byRank))
	for _, bucket := range byRank {
		out = append(out, *bucket)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return model.SeverityRank(out[i].severity) < model.SeverityRank(out[j].severity)
	})
	return out
}

// writeFindingSection renders one finding's detail block.
func writeFindingSection(b *strings.Builder, e reportEntry) {
	f, r := e.finding, e.research

	fmt.Fprintf(b, "\n#### %s\n\n", f.Description)
	fmt.Fprintf(b, "- **Severity:** %s\n", r.Severity)
	fmt.Fprintf(b, "- **Estimated cost:** %s\n", r.EstimatedCostRange)
	fmt.Fprintf(b, "- **Confidence:** %s\n", r.Confidence)
	if r.ContractorType != "" {
		fmt.Fprintf(b, "- **Contractor needed:** %s\n", r.ContractorType)
	}
	if r.Summary != "" {
		fmt.Fprintf(b, "\n%s\n", r.Summary)
	}
	if f.Context != "" {
		fmt.Fprintf(b, "\n> %s\n", f.Context)
	}

	if len(r.LocalContractors) > 0 {
		b.WriteString("\n**Local contractors:**\n\n")
		b.WriteString("| Name | Website |\n")
		b.WriteString("|------|----------|\n")
		for _, c := range r.LocalContractors {
			site := "—"
			if c.URL != "" {
				site = c.URL
			}
			fmt.Fprintf(b, "| %s | %s |\n", c.Name, site)
		}
	}

}

// formatRange renders a cost range as "$low - $high" with thousands grouping.
func formatRange(r cost.Range) string {
	return fmt.Sprintf("$%s - $%s", formatDollars(r.Low), formatDollars(r.High))
}

// formatDollars renders a dollar amount with comma grouping and no cents.
func formatDollars(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
