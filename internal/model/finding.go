package model

// Finding is a single discrete issue extracted from an inspection document.
// The ID is a stable slug, unique within a run, assigned by the extraction
// model (e.g. "roof-shingle-damage-1").
type Finding struct {
	ID          string `json:"issueId"`
	Description string `json:"description"`
	Context     string `json:"context"`
}

// Confidence grades how well-supported a research result is.
type Confidence string

// Confidence levels.
const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Severity grades how urgent a finding is.
type Severity string

// Severity levels. Unknown marks findings whose synthesis call failed or
// returned an unrecognized value.
const (
	SeverityHigh    Severity = "High"
	SeverityMedium  Severity = "Medium"
	SeverityLow     Severity = "Low"
	SeverityUnknown Severity = "Unknown"
)

// ParseConfidence normalizes a model-emitted confidence string, defaulting
// to Low for anything unrecognized.
func ParseConfidence(s string) Confidence {
	switch s {
	case "High", "high":
		return ConfidenceHigh
	case "Medium", "medium":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ParseSeverity normalizes a model-emitted severity string, defaulting to
// Unknown for anything unrecognized.
func ParseSeverity(s string) Severity {
	switch s {
	case "High", "high":
		return SeverityHigh
	case "Medium", "medium":
		return SeverityMedium
	case "Low", "low":
		return SeverityLow
	default:
		return SeverityUnknown
	}
}

// SeverityRank orders severities for report sorting: High first, Unknown last.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

// Contractor is a local contractor suggestion attached to a research result.
type Contractor struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// ResearchResult is the synthesized cost/severity judgment for one finding.
type ResearchResult struct {
	FindingID          string       `json:"finding_id"`
	Summary            string       `json:"summary"`
	EstimatedCostRange string       `json:"estimatedCostRange"`
	Confidence         Confidence   `json:"confidence"`
	ContractorType     string       `json:"contractorType"`
	Severity           Severity     `json:"severity"`
	Sources            []string     `json:"sources,omitempty"`
	LocalContractors   []Contractor `json:"localContractors,omitempty"`
}

// SearchResult is one retrieval hit for a finding's cost query.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}
