package pipeline

import (
	"sync"

	"github.com/sells-group/inspect-cli/internal/model"
)

// notSpecified is the default for document metadata the extraction model
// could not determine.
const notSpecified = "not specified"

// State is the accumulating record threaded through all pipeline stages.
// Document and Findings are written once by their owning stage and treated
// as immutable afterward. The research map and the progress log are the only
// fields touched by concurrently-running per-finding tasks; both go through
// the mutex-guarded merge/append methods below.
type State struct {
	RunID           string
	Document        []byte
	ExtractedText   string
	PropertyAddress string
	InspectionDate  string
	Findings        []model.Finding
	FinalReport     string

	mu       sync.Mutex
	research map[string]model.ResearchResult
	log      []string
	degraded bool
}

// NewState creates the per-run state for a document buffer.
func NewState(runID string, doc []byte) *State {
	return &State{
		RunID:           runID,
		Document:        doc,
		PropertyAddress: notSpecified,
		InspectionDate:  notSpecified,
		research:        make(map[string]model.ResearchResult),
	}
}

// AppendLog appends one status line to the progress log. The log is
// append-only; entries are never reordered or truncated.
func (s *State) AppendLog(msg string) {
	s.mu.Lock()
	s.log = append(s.log, msg)
	s.mu.Unlock()
}

// ProgressLog returns a copy of the progress log.
func (s *State) ProgressLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.log))
	copy(out, s.log)
	return out
}

// MarkDegraded records that at least one research step fell back to a
// placeholder result. The run still completes; the persisted status reflects
// the reduced fidelity.
func (s *State) MarkDegraded() {
	s.mu.Lock()
	s.degraded = true
	s.mu.Unlock()
}

// Degraded reports whether any research step fell back to a placeholder.
func (s *State) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// MergeResearch inserts the result for a finding. Insert-only: the first
// write for a finding ID wins, so concurrent tasks never overwrite each
// other's entries.
func (s *State) MergeResearch(r model.ResearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.research[r.FindingID]; exists {
		return
	}
	s.research[r.FindingID] = r
}

// Research returns a copy of the finding → result map.
func (s *State) Research() map[string]model.ResearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.ResearchResult, len(s.research))
	for k, v := range s.research {
		out[k] = v
	}
	return out
}
