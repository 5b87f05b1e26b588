package model

import "time"

// RunStatus tracks the lifecycle of an analysis run as persisted to the store.
type RunStatus string

// Run statuses.
const (
	RunStatusComplete RunStatus = "complete"
	RunStatusDegraded RunStatus = "degraded"
	RunStatusNoReport RunStatus = "no_report"
)

// ProgressEvent is a single status update streamed to the caller during a
// run. Exactly one event per run has IsComplete set; that event carries the
// final report text (empty when no report was produced).
type ProgressEvent struct {
	Message     string `json:"message"`
	IsComplete  bool   `json:"isComplete"`
	FinalReport string `json:"finalReport,omitempty"`
}

// ReportRecord is the write-only payload handed to the persistence sink when
// a run finishes.
type ReportRecord struct {
	RunID           string    `json:"run_id"`
	FinalReport     string    `json:"final_report"`
	PropertyAddress string    `json:"property_address"`
	InspectionDate  string    `json:"inspection_date"`
	Status          RunStatus `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}
