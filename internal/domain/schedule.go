package domain

import "time"

// BatchPhase selects how far a batch run takes each ticket.
type BatchPhase string

const (
	BatchClassifyOnly     BatchPhase = "CLASSIFY_ONLY"
	BatchClassifyAndDraft BatchPhase = "CLASSIFY_AND_DRAFT"
)

// ScheduleRun is one append-only audit record of a batch execution.
type ScheduleRun struct {
	ID               string     `json:"id"`
	Phase            BatchPhase `json:"phase"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       time.Time  `json:"finished_at"`
	TicketsProcessed int        `json:"tickets_processed"`
	DraftsGenerated  int        `json:"drafts_generated"`
	Errors           []string   `json:"errors,omitempty"`
}
