package events

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketsIngested    EventType = "tickets_ingested"
	EventAnalysisRecorded   EventType = "analysis_recorded"
	EventDraftCreated       EventType = "draft_created"
	EventDraftStatusChanged EventType = "draft_status_changed"
	EventDraftPromoted      EventType = "draft_promoted"
	EventDraftDeleted       EventType = "draft_deleted"
	EventBatchRunFinished   EventType = "batch_run_finished"
)

// Event represents a domain event emitted by the pipeline.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id,omitempty"`
	Actor     string      `json:"actor,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketsIngestedPayload payload.
type TicketsIngestedPayload struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// AnalysisRecordedPayload payload.
type AnalysisRecordedPayload struct {
	EscalationType domain.EscalationType `json:"escalation_type"`
	UrgencyScore   int                   `json:"urgency_score"`
	RoutedAgentID  string                `json:"routed_agent_id,omitempty"`
}

// DraftCreatedPayload payload.
type DraftCreatedPayload struct {
	DraftID string             `json:"draft_id"`
	Status  domain.DraftStatus `json:"status"`
}

// DraftStatusChangedPayload payload.
type DraftStatusChangedPayload struct {
	DraftID   string             `json:"draft_id"`
	OldStatus domain.DraftStatus `json:"old_status"`
	NewStatus domain.DraftStatus `json:"new_status"`
}

// DraftPromotedPayload payload.
type DraftPromotedPayload struct {
	DraftID         string   `json:"draft_id"`
	CasebookEntryID string   `json:"casebook_entry_id"`
	Keywords        []string `json:"keywords"`
}

// DraftDeletedPayload payload.
type DraftDeletedPayload struct {
	DraftID          string `json:"draft_id"`
	CasebookEntryID  string `json:"casebook_entry_id,omitempty"`
	CasebookCascaded bool   `json:"casebook_cascaded"`
}

// BatchRunFinishedPayload payload.
type BatchRunFinishedPayload struct {
	RunID            string            `json:"run_id"`
	Phase            domain.BatchPhase `json:"phase"`
	TicketsProcessed int               `json:"tickets_processed"`
	DraftsGenerated  int               `json:"drafts_generated"`
	ErrorCount       int               `json:"error_count"`
}
