package dto

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// DraftResponse payload.
type DraftResponse struct {
	ID        string             `json:"id"`
	TicketID  int64              `json:"ticket_id"`
	Text      string             `json:"text"`
	Status    domain.DraftStatus `json:"status"`
	QAResult  *QAResultResponse  `json:"qa_result,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// QAResultResponse mirrors an automated draft evaluation.
type QAResultResponse struct {
	Score    int              `json:"score"`
	Overall  domain.QAOverall `json:"overall"`
	Criteria map[string]bool  `json:"criteria"`
	Fixes    []string         `json:"fixes"`
}

// CasebookEntryResponse payload.
type CasebookEntryResponse struct {
	ID                   string    `json:"id"`
	DraftID              string    `json:"draft_id"`
	TicketID             int64     `json:"ticket_id"`
	Subject              string    `json:"subject"`
	ApprovedResponseText string    `json:"approved_response_text"`
	Keywords             []string  `json:"keywords"`
	CreatedAt            time.Time `json:"created_at"`
}

// PromoteResponse bundles the approved draft with its new casebook entry.
type PromoteResponse struct {
	Draft DraftResponse         `json:"draft"`
	Entry CasebookEntryResponse `json:"entry"`
}
