package dto

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// TicketSummary response.
type TicketSummary struct {
	ID        int64                 `json:"id"`
	Subject   string                `json:"subject"`
	Requester string                `json:"requester"`
	Status    domain.TicketStatus   `json:"status"`
	Priority  domain.TicketPriority `json:"priority"`
	Tags      []string              `json:"tags"`
	CreatedAt time.Time             `json:"created_at"`
}

// TicketDetailResponse includes the full body plus any recorded analysis,
// the ticket's drafts and similar resolved cases.
type TicketDetailResponse struct {
	TicketSummary
	BodyText       string                `json:"body_text"`
	RequesterEmail string                `json:"requester_email"`
	Analysis       *AnalysisResponse     `json:"analysis,omitempty"`
	Drafts         []DraftResponse       `json:"drafts"`
	SimilarCases   []SimilarCaseResponse `json:"similar_cases"`
}

// AnalysisResponse mirrors a stored classification.
type AnalysisResponse struct {
	EscalationType domain.EscalationType `json:"escalation_type"`
	UrgencyScore   int                   `json:"urgency_score"`
	Summary        string                `json:"summary"`
	ActionItems    []string              `json:"action_items"`
	AssignedAgent  string                `json:"assigned_agent,omitempty"`
}

// RefreshResponse reports the outcome of a helpdesk sync.
type RefreshResponse struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Total     int `json:"total"`
}

// SimilarCaseResponse pairs a casebook entry with its match score.
type SimilarCaseResponse struct {
	EntryID    string    `json:"entry_id"`
	TicketID   int64     `json:"ticket_id"`
	Subject    string    `json:"subject"`
	MatchScore int       `json:"match_score"`
	CreatedAt  time.Time `json:"created_at"`
}
