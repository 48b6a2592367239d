package domain

import "time"

// DraftStatus enumerates review states for a generated reply.
type DraftStatus string

const (
	DraftStatusPendingReview         DraftStatus = "PENDING_REVIEW"
	DraftStatusApproved              DraftStatus = "APPROVED"
	DraftStatusRejected              DraftStatus = "REJECTED"
	DraftStatusNeedsEdit             DraftStatus = "NEEDS_EDIT"
	DraftStatusEscalationRecommended DraftStatus = "ESCALATION_RECOMMENDED"
)

// QAOverall is the pass/fail verdict of a draft quality check.
type QAOverall string

const (
	QAPass QAOverall = "PASS"
	QAFail QAOverall = "FAIL"
)

// QACriterion records one named quality check.
type QACriterion struct {
	Pass bool `json:"pass"`
}

// QAResult is an optional automated quality evaluation of a draft.
type QAResult struct {
	Score    int                    `json:"score"`
	Overall  QAOverall              `json:"overall"`
	Criteria map[string]QACriterion `json:"criteria,omitempty"`
	Fixes    []string               `json:"fixes,omitempty"`
}

// Draft is a generated candidate reply to a ticket, pending human review.
// Status transitions are the only mutation after creation.
type Draft struct {
	ID        string      `json:"id"`
	TicketID  int64       `json:"ticket_id"`
	Text      string      `json:"text"`
	Status    DraftStatus `json:"status"`
	QAResult  *QAResult   `json:"qa_result,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
