package domain

import "time"

// EscalationType tags which specialist track a ticket belongs to.
type EscalationType string

const (
	EscalationDev     EscalationType = "DEV"
	EscalationTwilio  EscalationType = "TWILIO"
	EscalationBilling EscalationType = "BILLING"
	EscalationFeature EscalationType = "FEATURE"
	EscalationBug     EscalationType = "BUG"
	EscalationSupport EscalationType = "SUPPORT"
)

// ValidEscalationType reports whether s names a known escalation type.
func ValidEscalationType(s EscalationType) bool {
	switch s {
	case EscalationDev, EscalationTwilio, EscalationBilling,
		EscalationFeature, EscalationBug, EscalationSupport:
		return true
	}
	return false
}

// RequiresEscalation reports whether the type must force a newly created
// draft into the escalation-recommended state.
func (e EscalationType) RequiresEscalation() bool {
	return e == EscalationDev || e == EscalationTwilio || e == EscalationBug
}

// AnalysisResult is the classifier's verdict for one ticket, latest-wins.
// A missing result means "not yet triaged"; it is never defaulted.
type AnalysisResult struct {
	TicketID       int64          `json:"ticket_id"`
	EscalationType EscalationType `json:"escalation_type"`
	UrgencyScore   int            `json:"urgency_score"`
	Summary        string         `json:"summary"`
	ActionItems    []string       `json:"action_items"`
	ComputedAt     time.Time      `json:"computed_at"`
}
