package domain

import "time"

// TicketStatus enumerates helpdesk lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen              TicketStatus = "OPEN"
	TicketStatusPending           TicketStatus = "PENDING"
	TicketStatusWaitingOnCustomer TicketStatus = "WAITING_ON_CUSTOMER"
	TicketStatusOnHold            TicketStatus = "ON_HOLD"
	TicketStatusResolved          TicketStatus = "RESOLVED"
	TicketStatusClosed            TicketStatus = "CLOSED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Requester identifies the customer behind a ticket.
type Requester struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Ticket is a support request imported from the external helpdesk. ID is the
// helpdesk's identity and is immutable; only Status and Priority are
// overwritten on re-fetch.
type Ticket struct {
	ID        int64          `json:"id"`
	Subject   string         `json:"subject"`
	BodyText  string         `json:"body_text"`
	Requester Requester      `json:"requester"`
	Status    TicketStatus   `json:"status"`
	Priority  TicketPriority `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
	Tags      []string       `json:"tags,omitempty"`
}

var statusRank = map[TicketStatus]int{
	TicketStatusOpen:              0,
	TicketStatusPending:           1,
	TicketStatusWaitingOnCustomer: 2,
	TicketStatusOnHold:            3,
	TicketStatusResolved:          4,
	TicketStatusClosed:            5,
}

var priorityRank = map[TicketPriority]int{
	TicketPriorityUrgent: 0,
	TicketPriorityHigh:   1,
	TicketPriorityMedium: 2,
	TicketPriorityLow:    3,
}

// StatusRank orders statuses by triage attention. Unknown statuses sort last.
func StatusRank(s TicketStatus) int {
	if rank, ok := statusRank[s]; ok {
		return rank
	}
	return len(statusRank)
}

// PriorityRank orders priorities most-urgent-first. Unknown priorities sort last.
func PriorityRank(p TicketPriority) int {
	if rank, ok := priorityRank[p]; ok {
		return rank
	}
	return len(priorityRank)
}
