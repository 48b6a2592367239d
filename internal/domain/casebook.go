package domain

import "time"

// CasebookEntry is a curated, reusable resolution pattern created when a
// draft is promoted. Immutable after creation; keyed for lexical retrieval.
type CasebookEntry struct {
	ID                   string    `json:"id"`
	DraftID              string    `json:"draft_id"`
	TicketID             int64     `json:"ticket_id"`
	Subject              string    `json:"subject"`
	ApprovedResponseText string    `json:"approved_response_text"`
	Keywords             []string  `json:"keywords"`
	CreatedAt            time.Time `json:"created_at"`
}
