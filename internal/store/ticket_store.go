package store

import (
	"sort"
	"sync"

	"github.com/spec-kit/triage-service/internal/domain"
)

// IngestReport summarizes one ingestion batch.
type IngestReport struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// TicketStore is the owned in-memory set of normalized tickets. Ingestion
// deduplicates and merges; tickets are never deleted, only superseded. All
// operations work on the current snapshot and never touch the network.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[int64]domain.Ticket
}

// NewTicketStore creates an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[int64]domain.Ticket)}
}

// Ingest merges a batch of raw tickets into the store. Duplicates within the
// batch collapse last-write-wins by id before merging. For tickets already
// present, only Status and Priority are overwritten; every other field keeps
// its first-ingested value.
func (s *TicketStore) Ingest(raw []domain.Ticket) IngestReport {
	deduped := make(map[int64]domain.Ticket, len(raw))
	order := make([]int64, 0, len(raw))
	for _, t := range raw {
		if _, seen := deduped[t.ID]; !seen {
			order = append(order, t.ID)
		}
		deduped[t.ID] = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var report IngestReport
	for _, id := range order {
		incoming := deduped[id]
		existing, ok := s.tickets[id]
		if !ok {
			s.tickets[id] = incoming
			report.Added++
			continue
		}
		if existing.Status == incoming.Status && existing.Priority == incoming.Priority {
			report.Unchanged++
			continue
		}
		existing.Status = incoming.Status
		existing.Priority = incoming.Priority
		s.tickets[id] = existing
		report.Updated++
	}
	return report
}

// ByID returns the ticket with the given helpdesk id.
func (s *TicketStore) ByID(id int64) (domain.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	return t, ok
}

// ByStatus returns tickets in the given status in triage order.
func (s *TicketStore) ByStatus(status domain.TicketStatus) []domain.Ticket {
	return s.Search(func(t domain.Ticket) bool { return t.Status == status })
}

// All returns every ticket in triage order.
func (s *TicketStore) All() []domain.Ticket {
	return s.Search(func(domain.Ticket) bool { return true })
}

// Search returns tickets matching the predicate in triage order:
// priority desc, status asc, createdAt desc. The ordering matches the manual
// review queue so batch output and reviewer lists agree.
func (s *TicketStore) Search(predicate func(domain.Ticket) bool) []domain.Ticket {
	s.mu.RLock()
	matched := make([]domain.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		if predicate(t) {
			matched = append(matched, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if pa, pb := domain.PriorityRank(a.Priority), domain.PriorityRank(b.Priority); pa != pb {
			return pa < pb
		}
		if sa, sb := domain.StatusRank(a.Status), domain.StatusRank(b.Status); sa != sb {
			return sa < sb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return matched
}

// Len returns the number of tickets currently held.
func (s *TicketStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tickets)
}
