package store

import (
	"sync"

	"github.com/spec-kit/triage-service/internal/domain"
)

// AnalysisStore holds the latest classification per ticket. A missing entry
// means the ticket has not been triaged; results are replaced whole on
// re-analysis, never merged.
type AnalysisStore struct {
	mu       sync.RWMutex
	analyses map[int64]domain.AnalysisResult
}

// NewAnalysisStore creates an empty store.
func NewAnalysisStore() *AnalysisStore {
	return &AnalysisStore{analyses: make(map[int64]domain.AnalysisResult)}
}

// Put records the latest analysis for its ticket.
func (s *AnalysisStore) Put(result domain.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[result.TicketID] = result
}

// Get returns the latest analysis for a ticket, if any.
func (s *AnalysisStore) Get(ticketID int64) (domain.AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.analyses[ticketID]
	return result, ok
}

// Has reports whether a ticket has been triaged.
func (s *AnalysisStore) Has(ticketID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.analyses[ticketID]
	return ok
}
