package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// PersistenceSyncer writes pipeline state through to durable storage.
// Every write is idempotent and best-effort: failures are logged, counted
// and swallowed so the in-memory pipeline keeps working with storage offline.
type PersistenceSyncer struct {
	tickets  repository.TicketRepository
	analyses repository.AnalysisRepository
	drafts   repository.DraftRepository
	casebook repository.CasebookRepository
	runs     repository.ScheduleRunRepository
	index    *persistence.CasebookIndex
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// SyncerDependencies bundles repositories for the syncer. Any nil repository
// turns its sync path into a no-op.
type SyncerDependencies struct {
	TicketRepo   repository.TicketRepository
	AnalysisRepo repository.AnalysisRepository
	DraftRepo    repository.DraftRepository
	CasebookRepo repository.CasebookRepository
	RunRepo      repository.ScheduleRunRepository
	Index        *persistence.CasebookIndex
}

// NewPersistenceSyncer constructs the syncer.
func NewPersistenceSyncer(deps SyncerDependencies, logger *zap.Logger, metrics *observability.Metrics) *PersistenceSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistenceSyncer{
		tickets:  deps.TicketRepo,
		analyses: deps.AnalysisRepo,
		drafts:   deps.DraftRepo,
		casebook: deps.CasebookRepo,
		runs:     deps.RunRepo,
		index:    deps.Index,
		logger:   logger,
		metrics:  metrics,
	}
}

// SyncTickets upserts a batch of tickets.
func (s *PersistenceSyncer) SyncTickets(ctx context.Context, tickets []domain.Ticket) {
	if s == nil || s.tickets == nil || len(tickets) == 0 {
		return
	}
	if err := s.tickets.Upsert(ctx, tickets); err != nil {
		s.swallow("sync tickets", err, zap.Int("count", len(tickets)))
	}
}

// SyncAnalysis upserts the latest classification for a ticket.
func (s *PersistenceSyncer) SyncAnalysis(ctx context.Context, result domain.AnalysisResult) {
	if s == nil || s.analyses == nil {
		return
	}
	if err := s.analyses.Upsert(ctx, result); err != nil {
		s.swallow("sync analysis", err, zap.Int64("ticket_id", result.TicketID))
	}
}

// SyncDraft upserts one draft.
func (s *PersistenceSyncer) SyncDraft(ctx context.Context, draft domain.Draft) {
	if s == nil || s.drafts == nil {
		return
	}
	if err := s.drafts.Upsert(ctx, draft); err != nil {
		s.swallow("sync draft", err, zap.String("draft_id", draft.ID))
	}
}

// DeleteDraft removes one draft from durable storage.
func (s *PersistenceSyncer) DeleteDraft(ctx context.Context, draftID string) {
	if s == nil || s.drafts == nil {
		return
	}
	if err := s.drafts.Delete(ctx, draftID); err != nil {
		s.swallow("delete draft", err, zap.String("draft_id", draftID))
	}
}

// SyncCasebookEntry inserts one casebook entry and indexes its keywords.
func (s *PersistenceSyncer) SyncCasebookEntry(ctx context.Context, entry domain.CasebookEntry) {
	if s != nil && s.casebook != nil {
		if err := s.casebook.Insert(ctx, entry); err != nil {
			s.swallow("sync casebook entry", err, zap.String("entry_id", entry.ID))
		}
	}
	if s != nil && s.index != nil {
		if err := s.index.Index(ctx, entry); err != nil {
			s.swallow("index casebook entry", err, zap.String("entry_id", entry.ID))
		}
	}
}

// RemoveCasebookEntry deletes one entry and its keyword index.
func (s *PersistenceSyncer) RemoveCasebookEntry(ctx context.Context, entry domain.CasebookEntry) {
	if s != nil && s.casebook != nil {
		if err := s.casebook.Delete(ctx, entry.ID); err != nil {
			s.swallow("remove casebook entry", err, zap.String("entry_id", entry.ID))
		}
	}
	if s != nil && s.index != nil {
		if err := s.index.Remove(ctx, entry); err != nil {
			s.swallow("unindex casebook entry", err, zap.String("entry_id", entry.ID))
		}
	}
}

// AppendScheduleRun appends one run to the audit log.
func (s *PersistenceSyncer) AppendScheduleRun(ctx context.Context, run domain.ScheduleRun) {
	if s == nil || s.runs == nil {
		return
	}
	if err := s.runs.Append(ctx, run); err != nil {
		s.swallow("append schedule run", err, zap.String("run_id", run.ID))
	}
}

func (s *PersistenceSyncer) swallow(op string, err error, fields ...zap.Field) {
	s.metrics.Incr(observability.CounterStorageSyncFailures, 1)
	fields = append(fields, zap.Error(apperrors.NewStorageUnavailable(err)))
	s.logger.Warn("storage sync failed: "+op, fields...)
}
