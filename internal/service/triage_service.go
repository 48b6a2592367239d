package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/agents"
	"github.com/spec-kit/triage-service/internal/classifier"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/helpdesk"
	"github.com/spec-kit/triage-service/internal/llm"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/retrieval"
	"github.com/spec-kit/triage-service/internal/store"
	"github.com/spec-kit/triage-service/internal/workflow"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// similarContextLimit bounds how many prior resolutions get quoted into a
// draft-generation prompt.
const similarContextLimit = 3

// TriageService coordinates the triage pipeline: ingest, classify, route,
// draft, review, retrieve, sync.
type TriageService struct {
	tickets    *store.TicketStore
	analyses   *store.AnalysisStore
	engine     *workflow.Engine
	classifier *classifier.Adapter
	router     *agents.Router
	completer  llm.TextCompleter
	source     helpdesk.TicketSource
	syncer     *PersistenceSyncer
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TriageDependencies bundles collaborators for the triage service.
type TriageDependencies struct {
	TicketStore   *store.TicketStore
	AnalysisStore *store.AnalysisStore
	Engine        *workflow.Engine
	Classifier    *classifier.Adapter
	Router        *agents.Router
	Completer     llm.TextCompleter
	Source        helpdesk.TicketSource
	Syncer        *PersistenceSyncer
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
}

// NewTriageService constructs the service.
func NewTriageService(deps TriageDependencies, logger *zap.Logger) *TriageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TriageService{
		tickets:    deps.TicketStore,
		analyses:   deps.AnalysisStore,
		engine:     deps.Engine,
		classifier: deps.Classifier,
		router:     deps.Router,
		completer:  deps.Completer,
		source:     deps.Source,
		syncer:     deps.Syncer,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// RefreshTickets pulls the current ticket set from the helpdesk and merges
// it into the store. The fetched feed may contain duplicates and stale rows.
func (s *TriageService) RefreshTickets(ctx context.Context) (store.IngestReport, error) {
	if s.source == nil {
		return store.IngestReport{}, apperrors.NewValidationError("no helpdesk source configured", nil)
	}
	fetched, err := s.source.FetchTickets(ctx, helpdesk.Filter{})
	if err != nil {
		s.metrics.Incr(observability.CounterHelpdeskFetchFailures, 1)
		return store.IngestReport{}, err
	}
	report := s.tickets.Ingest(fetched)
	s.metrics.Incr(observability.CounterTicketsIngested, int64(report.Added+report.Updated))
	s.logger.Info("tickets refreshed",
		zap.Int("fetched", len(fetched)),
		zap.Int("added", report.Added),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
	)

	s.syncer.SyncTickets(ctx, s.tickets.All())
	s.publish(ctx, events.Event{
		Type: events.EventTicketsIngested,
		Payload: events.TicketsIngestedPayload{
			Added:     report.Added,
			Updated:   report.Updated,
			Unchanged: report.Unchanged,
		},
	})
	return report, nil
}

// AnalyzeTicket classifies one ticket and records the latest-wins result.
// On failure the ticket stays visibly unanalyzed; no default is recorded.
func (s *TriageService) AnalyzeTicket(ctx context.Context, ticketID int64) (*domain.AnalysisResult, error) {
	ticket, ok := s.tickets.ByID(ticketID)
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}

	result, err := s.classifier.Classify(ctx, ticket)
	if err != nil {
		s.metrics.Incr(observability.CounterClassificationErrors, 1)
		return nil, err
	}
	s.analyses.Put(*result)
	s.metrics.Incr(observability.CounterClassifications, 1)

	var routedAgent string
	if result.EscalationType.RequiresEscalation() {
		agent := s.router.RouteTicket(*result)
		routedAgent = agent.ID
		s.logger.Info("escalation routed",
			zap.String("ticket_ref", helpdesk.FormatTicketRef(ticketID)),
			zap.String("escalation_type", string(result.EscalationType)),
			zap.String("agent_id", agent.ID),
		)
	}

	s.syncer.SyncAnalysis(ctx, *result)
	s.publish(ctx, events.Event{
		Type:     events.EventAnalysisRecorded,
		TicketID: ticketID,
		Payload: events.AnalysisRecordedPayload{
			EscalationType: result.EscalationType,
			UrgencyScore:   result.UrgencyScore,
			RoutedAgentID:  routedAgent,
		},
	})
	return result, nil
}

// GenerateDraft produces a candidate reply for a ticket, quoting prior
// approved resolutions as context, and registers it with the workflow
// engine. The QA evaluation afterwards is best-effort: a QA failure leaves
// qa_result empty and never blocks the draft.
func (s *TriageService) GenerateDraft(ctx context.Context, ticketID int64) (domain.Draft, error) {
	ticket, ok := s.tickets.ByID(ticketID)
	if !ok {
		return domain.Draft{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}

	var analysis *domain.AnalysisResult
	if result, ok := s.analyses.Get(ticketID); ok {
		analysis = &result
	}
	similar := retrieval.FindSimilar(ticket, s.engine.CasebookEntries(), similarContextLimit)

	text, err := s.completer.Generate(ctx, buildDraftPrompt(ticket, analysis, similar))
	if err != nil {
		return domain.Draft{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Draft{}, apperrors.NewMalformedResponse("generator returned an empty draft", nil)
	}

	draft := s.engine.CreateDraft(ctx, ticket, analysis, text)
	s.metrics.Incr(observability.CounterDraftsGenerated, 1)

	if qa, qaErr := s.classifier.EvaluateDraft(ctx, ticket, text); qaErr != nil {
		s.logger.Warn("draft qa evaluation failed",
			zap.String("ticket_ref", helpdesk.FormatTicketRef(ticketID)),
			zap.String("draft_id", draft.ID),
			zap.Error(qaErr),
		)
	} else if attachErr := s.engine.AttachQAResult(draft.ID, qa); attachErr == nil {
		draft.QAResult = qa
	}

	s.syncer.SyncDraft(ctx, draft)
	return draft, nil
}

// ApproveDraft applies the reviewer approval transition.
func (s *TriageService) ApproveDraft(ctx context.Context, draftID, actor string) (domain.Draft, error) {
	return s.applyTransition(ctx, draftID, actor, s.engine.Approve)
}

// RejectDraft applies the reviewer rejection transition.
func (s *TriageService) RejectDraft(ctx context.Context, draftID, actor string) (domain.Draft, error) {
	return s.applyTransition(ctx, draftID, actor, s.engine.Reject)
}

// RequestDraftEdit applies the reviewer needs-edit transition.
func (s *TriageService) RequestDraftEdit(ctx context.Context, draftID, actor string) (domain.Draft, error) {
	return s.applyTransition(ctx, draftID, actor, s.engine.RequestEdit)
}

// PromoteDraft approves and saves the draft into the casebook atomically.
func (s *TriageService) PromoteDraft(ctx context.Context, draftID, actor string) (domain.Draft, domain.CasebookEntry, error) {
	draft, entry, err := s.engine.PromoteToCasebook(ctx, draftID, actor)
	if err != nil {
		s.metrics.Incr(observability.CounterInvalidTransitions, 1)
		return domain.Draft{}, domain.CasebookEntry{}, err
	}
	s.metrics.Incr(observability.CounterCasebookPromotions, 1)
	s.syncer.SyncDraft(ctx, draft)
	s.syncer.SyncCasebookEntry(ctx, entry)
	return draft, entry, nil
}

// DeleteDraft removes a draft and, when linked, its casebook entry.
func (s *TriageService) DeleteDraft(ctx context.Context, draftID, actor string) error {
	entry, linked := s.engine.CasebookEntryForDraft(draftID)
	if err := s.engine.DeleteDraft(ctx, draftID, actor); err != nil {
		return err
	}
	s.syncer.DeleteDraft(ctx, draftID)
	if linked {
		s.syncer.RemoveCasebookEntry(ctx, entry)
	}
	return nil
}

// HasAnalysis reports whether the ticket already carries a classification.
func (s *TriageService) HasAnalysis(ticketID int64) bool {
	return s.analyses.Has(ticketID)
}

// HasDraft reports whether the ticket already has at least one draft.
func (s *TriageService) HasDraft(ticketID int64) bool {
	return s.engine.HasDraft(ticketID)
}

// FindSimilar retrieves prior approved resolutions for a ticket.
func (s *TriageService) FindSimilar(ticketID int64, limit int) ([]retrieval.Match, error) {
	ticket, ok := s.tickets.ByID(ticketID)
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return retrieval.FindSimilar(ticket, s.engine.CasebookEntries(), limit), nil
}

func (s *TriageService) applyTransition(ctx context.Context, draftID, actor string, transition func(context.Context, string, string) (domain.Draft, error)) (domain.Draft, error) {
	draft, err := transition(ctx, draftID, actor)
	if err != nil {
		s.metrics.Incr(observability.CounterInvalidTransitions, 1)
		return domain.Draft{}, err
	}
	s.metrics.Incr(observability.CounterDraftTransitions, 1)
	s.syncer.SyncDraft(ctx, draft)
	return draft, nil
}

func (s *TriageService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func buildDraftPrompt(ticket domain.Ticket, analysis *domain.AnalysisResult, similar []retrieval.Match) string {
	var b strings.Builder
	b.WriteString("Draft a reply to the customer ticket below.\n")
	b.WriteString("Be concise, factual and polite. Reply text only.\n\n")
	b.WriteString("Ticket subject: " + ticket.Subject + "\n")
	b.WriteString("Customer: " + ticket.Requester.Name + "\n")
	b.WriteString("Ticket body:\n" + ticket.BodyText + "\n")
	if analysis != nil {
		b.WriteString("\nTriage summary: " + analysis.Summary + "\n")
		if len(analysis.ActionItems) > 0 {
			b.WriteString("Action items:\n")
			for _, item := range analysis.ActionItems {
				b.WriteString("- " + item + "\n")
			}
		}
	}
	if len(similar) > 0 {
		b.WriteString("\nPreviously approved replies to similar tickets:\n")
		for i, match := range similar {
			b.WriteString(fmt.Sprintf("--- similar case %d (subject: %s) ---\n", i+1, match.Entry.Subject))
			b.WriteString(match.Entry.ApprovedResponseText + "\n")
		}
	}
	return b.String()
}
