// Package workflow owns generated drafts and the casebook, governing every
// draft through the review state machine. The engine never self-promotes a
// draft: all transitions after creation are explicit reviewer or system
// actions, applied atomically under a single writer lock.
package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/retrieval"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// TicketLookup resolves tickets for promotion-time keyword derivation.
type TicketLookup interface {
	ByID(id int64) (domain.Ticket, bool)
}

// Engine is the draft workflow state machine and casebook owner.
type Engine struct {
	mu           sync.Mutex
	drafts       map[string]domain.Draft
	casebook     map[string]domain.CasebookEntry
	entryByDraft map[string]string

	tickets    TicketLookup
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// NewEngine constructs the engine. Dispatcher may be nil; logger defaults to
// a no-op.
func NewEngine(tickets TicketLookup, dispatcher events.Dispatcher, logger *zap.Logger) *Engine {
	if tickets == nil {
		panic("workflow: ticket lookup is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		drafts:       make(map[string]domain.Draft),
		casebook:     make(map[string]domain.CasebookEntry),
		entryByDraft: make(map[string]string),
		tickets:      tickets,
		dispatcher:   dispatcher,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// manualTransitions is the reviewer-reachable state table. Absent targets
// are invalid. EscalationRecommended never appears as a target here: only
// the auto-assignment path at creation may set it, so a terminal human
// decision cannot be overwritten by a stray escalation.
var manualTransitions = map[domain.DraftStatus][]domain.DraftStatus{
	domain.DraftStatusPendingReview:         {domain.DraftStatusApproved, domain.DraftStatusRejected, domain.DraftStatusNeedsEdit},
	domain.DraftStatusNeedsEdit:             {domain.DraftStatusPendingReview, domain.DraftStatusRejected},
	domain.DraftStatusEscalationRecommended: {domain.DraftStatusApproved, domain.DraftStatusRejected},
	domain.DraftStatusApproved:              {},
	domain.DraftStatusRejected:              {},
}

func isValidTransition(current, next domain.DraftStatus) bool {
	if next == domain.DraftStatusEscalationRecommended {
		return false
	}
	for _, candidate := range manualTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CreateDraft registers a generated reply for review. When the analysis
// carries an escalating type (dev, twilio, bug) the draft starts in
// EscalationRecommended instead of PendingReview.
func (e *Engine) CreateDraft(ctx context.Context, ticket domain.Ticket, analysis *domain.AnalysisResult, text string) domain.Draft {
	status := domain.DraftStatusPendingReview
	if analysis != nil && analysis.EscalationType.RequiresEscalation() {
		status = domain.DraftStatusEscalationRecommended
	}

	e.mu.Lock()
	now := e.now()
	draft := domain.Draft{
		ID:        e.newID(),
		TicketID:  ticket.ID,
		Text:      text,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.drafts[draft.ID] = draft
	e.mu.Unlock()

	e.publish(ctx, events.Event{
		Type:     events.EventDraftCreated,
		TicketID: ticket.ID,
		Payload:  events.DraftCreatedPayload{DraftID: draft.ID, Status: draft.Status},
	})
	return draft
}

// Approve moves a draft to Approved.
func (e *Engine) Approve(ctx context.Context, draftID, actor string) (domain.Draft, error) {
	return e.Transition(ctx, draftID, domain.DraftStatusApproved, actor)
}

// Reject moves a draft to Rejected.
func (e *Engine) Reject(ctx context.Context, draftID, actor string) (domain.Draft, error) {
	return e.Transition(ctx, draftID, domain.DraftStatusRejected, actor)
}

// RequestEdit moves a draft to NeedsEdit.
func (e *Engine) RequestEdit(ctx context.Context, draftID, actor string) (domain.Draft, error) {
	return e.Transition(ctx, draftID, domain.DraftStatusNeedsEdit, actor)
}

// Transition applies a reviewer-initiated status change. Invalid changes
// fail with an InvalidTransition error and leave the draft untouched.
// Concurrent actions on the same draft serialize on the engine lock, last
// write wins.
func (e *Engine) Transition(ctx context.Context, draftID string, next domain.DraftStatus, actor string) (domain.Draft, error) {
	e.mu.Lock()
	draft, ok := e.drafts[draftID]
	if !ok {
		e.mu.Unlock()
		return domain.Draft{}, apperrors.NewNotFound("draft", map[string]any{"draft_id": draftID})
	}
	if !isValidTransition(draft.Status, next) {
		e.mu.Unlock()
		return domain.Draft{}, apperrors.NewInvalidTransition(
			"draft status transition not allowed",
			map[string]any{"draft_id": draftID, "from": draft.Status, "to": next},
		)
	}
	old := draft.Status
	draft.Status = next
	draft.UpdatedAt = e.now()
	e.drafts[draftID] = draft
	e.mu.Unlock()

	e.publish(ctx, events.Event{
		Type:     events.EventDraftStatusChanged,
		TicketID: draft.TicketID,
		Actor:    actor,
		Payload:  events.DraftStatusChangedPayload{DraftID: draftID, OldStatus: old, NewStatus: next},
	})
	return draft, nil
}

// PromoteToCasebook approves the draft (if not already approved) and creates
// its casebook entry in one atomic step; no intermediate state is observable.
// Promotion forces Approved even over a prior Rejected decision.
func (e *Engine) PromoteToCasebook(ctx context.Context, draftID, actor string) (domain.Draft, domain.CasebookEntry, error) {
	e.mu.Lock()
	draft, ok := e.drafts[draftID]
	if !ok {
		e.mu.Unlock()
		return domain.Draft{}, domain.CasebookEntry{}, apperrors.NewNotFound("draft", map[string]any{"draft_id": draftID})
	}
	if _, promoted := e.entryByDraft[draftID]; promoted {
		e.mu.Unlock()
		return domain.Draft{}, domain.CasebookEntry{}, apperrors.NewConflict(
			"draft already promoted to casebook", map[string]any{"draft_id": draftID})
	}
	ticket, ok := e.tickets.ByID(draft.TicketID)
	if !ok {
		e.mu.Unlock()
		return domain.Draft{}, domain.CasebookEntry{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": draft.TicketID})
	}

	now := e.now()
	oldStatus := draft.Status
	draft.Status = domain.DraftStatusApproved
	draft.UpdatedAt = now
	entry := domain.CasebookEntry{
		ID:                   e.newID(),
		DraftID:              draft.ID,
		TicketID:             draft.TicketID,
		Subject:              ticket.Subject,
		ApprovedResponseText: draft.Text,
		Keywords:             retrieval.Keywords(ticket.Subject),
		CreatedAt:            now,
	}
	e.drafts[draftID] = draft
	e.casebook[entry.ID] = entry
	e.entryByDraft[draftID] = entry.ID
	e.mu.Unlock()

	if oldStatus != domain.DraftStatusApproved {
		e.publish(ctx, events.Event{
			Type:     events.EventDraftStatusChanged,
			TicketID: draft.TicketID,
			Actor:    actor,
			Payload:  events.DraftStatusChangedPayload{DraftID: draftID, OldStatus: oldStatus, NewStatus: draft.Status},
		})
	}
	e.publish(ctx, events.Event{
		Type:     events.EventDraftPromoted,
		TicketID: draft.TicketID,
		Actor:    actor,
		Payload:  events.DraftPromotedPayload{DraftID: draftID, CasebookEntryID: entry.ID, Keywords: entry.Keywords},
	})
	return draft, entry, nil
}

// DeleteDraft removes a draft from any state. A linked casebook entry is
// removed in the same step so the similarity corpus never dangles.
func (e *Engine) DeleteDraft(ctx context.Context, draftID, actor string) error {
	e.mu.Lock()
	draft, ok := e.drafts[draftID]
	if !ok {
		e.mu.Unlock()
		return apperrors.NewNotFound("draft", map[string]any{"draft_id": draftID})
	}
	entryID, cascaded := e.entryByDraft[draftID]
	delete(e.drafts, draftID)
	if cascaded {
		delete(e.casebook, entryID)
		delete(e.entryByDraft, draftID)
	}
	e.mu.Unlock()

	e.publish(ctx, events.Event{
		Type:     events.EventDraftDeleted,
		TicketID: draft.TicketID,
		Actor:    actor,
		Payload:  events.DraftDeletedPayload{DraftID: draftID, CasebookEntryID: entryID, CasebookCascaded: cascaded},
	})
	return nil
}

// AttachQAResult records the automated quality evaluation for a draft.
func (e *Engine) AttachQAResult(draftID string, qa *domain.QAResult) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	draft, ok := e.drafts[draftID]
	if !ok {
		return apperrors.NewNotFound("draft", map[string]any{"draft_id": draftID})
	}
	draft.QAResult = qa
	draft.UpdatedAt = e.now()
	e.drafts[draftID] = draft
	return nil
}

// DraftByID returns a draft by id.
func (e *Engine) DraftByID(draftID string) (domain.Draft, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	draft, ok := e.drafts[draftID]
	return draft, ok
}

// DraftsByTicket returns every draft for a ticket, newest first.
func (e *Engine) DraftsByTicket(ticketID int64) []domain.Draft {
	return e.listDrafts(func(d domain.Draft) bool { return d.TicketID == ticketID })
}

// DraftsByStatus returns drafts in a given status, newest first.
func (e *Engine) DraftsByStatus(status domain.DraftStatus) []domain.Draft {
	return e.listDrafts(func(d domain.Draft) bool { return d.Status == status })
}

// AllDrafts returns every draft, newest first.
func (e *Engine) AllDrafts() []domain.Draft {
	return e.listDrafts(func(domain.Draft) bool { return true })
}

// HasDraft reports whether the ticket has at least one draft.
func (e *Engine) HasDraft(ticketID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, draft := range e.drafts {
		if draft.TicketID == ticketID {
			return true
		}
	}
	return false
}

// CasebookEntries returns the retrieval corpus, newest first.
func (e *Engine) CasebookEntries() []domain.CasebookEntry {
	e.mu.Lock()
	entries := make([]domain.CasebookEntry, 0, len(e.casebook))
	for _, entry := range e.casebook {
		entries = append(entries, entry)
	}
	e.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// CasebookEntryForDraft returns the entry linked to a draft, if any.
func (e *Engine) CasebookEntryForDraft(draftID string) (domain.CasebookEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entryID, ok := e.entryByDraft[draftID]
	if !ok {
		return domain.CasebookEntry{}, false
	}
	entry, ok := e.casebook[entryID]
	return entry, ok
}

func (e *Engine) listDrafts(predicate func(domain.Draft) bool) []domain.Draft {
	e.mu.Lock()
	matched := make([]domain.Draft, 0, len(e.drafts))
	for _, draft := range e.drafts {
		if predicate(draft) {
			matched = append(matched, draft)
		}
	}
	e.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = e.newID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	_ = e.dispatcher.Publish(ctx, event)
}
