package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/agents"
	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/retrieval"
	"github.com/spec-kit/triage-service/internal/service"
	"github.com/spec-kit/triage-service/internal/store"
	"github.com/spec-kit/triage-service/internal/workflow"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// TicketsHandler manages ticket read and pipeline endpoints.
type TicketsHandler struct {
	service  *service.TriageService
	tickets  *store.TicketStore
	analyses *store.AnalysisStore
	engine   *workflow.Engine
	router   *agents.Router
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(triage *service.TriageService, tickets *store.TicketStore, analyses *store.AnalysisStore, engine *workflow.Engine, router *agents.Router) *TicketsHandler {
	return &TicketsHandler{service: triage, tickets: tickets, analyses: analyses, engine: engine, router: router}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	var tickets []domain.Ticket
	if statusStr := c.Query("status"); statusStr != "" {
		statuses := make(map[domain.TicketStatus]bool)
		for _, part := range strings.Split(statusStr, ",") {
			statuses[domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part)))] = true
		}
		tickets = h.tickets.Search(func(t domain.Ticket) bool { return statuses[t.Status] })
	} else {
		tickets = h.tickets.All()
	}

	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	ticket, ok := h.tickets.ByID(id)
	if !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}

	detail := dto.TicketDetailResponse{
		TicketSummary:  ticketSummary(ticket),
		BodyText:       ticket.BodyText,
		RequesterEmail: ticket.Requester.Email,
		Drafts:         []dto.DraftResponse{},
		SimilarCases:   []dto.SimilarCaseResponse{},
	}
	if analysis, ok := h.analyses.Get(id); ok {
		resp := analysisResponse(analysis)
		if analysis.EscalationType.RequiresEscalation() {
			resp.AssignedAgent = h.router.RouteTicket(analysis).ID
		}
		detail.Analysis = &resp
	}
	for _, draft := range h.engine.DraftsByTicket(id) {
		detail.Drafts = append(detail.Drafts, draftResponse(draft))
	}
	if matches, err := h.service.FindSimilar(id, 5); err == nil {
		detail.SimilarCases = similarCaseResponses(matches)
	}
	return c.JSON(fiber.Map{"data": detail})
}

// SimilarCases GET /tickets/:id/similar.
func (h *TicketsHandler) SimilarCases(c *fiber.Ctx) error {
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	limit := parseIntQuery(c.Query("limit"), 5)
	matches, err := h.service.FindSimilar(id, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": similarCaseResponses(matches)})
}

// Refresh POST /tickets/refresh.
func (h *TicketsHandler) Refresh(c *fiber.Ctx) error {
	report, err := h.service.RefreshTickets(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RefreshResponse{
		Added:     report.Added,
		Updated:   report.Updated,
		Unchanged: report.Unchanged,
		Total:     h.tickets.Len(),
	}})
}

// Analyze POST /tickets/:id/analyze.
func (h *TicketsHandler) Analyze(c *fiber.Ctx) error {
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	analysis, err := h.service.AnalyzeTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	resp := analysisResponse(*analysis)
	if analysis.EscalationType.RequiresEscalation() {
		resp.AssignedAgent = h.router.RouteTicket(*analysis).ID
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Draft POST /tickets/:id/draft.
func (h *TicketsHandler) Draft(c *fiber.Ctx) error {
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	draft, err := h.service.GenerateDraft(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": draftResponse(draft)})
}

func parseTicketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}

func parseIntQuery(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:        ticket.ID,
		Subject:   ticket.Subject,
		Requester: ticket.Requester.Name,
		Status:    ticket.Status,
		Priority:  ticket.Priority,
		Tags:      ticket.Tags,
		CreatedAt: ticket.CreatedAt,
	}
}

func similarCaseResponses(matches []retrieval.Match) []dto.SimilarCaseResponse {
	items := make([]dto.SimilarCaseResponse, 0, len(matches))
	for _, m := range matches {
		items = append(items, dto.SimilarCaseResponse{
			EntryID:    m.Entry.ID,
			TicketID:   m.Entry.TicketID,
			Subject:    m.Entry.Subject,
			MatchScore: m.MatchScore,
			CreatedAt:  m.Entry.CreatedAt,
		})
	}
	return items
}

func analysisResponse(analysis domain.AnalysisResult) dto.AnalysisResponse {
	return dto.AnalysisResponse{
		EscalationType: analysis.EscalationType,
		UrgencyScore:   analysis.UrgencyScore,
		Summary:        analysis.Summary,
		ActionItems:    analysis.ActionItems,
	}
}
