package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/service"
	"github.com/spec-kit/triage-service/internal/workflow"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// DraftsHandler manages the reviewer-facing draft endpoints.
type DraftsHandler struct {
	service *service.TriageService
	engine  *workflow.Engine
}

// NewDraftsHandler constructs handler.
func NewDraftsHandler(triage *service.TriageService, engine *workflow.Engine) *DraftsHandler {
	return &DraftsHandler{service: triage, engine: engine}
}

// ListDrafts GET /drafts.
func (h *DraftsHandler) ListDrafts(c *fiber.Ctx) error {
	var drafts []domain.Draft
	if statusStr := c.Query("status"); statusStr != "" {
		status := domain.DraftStatus(strings.ToUpper(strings.TrimSpace(statusStr)))
		drafts = h.engine.DraftsByStatus(status)
	} else {
		drafts = h.engine.AllDrafts()
	}

	items := make([]dto.DraftResponse, 0, len(drafts))
	for i := range drafts {
		items = append(items, draftResponse(drafts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetDraft GET /drafts/:id.
func (h *DraftsHandler) GetDraft(c *fiber.Ctx) error {
	draft, ok := h.engine.DraftByID(c.Params("id"))
	if !ok {
		return apperrors.NewNotFound("draft", map[string]any{"id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": draftResponse(draft)})
}

// Approve POST /drafts/:id/approve.
func (h *DraftsHandler) Approve(c *fiber.Ctx) error {
	return h.transition(c, h.service.ApproveDraft)
}

// Reject POST /drafts/:id/reject.
func (h *DraftsHandler) Reject(c *fiber.Ctx) error {
	return h.transition(c, h.service.RejectDraft)
}

// RequestEdit POST /drafts/:id/request-edit.
func (h *DraftsHandler) RequestEdit(c *fiber.Ctx) error {
	return h.transition(c, h.service.RequestDraftEdit)
}

// Promote POST /drafts/:id/promote.
func (h *DraftsHandler) Promote(c *fiber.Ctx) error {
	reviewer, ok := auth.ReviewerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("reviewer required")
	}
	draft, entry, err := h.service.PromoteDraft(c.UserContext(), c.Params("id"), reviewer.Actor())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.PromoteResponse{
		Draft: draftResponse(draft),
		Entry: casebookEntryResponse(entry),
	}})
}

// Delete DELETE /drafts/:id.
func (h *DraftsHandler) Delete(c *fiber.Ctx) error {
	reviewer, ok := auth.ReviewerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("reviewer required")
	}
	if err := h.service.DeleteDraft(c.UserContext(), c.Params("id"), reviewer.Actor()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type transitionFunc func(ctx context.Context, draftID, actor string) (domain.Draft, error)

func (h *DraftsHandler) transition(c *fiber.Ctx, apply transitionFunc) error {
	reviewer, ok := auth.ReviewerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("reviewer required")
	}
	draft, err := apply(c.UserContext(), c.Params("id"), reviewer.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": draftResponse(draft)})
}

func draftResponse(draft domain.Draft) dto.DraftResponse {
	resp := dto.DraftResponse{
		ID:        draft.ID,
		TicketID:  draft.TicketID,
		Text:      draft.Text,
		Status:    draft.Status,
		CreatedAt: draft.CreatedAt,
		UpdatedAt: draft.UpdatedAt,
	}
	if draft.QAResult != nil {
		criteria := make(map[string]bool, len(draft.QAResult.Criteria))
		for name, criterion := range draft.QAResult.Criteria {
			criteria[name] = criterion.Pass
		}
		resp.QAResult = &dto.QAResultResponse{
			Score:    draft.QAResult.Score,
			Overall:  draft.QAResult.Overall,
			Criteria: criteria,
			Fixes:    draft.QAResult.Fixes,
		}
	}
	return resp
}

func casebookEntryResponse(entry domain.CasebookEntry) dto.CasebookEntryResponse {
	return dto.CasebookEntryResponse{
		ID:                   entry.ID,
		DraftID:              entry.DraftID,
		TicketID:             entry.TicketID,
		Subject:              entry.Subject,
		ApprovedResponseText: entry.ApprovedResponseText,
		Keywords:             entry.Keywords,
		CreatedAt:            entry.CreatedAt,
	}
}
