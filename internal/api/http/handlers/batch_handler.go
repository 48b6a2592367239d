package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/scheduler"
	"github.com/spec-kit/triage-service/internal/service"
	"github.com/spec-kit/triage-service/internal/store"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// BatchHandler exposes manual batch triggers and run history.
type BatchHandler struct {
	runner  *scheduler.BatchRunner
	timer   *scheduler.Timer
	service *service.TriageService
	tickets *store.TicketStore
	logger  *zap.Logger
}

// NewBatchHandler constructs handler.
func NewBatchHandler(runner *scheduler.BatchRunner, timer *scheduler.Timer, triage *service.TriageService, tickets *store.TicketStore, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{runner: runner, timer: timer, service: triage, tickets: tickets, logger: logger}
}

// Run POST /batch/run.
func (h *BatchHandler) Run(c *fiber.Ctx) error {
	var req dto.RunBatchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	phase, err := parsePhase(req.Phase)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	if req.Refresh {
		if _, err := h.service.RefreshTickets(ctx); err != nil {
			h.logger.Warn("pre-batch refresh failed; running against stored tickets", zap.Error(err))
		}
	}

	run, err := h.runner.RunBatch(ctx, h.tickets.All(), phase, nil)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scheduleRunResponse(run)})
}

// Runs GET /batch/runs.
func (h *BatchHandler) Runs(c *fiber.Ctx) error {
	runs := h.runner.Runs()
	items := make([]dto.ScheduleRunResponse, 0, len(runs))
	for i := range runs {
		items = append(items, scheduleRunResponse(runs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Status GET /batch/status.
func (h *BatchHandler) Status(c *fiber.Ctx) error {
	running, progress := h.runner.Status()
	resp := dto.BatchStatusResponse{Running: running}
	if progress != nil {
		resp.Progress = &dto.BatchProgressResponse{
			CurrentIndex: progress.CurrentIndex,
			Total:        progress.Total,
			PhaseLabel:   progress.PhaseLabel,
		}
	}
	if h.timer != nil {
		status := h.timer.Status()
		resp.Timer = &dto.TimerStatusResponse{
			Enabled:    status.Enabled,
			Running:    status.Running,
			Interval:   status.Interval,
			FixedTimes: status.FixedTimes,
			LastRunAt:  status.LastRunAt,
		}
	}
	return c.JSON(fiber.Map{"data": resp})
}

// ToggleSchedule POST /schedule/toggle.
func (h *BatchHandler) ToggleSchedule(c *fiber.Ctx) error {
	if h.timer == nil {
		return apperrors.NewValidationError("scheduler not configured", nil)
	}
	var req dto.ScheduleToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	h.timer.Toggle(req.Enabled)
	return c.JSON(fiber.Map{"data": fiber.Map{"enabled": req.Enabled}})
}

func parsePhase(raw string) (domain.BatchPhase, error) {
	switch domain.BatchPhase(strings.ToUpper(strings.TrimSpace(raw))) {
	case "":
		return domain.BatchClassifyAndDraft, nil
	case domain.BatchClassifyOnly:
		return domain.BatchClassifyOnly, nil
	case domain.BatchClassifyAndDraft:
		return domain.BatchClassifyAndDraft, nil
	}
	return "", apperrors.NewValidationError("unknown batch phase", map[string]any{"phase": raw})
}

func scheduleRunResponse(run domain.ScheduleRun) dto.ScheduleRunResponse {
	return dto.ScheduleRunResponse{
		ID:               run.ID,
		Phase:            run.Phase,
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
		TicketsProcessed: run.TicketsProcessed,
		DraftsGenerated:  run.DraftsGenerated,
		Errors:           run.Errors,
	}
}
