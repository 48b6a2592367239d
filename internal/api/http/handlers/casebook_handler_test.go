package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/store"
	"github.com/spec-kit/triage-service/internal/workflow"
)

func seedCasebook(t *testing.T, subjects map[int64]string) *workflow.Engine {
	t.Helper()
	tickets := store.NewTicketStore()
	engine := workflow.NewEngine(tickets, nil, zap.NewNop())
	ctx := context.Background()

	for id, subject := range subjects {
		ticket := domain.Ticket{
			ID:        id,
			Subject:   subject,
			Status:    domain.TicketStatusOpen,
			Priority:  domain.TicketPriorityMedium,
			CreatedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		}
		tickets.Ingest([]domain.Ticket{ticket})
		draft := engine.CreateDraft(ctx, ticket, nil, "Thanks for reaching out.")
		_, _, err := engine.PromoteToCasebook(ctx, draft.ID, "casey")
		assert.NoError(t, err)
	}
	return engine
}

func fetchCasebook(t *testing.T, app *fiber.App, target string) []dto.CasebookEntryResponse {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, target, nil))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []dto.CasebookEntryResponse `json:"data"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Data
}

// TestListEntries tests the casebook listing and its keyword filter.
func TestListEntries(t *testing.T) {
	engine := seedCasebook(t, map[int64]string{
		7: "Webhook delivery keeps failing",
		9: "Invoice total looks wrong",
	})
	handler := NewCasebookHandler(engine, nil, zap.NewNop())
	app := fiber.New()
	app.Get("/casebook", handler.ListEntries)

	t.Run("lists every entry without a filter", func(t *testing.T) {
		entries := fetchCasebook(t, app, "/casebook")
		assert.Len(t, entries, 2)
	})

	t.Run("keyword filter matches derived keywords", func(t *testing.T) {
		entries := fetchCasebook(t, app, "/casebook?keyword=webhook")
		assert.Len(t, entries, 1)
		assert.Equal(t, "Webhook delivery keeps failing", entries[0].Subject)
	})

	t.Run("keyword is case-insensitive", func(t *testing.T) {
		entries := fetchCasebook(t, app, "/casebook?keyword=INVOICE")
		assert.Len(t, entries, 1)
		assert.Equal(t, int64(9), entries[0].TicketID)
	})

	t.Run("unmatched keyword returns empty list", func(t *testing.T) {
		entries := fetchCasebook(t, app, "/casebook?keyword=refund")
		assert.Empty(t, entries)
	})
}
