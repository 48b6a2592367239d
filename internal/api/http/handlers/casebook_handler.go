package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/workflow"
)

// CasebookHandler exposes the approved-response casebook.
type CasebookHandler struct {
	engine *workflow.Engine
	index  *persistence.CasebookIndex
	logger *zap.Logger
}

// NewCasebookHandler constructs handler. The index may be nil; keyword
// lookups then scan the in-memory corpus.
func NewCasebookHandler(engine *workflow.Engine, index *persistence.CasebookIndex, logger *zap.Logger) *CasebookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CasebookHandler{engine: engine, index: index, logger: logger}
}

// ListEntries GET /casebook. An optional ?keyword= filter is served from the
// Redis inverted index when available, falling back to the in-memory corpus.
func (h *CasebookHandler) ListEntries(c *fiber.Ctx) error {
	keyword := strings.ToLower(strings.TrimSpace(c.Query("keyword")))

	var entries []domain.CasebookEntry
	if keyword == "" {
		entries = h.engine.CasebookEntries()
	} else {
		entries = h.entriesByKeyword(c, keyword)
	}

	items := make([]dto.CasebookEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, casebookEntryResponse(entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *CasebookHandler) entriesByKeyword(c *fiber.Ctx, keyword string) []domain.CasebookEntry {
	if h.index != nil {
		entries, err := h.index.LookupByKeyword(c.UserContext(), keyword)
		if err == nil {
			return entries
		}
		h.logger.Warn("casebook index lookup failed; scanning corpus",
			zap.String("keyword", keyword),
			zap.Error(err),
		)
	}
	return filterEntriesByKeyword(h.engine.CasebookEntries(), keyword)
}

func filterEntriesByKeyword(entries []domain.CasebookEntry, keyword string) []domain.CasebookEntry {
	matched := make([]domain.CasebookEntry, 0, len(entries))
	for _, entry := range entries {
		for _, kw := range entry.Keywords {
			if kw == keyword {
				matched = append(matched, entry)
				break
			}
		}
	}
	return matched
}
