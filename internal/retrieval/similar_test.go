package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/triage-service/internal/domain"
)

func entry(id string, createdAt time.Time, keywords ...string) domain.CasebookEntry {
	return domain.CasebookEntry{ID: id, Keywords: keywords, CreatedAt: createdAt}
}

// TestFindSimilar tests keyword overlap scoring.
func TestFindSimilar(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ticket := domain.Ticket{
		Subject:  "Webhook delivery failing",
		BodyText: "Our webhook endpoint gets no calls since the carrier change.",
	}

	t.Run("scores count overlapping keywords", func(t *testing.T) {
		corpus := []domain.CasebookEntry{
			entry("two", base, "webhook", "delivery", "billing"),
			entry("one", base, "carrier", "registration"),
		}

		matches := FindSimilar(ticket, corpus, 10)

		assert.Len(t, matches, 2)
		assert.Equal(t, "two", matches[0].Entry.ID)
		assert.Equal(t, 2, matches[0].MatchScore)
		assert.Equal(t, "one", matches[1].Entry.ID)
		assert.Equal(t, 1, matches[1].MatchScore)
	})

	t.Run("zero-score entries are dropped, not ranked last", func(t *testing.T) {
		corpus := []domain.CasebookEntry{
			entry("hit", base, "webhook"),
			entry("miss", base, "invoice", "refund"),
		}

		matches := FindSimilar(ticket, corpus, 10)

		assert.Len(t, matches, 1)
		assert.Equal(t, "hit", matches[0].Entry.ID)
	})

	t.Run("no overlap returns empty", func(t *testing.T) {
		corpus := []domain.CasebookEntry{entry("miss", base, "invoice")}
		assert.Empty(t, FindSimilar(ticket, corpus, 10))
	})

	t.Run("ties break to the most recent entry", func(t *testing.T) {
		corpus := []domain.CasebookEntry{
			entry("older", base.Add(-time.Hour), "webhook"),
			entry("newer", base, "delivery"),
		}

		matches := FindSimilar(ticket, corpus, 10)

		assert.Len(t, matches, 2)
		assert.Equal(t, "newer", matches[0].Entry.ID)
		assert.Equal(t, "older", matches[1].Entry.ID)
	})

	t.Run("limit truncates after ranking", func(t *testing.T) {
		corpus := []domain.CasebookEntry{
			entry("low", base, "carrier"),
			entry("high", base, "webhook", "delivery", "endpoint"),
		}

		matches := FindSimilar(ticket, corpus, 1)

		assert.Len(t, matches, 1)
		assert.Equal(t, "high", matches[0].Entry.ID)
	})

	t.Run("keyword matching is case-insensitive", func(t *testing.T) {
		corpus := []domain.CasebookEntry{entry("hit", base, "Webhook")}
		matches := FindSimilar(ticket, corpus, 10)
		assert.Len(t, matches, 1)
	})

	t.Run("non-positive limit returns nothing", func(t *testing.T) {
		corpus := []domain.CasebookEntry{entry("hit", base, "webhook")}
		assert.Empty(t, FindSimilar(ticket, corpus, 0))
	})
}

// TestTokenize tests the token set construction.
func TestTokenize(t *testing.T) {
	t.Run("short words are dropped", func(t *testing.T) {
		tokens := Tokenize("the api is down for all of us")
		assert.True(t, tokens["down"])
		assert.False(t, tokens["api"])
		assert.False(t, tokens["the"])
	})

	t.Run("punctuation is trimmed", func(t *testing.T) {
		tokens := Tokenize("Failing! (again) on 'delivery'.")
		assert.True(t, tokens["failing"])
		assert.True(t, tokens["again"])
		assert.True(t, tokens["delivery"])
	})
}

// TestKeywords tests promotion-time keyword derivation.
func TestKeywords(t *testing.T) {
	t.Run("subject words longer than three chars, lowercased", func(t *testing.T) {
		got := Keywords("SMS API down for EU customers")
		assert.Equal(t, []string{"down", "customers"}, got)
	})

	t.Run("duplicates collapse keeping first position", func(t *testing.T) {
		got := Keywords("webhook retries webhook failing")
		assert.Equal(t, []string{"webhook", "retries", "failing"}, got)
	})

	t.Run("empty subject yields no keywords", func(t *testing.T) {
		assert.Empty(t, Keywords("   "))
	})
}
