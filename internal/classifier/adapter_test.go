package classifier

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

type mockCompleter struct {
	ClassifyFunc func(ctx context.Context, prompt string) (string, error)
	GenerateFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *mockCompleter) Classify(ctx context.Context, prompt string) (string, error) {
	return m.ClassifyFunc(ctx, prompt)
}

func (m *mockCompleter) Generate(ctx context.Context, prompt string) (string, error) {
	return m.GenerateFunc(ctx, prompt)
}

func sampleTicket() domain.Ticket {
	return domain.Ticket{
		ID:       42,
		Subject:  "API returns 500 on webhook delivery",
		BodyText: "Every webhook call since last night fails with a 500.",
		Priority: domain.TicketPriorityHigh,
	}
}

const validVerdict = `{"escalation_type":"bug","urgency_score":8,` +
	`"summary":"Webhook deliveries are failing with server errors.",` +
	`"action_items":["reproduce against staging","check recent deploys"]}`

// TestNewAdapter tests the constructor
func TestNewAdapter(t *testing.T) {
	t.Run("nil completer panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NewAdapter(nil, zap.NewNop())
		})
	})

	t.Run("nil logger gets default", func(t *testing.T) {
		adapter := NewAdapter(&mockCompleter{}, nil)
		assert.NotNil(t, adapter)
		assert.NotNil(t, adapter.logger)
	})
}

// TestClassify tests verdict parsing and the single-retry policy.
func TestClassify(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("valid output parses on first call", func(t *testing.T) {
		calls := 0
		completer := &mockCompleter{
			ClassifyFunc: func(ctx context.Context, prompt string) (string, error) {
				calls++
				return validVerdict, nil
			},
		}

		adapter := NewAdapter(completer, logger)
		adapter.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
		result, err := adapter.Classify(ctx, sampleTicket())

		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, int64(42), result.TicketID)
		assert.Equal(t, domain.EscalationBug, result.EscalationType)
		assert.Equal(t, 8, result.UrgencyScore)
		assert.Equal(t, []string{"reproduce against staging", "check recent deploys"}, result.ActionItems)
	})

	t.Run("fenced output still parses", func(t *testing.T) {
		completer := &mockCompleter{
			ClassifyFunc: func(ctx context.Context, prompt string) (string, error) {
				return "Here you go:\n```json\n" + validVerdict + "\n```", nil
			},
		}

		adapter := NewAdapter(completer, logger)
		result, err := adapter.Classify(ctx, sampleTicket())

		assert.NoError(t, err)
		assert.Equal(t, domain.EscalationBug, result.EscalationType)
	})

	t.Run("malformed output retries once with stricter prompt", func(t *testing.T) {
		var prompts []string
		completer := &mockCompleter{
			ClassifyFunc: func(ctx context.Context, prompt string) (string, error) {
				prompts = append(prompts, prompt)
				if len(prompts) == 1 {
					return "I think this is probably a bug.", nil
				}
				return validVerdict, nil
			},
		}

		adapter := NewAdapter(completer, logger)
		result, err := adapter.Classify(ctx, sampleTicket())

		assert.NoError(t, err)
		assert.Len(t, prompts, 2)
		assert.NotContains(t, prompts[0], "previous answer")
		assert.Contains(t, prompts[1], "previous answer")
		assert.Equal(t, domain.EscalationBug, result.EscalationType)
	})

	t.Run("two malformed outputs yield nil result and typed error", func(t *testing.T) {
		calls := 0
		completer := &mockCompleter{
			ClassifyFunc: func(ctx context.Context, prompt string) (string, error) {
				calls++
				return `{"escalation_type":"shrug"}`, nil
			},
		}

		adapter := NewAdapter(completer, logger)
		result, err := adapter.Classify(ctx, sampleTicket())

		assert.Nil(t, result)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeMalformedResponse))
		assert.Equal(t, 2, calls)
	})

	t.Run("empty completion error retries once", func(t *testing.T) {
		var prompts []string
		completer := &mockCompleter{
			ClassifyFunc: func(ctx context.Context, prompt string) (string, error) {
				prompts = append(prompts, prompt)
				if len(prompts) == 1 {
					return "", apperrors.NewMalformedResponse("completion returned empty content", nil)
				}
				return validVerdict, nil
			},
		}

		adapter := NewAdapter(completer, logger)
		result, err := adapter.Classify(ctx, sampleTicket())

		assert.NoError(t, err)
		assert.Len(t, prompts, 2)
		assert.Contains(t, prompts[1], "previous answer")
		assert.Equal(t, domain.EscalationBug, result.EscalationType)
	})

	t.Run("empty completion on both calls yields typed error", func(t *testing.T) {
		calls := 0
		completer := &mockCompleter{
			ClassifyFunc: func(ctx context.Context, prompt string) (string, error) {
				calls++
				return "", apperrors.NewMalformedResponse("completion returned empty content", nil)
			},
		}

		adapter := NewAdapter(completer, logger)
		result, err := adapter.Classify(ctx, sampleTicket())

		assert.Nil(t, result)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeMalformedResponse))
		assert.Equal(t, 2, calls)
	})

	t.Run("transport error is not retried", func(t *testing.T) {
		calls := 0
		completer := &mockCompleter{
			ClassifyFunc: func(ctx context.Context, prompt string) (string, error) {
				calls++
				return "", apperrors.NewRateLimited("slow down", nil)
			},
		}

		adapter := NewAdapter(completer, logger)
		result, err := adapter.Classify(ctx, sampleTicket())

		assert.Nil(t, result)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeRateLimited))
		assert.Equal(t, 1, calls)
	})

	t.Run("out-of-range urgency is rejected", func(t *testing.T) {
		completer := &mockCompleter{
			ClassifyFunc: func(ctx context.Context, prompt string) (string, error) {
				return strings.Replace(validVerdict, `"urgency_score":8`, `"urgency_score":14`, 1), nil
			},
		}

		adapter := NewAdapter(completer, logger)
		result, err := adapter.Classify(ctx, sampleTicket())

		assert.Nil(t, result)
		assert.Error(t, err)
	})
}

func TestParseAnalysis(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("escalation type is case-insensitive", func(t *testing.T) {
		result, err := parseAnalysis(1, strings.Replace(validVerdict, `"bug"`, `"TWILIO"`, 1), at)
		assert.NoError(t, err)
		assert.Equal(t, domain.EscalationTwilio, result.EscalationType)
	})

	t.Run("missing summary is rejected", func(t *testing.T) {
		_, err := parseAnalysis(1, strings.Replace(validVerdict,
			`"summary":"Webhook deliveries are failing with server errors."`, `"summary":"  "`, 1), at)
		assert.Error(t, err)
	})

	t.Run("missing action items is rejected", func(t *testing.T) {
		_, err := parseAnalysis(1, `{"escalation_type":"bug","urgency_score":3,"summary":"x"}`, at)
		assert.Error(t, err)
	})
}
