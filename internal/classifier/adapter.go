// Package classifier adapts the generative text capability into typed
// triage verdicts. Model output is untrusted: it is schema-validated and
// retried once with a stricter prompt before an error surfaces. A failed
// classification yields no result at all, so downstream logic sees the
// ticket as "not yet triaged" rather than triaged-as-default.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/llm"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// Adapter wraps one classification call per ticket.
type Adapter struct {
	completer llm.TextCompleter
	logger    *zap.Logger
	now       func() time.Time
}

// NewAdapter constructs the adapter. A nil logger defaults to a no-op.
func NewAdapter(completer llm.TextCompleter, logger *zap.Logger) *Adapter {
	if completer == nil {
		panic("classifier: completer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{completer: completer, logger: logger, now: time.Now}
}

// Classify produces the triage verdict for one ticket. On malformed model
// output it retries exactly once with a stricter prompt; on any failure it
// returns a nil result and a typed error, never a fabricated verdict.
func (a *Adapter) Classify(ctx context.Context, ticket domain.Ticket) (*domain.AnalysisResult, error) {
	raw, err := a.completer.Classify(ctx, buildClassifyPrompt(ticket, false))
	if err != nil && !apperrors.HasCode(err, apperrors.CodeMalformedResponse) {
		return nil, err
	}

	// An empty completion counts as malformed output and gets the same retry
	// as unparseable text.
	parseErr := err
	if err == nil {
		var result *domain.AnalysisResult
		result, parseErr = parseAnalysis(ticket.ID, raw, a.now())
		if parseErr == nil {
			return result, nil
		}
	}

	a.logger.Warn("classification output malformed, retrying with strict prompt",
		zap.Int64("ticket_id", ticket.ID),
		zap.Error(parseErr),
	)

	raw, err = a.completer.Classify(ctx, buildClassifyPrompt(ticket, true))
	if err != nil {
		return nil, err
	}
	result, parseErr := parseAnalysis(ticket.ID, raw, a.now())
	if parseErr != nil {
		return nil, apperrors.NewMalformedResponse(
			fmt.Sprintf("classifier output unparseable after retry for ticket %d", ticket.ID), parseErr)
	}
	return result, nil
}

func buildClassifyPrompt(ticket domain.Ticket, strict bool) string {
	var b strings.Builder
	b.WriteString("Classify the following support ticket.\n")
	b.WriteString("Return JSON only, matching this schema exactly:\n")
	b.WriteString(`{"escalation_type":"dev|twilio|billing|feature|bug|support",` +
		`"urgency_score":0,"summary":"one sentence","action_items":["step"]}` + "\n")
	b.WriteString("urgency_score is an integer from 0 to 10.\n")
	if strict {
		b.WriteString("Your previous answer was not valid JSON for this schema. ")
		b.WriteString("Output a single JSON object with exactly the four keys above. ")
		b.WriteString("No markdown, no prose, no trailing text.\n")
	}
	b.WriteString("\nTicket:\n")
	b.WriteString("subject: " + ticket.Subject + "\n")
	b.WriteString("priority: " + string(ticket.Priority) + "\n")
	b.WriteString("body:\n" + ticket.BodyText + "\n")
	return b.String()
}

func parseAnalysis(ticketID int64, raw string, at time.Time) (*domain.AnalysisResult, error) {
	payload, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(payload) {
		return nil, fmt.Errorf("invalid json")
	}
	root := gjson.Parse(payload)

	escalation := root.Get("escalation_type")
	if !escalation.Exists() {
		return nil, fmt.Errorf("missing escalation_type")
	}
	escalationType := domain.EscalationType(strings.ToUpper(strings.TrimSpace(escalation.String())))
	if !domain.ValidEscalationType(escalationType) {
		return nil, fmt.Errorf("unknown escalation_type %q", escalation.String())
	}

	urgency := root.Get("urgency_score")
	if !urgency.Exists() || urgency.Type != gjson.Number {
		return nil, fmt.Errorf("missing or non-numeric urgency_score")
	}
	score := int(urgency.Int())
	if score < 0 || score > 10 {
		return nil, fmt.Errorf("urgency_score %d out of range", score)
	}

	summary := strings.TrimSpace(root.Get("summary").String())
	if summary == "" {
		return nil, fmt.Errorf("missing summary")
	}

	items := root.Get("action_items")
	if !items.Exists() || !items.IsArray() {
		return nil, fmt.Errorf("missing action_items array")
	}
	var actionItems []string
	for _, item := range items.Array() {
		if text := strings.TrimSpace(item.String()); text != "" {
			actionItems = append(actionItems, text)
		}
	}

	return &domain.AnalysisResult{
		TicketID:       ticketID,
		EscalationType: escalationType,
		UrgencyScore:   score,
		Summary:        summary,
		ActionItems:    actionItems,
		ComputedAt:     at,
	}, nil
}

// extractJSONObject pulls the outermost JSON object out of model output that
// may be wrapped in markdown fences or prose.
func extractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("json object not found")
	}
	return text[start : end+1], nil
}
