package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/spec-kit/triage-service/internal/domain"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// EvaluateDraft scores a generated reply against the ticket it answers.
// Same contract as Classify: one strict retry on malformed output, nil
// result on failure. Callers treat QA as best-effort.
func (a *Adapter) EvaluateDraft(ctx context.Context, ticket domain.Ticket, draftText string) (*domain.QAResult, error) {
	raw, err := a.completer.Classify(ctx, buildQAPrompt(ticket, draftText, false))
	if err != nil && !apperrors.HasCode(err, apperrors.CodeMalformedResponse) {
		return nil, err
	}
	if err == nil {
		result, parseErr := parseQAResult(raw)
		if parseErr == nil {
			return result, nil
		}
	}

	raw, err = a.completer.Classify(ctx, buildQAPrompt(ticket, draftText, true))
	if err != nil {
		return nil, err
	}
	result, parseErr := parseQAResult(raw)
	if parseErr != nil {
		return nil, apperrors.NewMalformedResponse(
			fmt.Sprintf("qa output unparseable after retry for ticket %d", ticket.ID), parseErr)
	}
	return result, nil
}

func buildQAPrompt(ticket domain.Ticket, draftText string, strict bool) string {
	var b strings.Builder
	b.WriteString("Evaluate the draft reply below against the customer's ticket.\n")
	b.WriteString("Return JSON only, matching this schema exactly:\n")
	b.WriteString(`{"score":0,"overall":"pass|fail",` +
		`"criteria":{"addresses_issue":{"pass":true},"tone":{"pass":true},"accuracy":{"pass":true}},` +
		`"fixes":["suggested fix"]}` + "\n")
	b.WriteString("score is an integer from 0 to 100.\n")
	if strict {
		b.WriteString("Your previous answer was not valid JSON for this schema. ")
		b.WriteString("Output a single JSON object with exactly those keys. No prose.\n")
	}
	b.WriteString("\nTicket subject: " + ticket.Subject + "\n")
	b.WriteString("Ticket body:\n" + ticket.BodyText + "\n")
	b.WriteString("\nDraft reply:\n" + draftText + "\n")
	return b.String()
}

func parseQAResult(raw string) (*domain.QAResult, error) {
	payload, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(payload) {
		return nil, fmt.Errorf("invalid json")
	}
	root := gjson.Parse(payload)

	score := root.Get("score")
	if !score.Exists() || score.Type != gjson.Number {
		return nil, fmt.Errorf("missing or non-numeric score")
	}
	value := int(score.Int())
	if value < 0 || value > 100 {
		return nil, fmt.Errorf("score %d out of range", value)
	}

	var overall domain.QAOverall
	switch strings.ToLower(strings.TrimSpace(root.Get("overall").String())) {
	case "pass":
		overall = domain.QAPass
	case "fail":
		overall = domain.QAFail
	default:
		return nil, fmt.Errorf("unknown overall verdict %q", root.Get("overall").String())
	}

	criteria := make(map[string]domain.QACriterion)
	root.Get("criteria").ForEach(func(key, criterion gjson.Result) bool {
		criteria[key.String()] = domain.QACriterion{Pass: criterion.Get("pass").Bool()}
		return true
	})

	var fixes []string
	for _, fix := range root.Get("fixes").Array() {
		if text := strings.TrimSpace(fix.String()); text != "" {
			fixes = append(fixes, text)
		}
	}

	return &domain.QAResult{
		Score:    value,
		Overall:  overall,
		Criteria: criteria,
		Fixes:    fixes,
	}, nil
}
