package agents

import "github.com/spec-kit/triage-service/internal/domain"

// DefaultAgents is the static specialist roster loaded at startup.
func DefaultAgents() []domain.Agent {
	return []domain.Agent{
		{
			ID:           "twilio-a2p",
			Name:         "Twilio / A2P Specialist",
			Capabilities: []string{"twilio", "a2p", "sms", "carrier", "campaign registration"},
			Restrictions: []string{"no code changes", "no billing adjustments"},
		},
		{
			ID:           "billing",
			Name:         "Billing Specialist",
			Capabilities: []string{"billing", "invoice", "refund", "subscription"},
			Restrictions: []string{"no code changes"},
		},
		{
			ID:           "dev",
			Name:         "Developer Escalations",
			Capabilities: []string{"bug", "dev", "code", "stack trace", "regression"},
			Restrictions: []string{"no customer-facing replies"},
		},
		{
			ID:           "content",
			Name:         "Content & Docs",
			Capabilities: []string{"content", "docs", "copy", "knowledge base"},
			Restrictions: []string{"no code changes", "no account changes"},
		},
		{
			ID:           "support-generalist",
			Name:         "Support Generalist",
			Capabilities: []string{"support"},
			IsGeneralist: true,
		},
	}
}

// DefaultRules is the ordered routing table. Vendor/platform-exclusive
// keyword groups outrank category groups, which outrank generic role terms:
// domain specificity is a stronger signal than role keywords.
func DefaultRules() []RoutingRule {
	return []RoutingRule{
		// Domain-exclusive vendor terms.
		{AgentID: "twilio-a2p", TaskType: "twilio", Keywords: []string{
			"twilio", "a2p", "10dlc", "carrier", "campaign flag", "suspension", "toll-free verification",
		}},
		// Category-specific terms.
		{AgentID: "billing", TaskType: "billing", Keywords: []string{
			"billing", "invoice", "refund", "charge", "subscription", "payment",
		}},
		{AgentID: "dev", TaskType: "bug", Keywords: []string{
			"bug", "crash", "exception", "stack trace", "500 error", "regression", "broken",
		}},
		// Generic development/content terms.
		{AgentID: "dev", TaskType: "dev", Keywords: []string{
			"code", "api", "integration", "webhook",
		}},
		{AgentID: "content", TaskType: "content", Keywords: []string{
			"content", "docs", "documentation", "article", "copy",
		}},
	}
}
