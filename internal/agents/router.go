// Package agents routes triaged work to the best-fit specialized handler.
// Routing is plain keyword matching over an ordered rule table: precedence
// is data, not control flow, so it can be inspected and tested on its own.
package agents

import (
	"strings"

	"github.com/spec-kit/triage-service/internal/domain"
)

// RoutingRule binds a keyword group to an agent. Rules are evaluated in
// order; the first rule with any keyword present in the task description
// nominates its agent. Domain-exclusive vendor terms come before category
// terms, which come before generic role terms.
type RoutingRule struct {
	AgentID  string
	TaskType string
	Keywords []string
}

// Router maps task descriptions to agents.
type Router struct {
	agents     map[string]domain.Agent
	rules      []RoutingRule
	generalist domain.Agent
}

// NewRouter builds a router over static agent configuration. It panics when
// no generalist is configured, since the generalist is the routing backstop.
func NewRouter(agentList []domain.Agent, rules []RoutingRule) *Router {
	byID := make(map[string]domain.Agent, len(agentList))
	var generalist *domain.Agent
	for _, agent := range agentList {
		byID[agent.ID] = agent
		if agent.IsGeneralist {
			g := agent
			generalist = &g
		}
	}
	if generalist == nil {
		panic("agents: a generalist agent is required")
	}
	return &Router{agents: byID, rules: rules, generalist: *generalist}
}

// Route returns the first specialist whose rule matches the description and
// whose capabilities cover the rule's task type. When nothing matches, or a
// nominated specialist cannot handle the task type, the generalist wins.
func (r *Router) Route(taskDescription string) domain.Agent {
	normalized := strings.ToLower(taskDescription)
	for _, rule := range r.rules {
		if !matchesAny(normalized, rule.Keywords) {
			continue
		}
		agent, ok := r.agents[rule.AgentID]
		if !ok || agent.IsGeneralist {
			continue
		}
		if CanHandle(agent, rule.TaskType) {
			return agent
		}
	}
	return r.generalist
}

// RouteTicket routes a classified ticket by its escalation type and summary.
func (r *Router) RouteTicket(analysis domain.AnalysisResult) domain.Agent {
	desc := strings.ToLower(string(analysis.EscalationType)) + " " + analysis.Summary
	return r.Route(desc)
}

// Generalist returns the configured backstop agent.
func (r *Router) Generalist() domain.Agent {
	return r.generalist
}

// CanHandle reports whether the agent declares a capability covering the
// task type (substring match in either direction).
func CanHandle(agent domain.Agent, taskType string) bool {
	needle := strings.ToLower(strings.TrimSpace(taskType))
	if needle == "" {
		return agent.IsGeneralist
	}
	for _, capability := range agent.Capabilities {
		c := strings.ToLower(capability)
		if strings.Contains(c, needle) || strings.Contains(needle, c) {
			return true
		}
	}
	return agent.IsGeneralist
}

func matchesAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
