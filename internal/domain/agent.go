package domain

// Agent is a specialized handler for triaged work. Static configuration,
// loaded at startup, read-only at runtime.
type Agent struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	IsGeneralist bool     `json:"is_generalist"`
	Restrictions []string `json:"restrictions,omitempty"`
}
