package tools

// Policy defines which tools are visible while executing inside a graph.
// Deny entries override allow entries; "*" matches every tool.
type Policy struct {
	Allow []string `json:"allow"`
	Deny  []string `json:"deny"`
}

// Allows checks if a tool is reachable under the policy. A nil policy
// allows everything.
func (p *Policy) Allows(toolName string) bool {
	if p == nil {
		return true
	}

	// Deny list wins over allow list
	for _, denied := range p.Deny {
		if denied == toolName || denied == "*" {
			return false
		}
	}

	for _, allowed := range p.Allow {
		if allowed == toolName || allowed == "*" {
			return true
		}
	}

	// No explicit allow means deny
	return false
}

// AllowAll returns a policy that permits every tool.
func AllowAll() *Policy {
	return &Policy{Allow: []string{"*"}}
}
