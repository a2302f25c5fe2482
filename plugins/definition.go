package plugins

import (
	"fmt"
	"strings"

	"github.com/kingrea/jobprep/internal/crew"
)

// normalizeOverride returns a trimmed copy of the override.
func normalizeOverride(o crew.AgentOverride) crew.AgentOverride {
	clone := crew.AgentOverride{
		Agent:     strings.TrimSpace(o.Agent),
		Role:      strings.TrimSpace(o.Role),
		Goal:      strings.TrimSpace(o.Goal),
		Backstory: strings.TrimSpace(o.Backstory),
	}
	if o.Verbose != nil {
		verbose := *o.Verbose
		clone.Verbose = &verbose
	}
	return clone
}

// ValidateOverride ensures the override targets a built-in agent and changes
// at least one field.
func ValidateOverride(o crew.AgentOverride) error {
	normalized := normalizeOverride(o)
	if normalized.Agent == "" {
		return fmt.Errorf("plugin: agent is required")
	}
	if !crew.IsAgent(normalized.Agent) {
		return fmt.Errorf("plugin: unknown agent %s (expected one of %s)", normalized.Agent, strings.Join(crew.AgentIDs(), ", "))
	}
	if normalized.Role == "" && normalized.Goal == "" && normalized.Backstory == "" && normalized.Verbose == nil {
		return fmt.Errorf("plugin %s: override does not change anything", normalized.Agent)
	}
	return nil
}
