// Package agent runs a single agent against a task: it builds the prompts
// from the agent profile, then drives a bounded tool-calling conversation with
// the model until it produces a final answer.
package agent

import "fmt"

// AgentSpec describes an agent profile. Specs are built fresh for every run
// and never mutated afterwards.
type AgentSpec struct {
	ID        string
	Role      string
	Goal      string
	Backstory string
	// Tools lists the tool names the agent may call.
	Tools   []string
	Verbose bool
}

// Validate ensures the spec is usable.
func (s AgentSpec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("agent: id is required")
	}
	if s.Role == "" {
		return fmt.Errorf("agent %s: role is required", s.ID)
	}
	if s.Goal == "" {
		return fmt.Errorf("agent %s: goal is required", s.ID)
	}
	return nil
}

// Clone returns a deep copy of the spec.
func (s AgentSpec) Clone() AgentSpec {
	clone := s
	if len(s.Tools) > 0 {
		clone.Tools = append([]string(nil), s.Tools...)
	}
	return clone
}

// ContextBlock is the output of an earlier task handed to the agent.
type ContextBlock struct {
	Title  string
	Output string
}

// Assignment is a fully rendered task for one agent.
type Assignment struct {
	Agent          AgentSpec
	Description    string
	ExpectedOutput string
	Guidelines     []string
	Context        []ContextBlock
}
