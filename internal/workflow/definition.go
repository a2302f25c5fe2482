package workflow

import (
	"fmt"
	"strings"
)

// Definition declares the task graph a crew executes. Each task is bound to
// exactly one agent and may consume the outputs of the tasks listed in its
// Context.
type Definition struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Tasks       []TaskRef     `json:"tasks" yaml:"tasks"`
	Runtime     RuntimeConfig `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

// Clone returns a deep copy of the definition.
func (def Definition) Clone() Definition {
	clone := Definition{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Runtime:     def.Runtime,
	}
	if len(def.Tasks) > 0 {
		clone.Tasks = make([]TaskRef, len(def.Tasks))
		for i, ref := range def.Tasks {
			clone.Tasks[i] = ref.Clone()
		}
	}
	return clone
}

// Validate ensures the definition is self-consistent and acyclic.
func (def Definition) Validate() error {
	if def.ID == "" {
		return fmt.Errorf("workflow: id is required")
	}
	if len(def.Tasks) == 0 {
		return fmt.Errorf("workflow %s: at least one task is required", def.ID)
	}
	seen := map[string]struct{}{}
	for idx, ref := range def.Tasks {
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("workflow %s task[%d]: %w", def.ID, idx, err)
		}
		if _, exists := seen[ref.ID]; exists {
			return fmt.Errorf("workflow %s: duplicate task id %s", def.ID, ref.ID)
		}
		seen[ref.ID] = struct{}{}
	}
	for _, ref := range def.Tasks {
		for _, dep := range ref.Context {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("workflow %s: context %s -> %s references unknown task", def.ID, ref.ID, dep)
			}
		}
	}
	if err := def.Runtime.validate(); err != nil {
		return fmt.Errorf("workflow %s runtime: %w", def.ID, err)
	}
	if _, err := def.TopologicalOrder(); err != nil {
		return err
	}
	return nil
}

// Normalized clones the definition, trims identifiers, de-duplicates context
// lists, and validates the result.
func (def Definition) Normalized() (Definition, error) {
	clone := def.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	for i := range clone.Tasks {
		ref := &clone.Tasks[i]
		ref.ID = strings.TrimSpace(ref.ID)
		ref.Agent = strings.TrimSpace(ref.Agent)
		ref.OutputFile = strings.TrimSpace(ref.OutputFile)
		ref.Context = dedupe(ref.Context)
	}
	clone.Runtime = clone.Runtime.normalized()
	if err := clone.Validate(); err != nil {
		return Definition{}, err
	}
	return clone, nil
}

// RuntimeConfig configures execution constraints for a task graph.
type RuntimeConfig struct {
	// MaxParallel caps concurrently running async tasks; 0 means unbounded.
	MaxParallel int `json:"max_parallel,omitempty" yaml:"max_parallel,omitempty"`
}

func (cfg RuntimeConfig) normalized() RuntimeConfig {
	if cfg.MaxParallel < 0 {
		cfg.MaxParallel = 0
	}
	return cfg
}

func (cfg RuntimeConfig) validate() error {
	if cfg.MaxParallel < 0 {
		return fmt.Errorf("max_parallel must be >= 0")
	}
	return nil
}

// TaskIDs returns the task identifiers in declaration order.
func (def Definition) TaskIDs() []string {
	ids := make([]string, 0, len(def.Tasks))
	for _, ref := range def.Tasks {
		ids = append(ids, ref.ID)
	}
	return ids
}

// Task returns the task with the provided id.
func (def Definition) Task(id string) (TaskRef, bool) {
	for _, ref := range def.Tasks {
		if ref.ID == id {
			return ref.Clone(), true
		}
	}
	return TaskRef{}, false
}

// Dependencies returns the context list for a task.
func (def Definition) Dependencies(id string) []string {
	ref, ok := def.Task(id)
	if !ok {
		return nil
	}
	return ref.Context
}

// TaskRef binds a task to its agent and declares which task outputs it reads.
type TaskRef struct {
	ID          string   `json:"id" yaml:"id"`
	Agent       string   `json:"agent" yaml:"agent"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Context     []string `json:"context,omitempty" yaml:"context,omitempty"`
	// Async tasks may run alongside other async tasks.
	Async      bool   `json:"async,omitempty" yaml:"async,omitempty"`
	OutputFile string `json:"output_file,omitempty" yaml:"output_file,omitempty"`
}

// Clone returns a deep copy of the task reference.
func (ref TaskRef) Clone() TaskRef {
	clone := ref
	clone.Context = cloneStringSlice(ref.Context)
	return clone
}

// Validate ensures the reference is usable on its own.
func (ref TaskRef) Validate() error {
	if ref.ID == "" {
		return fmt.Errorf("workflow: task id is required")
	}
	if ref.Agent == "" {
		return fmt.Errorf("workflow: task %s must name an agent", ref.ID)
	}
	seen := map[string]struct{}{}
	for _, dep := range ref.Context {
		if dep == ref.ID {
			return fmt.Errorf("workflow: task %s lists itself as context", ref.ID)
		}
		if _, dup := seen[dep]; dup {
			return fmt.Errorf("workflow: task %s has duplicate context %s", ref.ID, dep)
		}
		seen[dep] = struct{}{}
	}
	return nil
}

// dedupe trims entries and drops blanks and repeats, keeping first occurrence
// order since context is handed to agents in that order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clone := make([]string, len(values))
	copy(clone, values)
	return clone
}
