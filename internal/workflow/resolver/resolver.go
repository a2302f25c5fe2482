package resolver

import (
	"fmt"
	"sort"

	"github.com/kingrea/jobprep/internal/workflow"
)

// NodeState represents the resolver's understanding of a task's readiness.
type NodeState string

const (
	NodeStateUnknown  NodeState = "unknown"
	NodeStatePending  NodeState = "pending"
	NodeStateReady    NodeState = "ready"
	NodeStateBlocked  NodeState = "blocked"
	NodeStateRunning  NodeState = "running"
	NodeStateComplete NodeState = "complete"
	NodeStateError    NodeState = "error"
)

// Node captures a task plus its dependency metadata.
type Node struct {
	ID           string
	Ref          workflow.TaskRef
	Dependencies []string
	Dependents   []string

	State     NodeState
	BlockedBy []string
	Err       error
}

// Progress is the engine's view of execution used to derive node states.
type Progress struct {
	Completed map[string]bool
	Running   map[string]bool
	Failed    map[string]error
}

// NewProgress returns an empty progress snapshot.
func NewProgress() Progress {
	return Progress{
		Completed: map[string]bool{},
		Running:   map[string]bool{},
		Failed:    map[string]error{},
	}
}

// Resolver builds and evaluates the task dependency graph.
type Resolver struct {
	definition workflow.Definition
	nodes      map[string]*Node
	orderedIDs []string
}

// New constructs a resolver for the provided definition. Invalid or cyclic
// graphs are rejected here so nothing is ever scheduled from them.
func New(def workflow.Definition) (*Resolver, error) {
	normalized, err := def.Normalized()
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*Node, len(normalized.Tasks))
	ordered := make([]string, 0, len(normalized.Tasks))
	for _, ref := range normalized.Tasks {
		nodes[ref.ID] = &Node{
			ID:           ref.ID,
			Ref:          ref,
			Dependencies: ref.Context,
			State:        NodeStatePending,
		}
		ordered = append(ordered, ref.ID)
	}
	for _, id := range ordered {
		node := nodes[id]
		for _, depID := range node.Dependencies {
			dep, ok := nodes[depID]
			if !ok {
				return nil, fmt.Errorf("workflow %s: dependency %s referenced by %s not declared", normalized.ID, depID, node.ID)
			}
			dep.Dependents = append(dep.Dependents, node.ID)
		}
	}
	for _, node := range nodes {
		if len(node.Dependents) > 1 {
			sort.Strings(node.Dependents)
		}
	}
	return &Resolver{
		definition: normalized,
		nodes:      nodes,
		orderedIDs: ordered,
	}, nil
}

// Definition returns a clone of the resolver's normalized definition.
func (r *Resolver) Definition() workflow.Definition {
	return r.definition.Clone()
}

// Nodes returns the nodes in declaration order.
func (r *Resolver) Nodes() []*Node {
	out := make([]*Node, 0, len(r.orderedIDs))
	for _, id := range r.orderedIDs {
		if node, ok := r.nodes[id]; ok {
			out = append(out, node)
		}
	}
	return out
}

// Node retrieves a specific task node by id.
func (r *Resolver) Node(id string) (*Node, bool) {
	node, ok := r.nodes[id]
	return node, ok
}

// Refresh re-evaluates every node against the provided progress snapshot.
// Callers should invoke Refresh before querying for runnable tasks.
func (r *Resolver) Refresh(progress Progress) {
	for _, node := range r.nodes {
		node.Err = nil
		node.BlockedBy = nil
		switch {
		case progress.Failed[node.ID] != nil:
			node.State = NodeStateError
			node.Err = progress.Failed[node.ID]
		case progress.Completed[node.ID]:
			node.State = NodeStateComplete
		case progress.Running[node.ID]:
			node.State = NodeStateRunning
		default:
			node.State = NodeStatePending
		}
	}
	for _, node := range r.nodes {
		if node.State != NodeStatePending {
			continue
		}
		blockers := r.blockers(node)
		if len(blockers) == 0 {
			node.State = NodeStateReady
		} else {
			node.State = NodeStateBlocked
			node.BlockedBy = blockers
		}
	}
}

// Ready returns nodes that are runnable because all dependencies are complete.
func (r *Resolver) Ready() []*Node {
	var ready []*Node
	for _, id := range r.orderedIDs {
		node := r.nodes[id]
		if node.State == NodeStateReady {
			ready = append(ready, node)
		}
	}
	return ready
}

// Done reports whether every node has completed.
func (r *Resolver) Done() bool {
	for _, node := range r.nodes {
		if node.State != NodeStateComplete {
			return false
		}
	}
	return true
}

// Queue returns tasks that must run to satisfy the requested targets. If no
// targets are provided, every incomplete task is considered. Dependencies are
// returned before the tasks that require them, and completed tasks are skipped.
func (r *Resolver) Queue(targets ...string) ([]*Node, error) {
	if len(targets) == 0 {
		targets = append([]string{}, r.orderedIDs...)
	}
	visited := make(map[string]bool, len(targets))
	ordered := make([]*Node, 0, len(r.nodes))
	var visit func(string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		node, ok := r.nodes[id]
		if !ok {
			return fmt.Errorf("workflow: unknown task %s", id)
		}
		visited[id] = true
		for _, dep := range node.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		if node.State != NodeStateComplete {
			ordered = append(ordered, node)
		}
		return nil
	}
	for _, id := range targets {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

func (r *Resolver) blockers(node *Node) []string {
	if len(node.Dependencies) == 0 {
		return nil
	}
	blockers := make([]string, 0, len(node.Dependencies))
	for _, depID := range node.Dependencies {
		dep, ok := r.nodes[depID]
		if !ok || dep.State != NodeStateComplete {
			blockers = append(blockers, depID)
		}
	}
	if len(blockers) == 0 {
		return nil
	}
	return blockers
}
