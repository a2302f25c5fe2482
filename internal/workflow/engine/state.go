package engine

import (
	"fmt"
	"time"

	"github.com/kingrea/jobprep/internal/workflow/resolver"
)

// Status enumerates coarse run phases.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// State captures the snapshot of a run. On failure it is diagnostic only.
type State struct {
	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
	Status     Status `json:"status"`
	// StatusReason provides a human readable explanation for failed runs.
	StatusReason string            `json:"status_reason,omitempty"`
	Nodes        []NodeStatus      `json:"nodes"`
	Outputs      map[string]string `json:"outputs,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at,omitempty"`
}

// Node returns the status for the given task id.
func (s State) Node(id string) (NodeStatus, bool) {
	for _, node := range s.Nodes {
		if node.ID == id {
			return node, true
		}
	}
	return NodeStatus{}, false
}

// NodeStatus exposes resolver metadata for a task.
type NodeStatus struct {
	ID           string             `json:"id"`
	Agent        string             `json:"agent"`
	Name         string             `json:"name"`
	State        resolver.NodeState `json:"state"`
	Dependencies []string           `json:"dependencies,omitempty"`
	Dependents   []string           `json:"dependents,omitempty"`
	BlockedBy    []string           `json:"blocked_by,omitempty"`
	Error        string             `json:"error,omitempty"`
	LastRun      *NodeRun           `json:"last_run,omitempty"`
}

// NodeRun records the runtime result of a task execution.
type NodeRun struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	OutputFile string    `json:"output_file,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// NodeError identifies the task whose failure aborted a run.
type NodeError struct {
	NodeID string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("task %s: %v", e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

func summarizeNodes(res *resolver.Resolver, runs map[string]NodeRun) []NodeStatus {
	nodes := res.Nodes()
	result := make([]NodeStatus, 0, len(nodes))
	for _, node := range nodes {
		ref := node.Ref
		status := NodeStatus{
			ID:           node.ID,
			Agent:        ref.Agent,
			Name:         pickName(ref.Name, node.ID),
			State:        node.State,
			Dependencies: cloneStrings(node.Dependencies),
			Dependents:   cloneStrings(node.Dependents),
			BlockedBy:    cloneStrings(node.BlockedBy),
		}
		if node.Err != nil {
			status.Error = node.Err.Error()
		}
		if run, ok := runs[node.ID]; ok {
			copyRun := run
			status.LastRun = &copyRun
		}
		result = append(result, status)
	}
	return result
}

func pickName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func cloneOutputs(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for id, value := range values {
		out[id] = value
	}
	return out
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
