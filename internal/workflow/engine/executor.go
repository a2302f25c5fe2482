package engine

import (
	"context"
	"time"

	"github.com/kingrea/jobprep/internal/workflow"
)

// ContextOutput is the completed output of a task another task depends on.
type ContextOutput struct {
	TaskID string
	Output string
}

// NodeRequest is handed to the Executor for a single task.
type NodeRequest struct {
	RunID string
	Task  workflow.TaskRef
	// Context holds the outputs of Task.Context in declaration order.
	Context []ContextOutput
}

// Executor performs the work for one task and returns its textual output.
type Executor interface {
	Execute(ctx context.Context, req NodeRequest) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req NodeRequest) (string, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req NodeRequest) (string, error) {
	return f(ctx, req)
}

// OutputWriter persists the output of tasks that declare an OutputFile.
type OutputWriter interface {
	WriteOutput(fileName, body string) error
}

// Journal receives leveled progress entries for one run. *logbook.RunJournal
// satisfies it.
type Journal interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// JournalFactory scopes a journal to a run id.
type JournalFactory func(runID string) Journal

type nopJournal struct{}

func (nopJournal) Info(string, ...any)  {}
func (nopJournal) Warn(string, ...any)  {}
func (nopJournal) Error(string, ...any) {}

// EventKind enumerates node lifecycle events.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// NodeEvent reports a task transition to observers.
type NodeEvent struct {
	RunID  string
	NodeID string
	Agent  string
	Kind   EventKind
	Output string
	Err    error
	At     time.Time
}

// Observer is notified of node events. Tasks in the same batch run
// concurrently, so observers must be safe for concurrent use.
type Observer func(NodeEvent)
