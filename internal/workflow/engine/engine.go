package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/jobprep/internal/workflow"
	"github.com/kingrea/jobprep/internal/workflow/resolver"
	"github.com/kingrea/jobprep/internal/workflow/scheduler"
)

// Engine coordinates the resolver and scheduler while dispatching tasks.
type Engine struct {
	executor Executor
	writer   OutputWriter
	observer Observer
	journals JournalFactory
	clock    func() time.Time
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithOutputWriter persists outputs of tasks that declare an output file.
func WithOutputWriter(writer OutputWriter) Option {
	return func(e *Engine) {
		e.writer = writer
	}
}

// WithObserver registers a callback for node events.
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// WithJournal records run progress to a leveled journal scoped per run.
func WithJournal(factory JournalFactory) Option {
	return func(e *Engine) {
		e.journals = factory
	}
}

// New wires an engine to the executor that performs task work.
func New(executor Executor, opts ...Option) (*Engine, error) {
	if executor == nil {
		return nil, fmt.Errorf("workflow engine: executor is required")
	}
	engine := &Engine{
		executor: executor,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// RunRequest starts a task graph.
type RunRequest struct {
	Definition workflow.Definition
	// RunID is generated when empty.
	RunID string
}

// Run executes every task of the definition and returns the final state. The
// first task failure cancels the tasks running beside it, stops scheduling and
// is returned as a *NodeError. Nothing is retried and files already written
// are left in place.
func (e *Engine) Run(ctx context.Context, req RunRequest) (State, error) {
	res, err := resolver.New(req.Definition)
	if err != nil {
		return State{}, err
	}
	def := res.Definition()
	sched, err := scheduler.New(res)
	if err != nil {
		return State{}, err
	}
	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = generateRunID(def.ID)
	}
	state := State{
		RunID:      runID,
		WorkflowID: def.ID,
		Status:     StatusRunning,
		StartedAt:  e.now(),
	}
	progress := resolver.NewProgress()
	outputs := map[string]string{}
	runs := map[string]NodeRun{}
	journal := e.journalFor(runID)
	journal.Info("workflow=%s started", def.ID)

	finish := func(runErr error) (State, error) {
		res.Refresh(progress)
		state.Nodes = summarizeNodes(res, runs)
		state.Outputs = cloneOutputs(outputs)
		state.FinishedAt = e.now()
		if runErr != nil {
			state.Status = StatusError
			state.StatusReason = runErr.Error()
			journal.Error("failed: %v", runErr)
			return state, runErr
		}
		state.Status = StatusComplete
		journal.Info("complete")
		return state, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		res.Refresh(progress)
		if res.Done() {
			return finish(nil)
		}
		batch, err := sched.Runnable(scheduler.RunnableRequest{MaxParallel: def.Runtime.MaxParallel})
		if err != nil {
			return finish(err)
		}
		if len(batch.Nodes) == 0 {
			return finish(fmt.Errorf("workflow engine: %s has no runnable tasks", def.ID))
		}
		results, failed := e.runBatch(ctx, runID, journal, batch.Nodes, outputs)
		for _, result := range results {
			runs[result.id] = result.run
			if result.err != nil {
				progress.Failed[result.id] = result.err
				continue
			}
			progress.Completed[result.id] = true
			outputs[result.id] = result.output
		}
		if failed >= 0 {
			return finish(&NodeError{NodeID: results[failed].id, Err: results[failed].err})
		}
	}
}

type nodeResult struct {
	id     string
	output string
	run    NodeRun
	err    error
}

// runBatch executes the batch concurrently and waits for all of it. The
// returned index points at the first task to fail, or -1.
func (e *Engine) runBatch(ctx context.Context, runID string, journal Journal, nodes []*resolver.Node, outputs map[string]string) ([]nodeResult, int) {
	results := make([]nodeResult, len(nodes))
	group, gctx := errgroup.WithContext(ctx)
	var once sync.Once
	failed := -1
	for i, node := range nodes {
		i := i
		req := NodeRequest{
			RunID:   runID,
			Task:    node.Ref.Clone(),
			Context: contextOutputs(node.Dependencies, outputs),
		}
		group.Go(func() error {
			result := e.runNode(gctx, journal, req)
			results[i] = result
			if result.err != nil {
				once.Do(func() { failed = i })
			}
			return result.err
		})
	}
	// Every task reports its own error in results; Wait only joins the batch.
	_ = group.Wait()
	return results, failed
}

func (e *Engine) runNode(ctx context.Context, journal Journal, req NodeRequest) nodeResult {
	task := req.Task
	result := nodeResult{id: task.ID}
	result.run.StartedAt = e.now()
	e.emit(NodeEvent{RunID: req.RunID, NodeID: task.ID, Agent: task.Agent, Kind: EventStarted, At: result.run.StartedAt})
	journal.Info("task=%s agent=%s started", task.ID, task.Agent)

	output, err := e.executor.Execute(ctx, req)
	if err == nil && task.OutputFile != "" && e.writer != nil {
		if writeErr := e.writer.WriteOutput(task.OutputFile, output); writeErr != nil {
			err = fmt.Errorf("write %s: %w", task.OutputFile, writeErr)
		} else {
			result.run.OutputFile = task.OutputFile
		}
	}
	result.run.FinishedAt = e.now()
	if err != nil {
		result.err = err
		result.run.Error = errorString(err)
		e.emit(NodeEvent{RunID: req.RunID, NodeID: task.ID, Agent: task.Agent, Kind: EventFailed, Err: err, At: result.run.FinishedAt})
		journal.Error("task=%s failed: %v", task.ID, err)
		return result
	}
	result.output = output
	e.emit(NodeEvent{RunID: req.RunID, NodeID: task.ID, Agent: task.Agent, Kind: EventCompleted, Output: output, At: result.run.FinishedAt})
	journal.Info("task=%s completed (%d bytes)", task.ID, len(output))
	return result
}

func contextOutputs(deps []string, outputs map[string]string) []ContextOutput {
	if len(deps) == 0 {
		return nil
	}
	out := make([]ContextOutput, 0, len(deps))
	for _, dep := range deps {
		out = append(out, ContextOutput{TaskID: dep, Output: outputs[dep]})
	}
	return out
}

func (e *Engine) emit(event NodeEvent) {
	if e.observer != nil {
		e.observer(event)
	}
}

func (e *Engine) journalFor(runID string) Journal {
	if e.journals == nil {
		return nopJournal{}
	}
	if journal := e.journals(runID); journal != nil {
		return journal
	}
	return nopJournal{}
}

func generateRunID(workflowID string) string {
	base := strings.TrimSpace(workflowID)
	if base == "" {
		base = "workflow"
	}
	base = strings.ToLower(strings.ReplaceAll(base, " ", "-"))
	return fmt.Sprintf("%s-%s", base, uuid.NewString())
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
