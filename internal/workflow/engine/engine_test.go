package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kingrea/jobprep/internal/workflow"
	"github.com/kingrea/jobprep/internal/workflow/resolver"
)

func crewDefinition() workflow.Definition {
	return workflow.Definition{
		ID: "job-application",
		Tasks: []workflow.TaskRef{
			{ID: "research", Agent: "researcher", Async: true},
			{ID: "profile", Agent: "profiler", Async: true},
			{ID: "strategy", Agent: "resume_strategist", Context: []string{"research", "profile"}, OutputFile: "tailored_resume.md"},
			{ID: "interview", Agent: "interview_preparer", Context: []string{"research", "profile", "strategy"}, OutputFile: "interview_materials.md"},
		},
	}
}

type recordingExecutor struct {
	mu       sync.Mutex
	events   []string
	requests map[string]NodeRequest
	fail     map[string]error
	// gate makes research wait until profile has started.
	profileStarted chan struct{}
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{
		requests:       map[string]NodeRequest{},
		fail:           map[string]error{},
		profileStarted: make(chan struct{}),
	}
}

func (r *recordingExecutor) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingExecutor) Execute(ctx context.Context, req NodeRequest) (string, error) {
	id := req.Task.ID
	r.mu.Lock()
	r.requests[id] = req
	err := r.fail[id]
	r.mu.Unlock()
	r.record("start:" + id)
	switch id {
	case "profile":
		close(r.profileStarted)
	case "research":
		select {
		case <-r.profileStarted:
		case <-time.After(2 * time.Second):
			return "", errors.New("research and profile did not overlap")
		}
	}
	if err != nil {
		return "", err
	}
	r.record("end:" + id)
	return "output of " + id, nil
}

func (r *recordingExecutor) index(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if e == event {
			return i
		}
	}
	return -1
}

type memoryWriter struct {
	mu    sync.Mutex
	files map[string]string
}

func (w *memoryWriter) WriteOutput(fileName, body string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files == nil {
		w.files = map[string]string{}
	}
	w.files[fileName] = body
	return nil
}

func TestEngineRunRespectsDependencyOrder(t *testing.T) {
	exec := newRecordingExecutor()
	eng, err := New(exec)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	state, err := eng.Run(context.Background(), RunRequest{Definition: crewDefinition()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.Status != StatusComplete {
		t.Fatalf("expected complete status, got %s", state.Status)
	}
	strategyStart := exec.index("start:strategy")
	for _, dep := range []string{"end:research", "end:profile"} {
		if idx := exec.index(dep); idx < 0 || idx > strategyStart {
			t.Fatalf("strategy started before %s: %v", dep, exec.events)
		}
	}
	interviewStart := exec.index("start:interview")
	if idx := exec.index("end:strategy"); idx < 0 || idx > interviewStart {
		t.Fatalf("interview started before strategy finished: %v", exec.events)
	}
	if len(exec.events) != 8 {
		t.Fatalf("expected each task to run exactly once, got %v", exec.events)
	}
}

func TestEngineRunPassesContextInDeclarationOrder(t *testing.T) {
	exec := newRecordingExecutor()
	eng, _ := New(exec)
	if _, err := eng.Run(context.Background(), RunRequest{Definition: crewDefinition()}); err != nil {
		t.Fatalf("run: %v", err)
	}
	interview := exec.requests["interview"]
	var got []string
	for _, item := range interview.Context {
		got = append(got, fmt.Sprintf("%s=%s", item.TaskID, item.Output))
	}
	want := "research=output of research,profile=output of profile,strategy=output of strategy"
	if strings.Join(got, ",") != want {
		t.Fatalf("interview context = %v", got)
	}
	if len(exec.requests["research"].Context) != 0 {
		t.Fatalf("research should receive no context")
	}
}

func TestEngineRunWritesOutputFilesVerbatim(t *testing.T) {
	exec := newRecordingExecutor()
	writer := &memoryWriter{}
	eng, _ := New(exec, WithOutputWriter(writer))
	state, err := eng.Run(context.Background(), RunRequest{Definition: crewDefinition(), RunID: "run-1"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(writer.files) != 2 {
		t.Fatalf("expected 2 files, got %v", writer.files)
	}
	if writer.files["tailored_resume.md"] != "output of strategy" {
		t.Fatalf("unexpected resume body %q", writer.files["tailored_resume.md"])
	}
	if writer.files["interview_materials.md"] != "output of interview" {
		t.Fatalf("unexpected interview body %q", writer.files["interview_materials.md"])
	}
	if state.RunID != "run-1" {
		t.Fatalf("expected provided run id, got %s", state.RunID)
	}
	node, ok := state.Node("strategy")
	if !ok || node.LastRun == nil || node.LastRun.OutputFile != "tailored_resume.md" {
		t.Fatalf("unexpected strategy status %+v", node)
	}
	if state.Outputs["interview"] != "output of interview" {
		t.Fatalf("outputs missing interview: %v", state.Outputs)
	}
}

func TestEngineRunStopsOnFirstFailure(t *testing.T) {
	exec := newRecordingExecutor()
	exec.fail["profile"] = errors.New("github unreachable")
	writer := &memoryWriter{}
	eng, _ := New(exec, WithOutputWriter(writer))
	state, err := eng.Run(context.Background(), RunRequest{Definition: crewDefinition()})
	var nodeErr *NodeError
	if !errors.As(err, &nodeErr) {
		t.Fatalf("expected *NodeError, got %v", err)
	}
	if nodeErr.NodeID != "profile" || !strings.Contains(err.Error(), "github unreachable") {
		t.Fatalf("unexpected node error %v", nodeErr)
	}
	if state.Status != StatusError {
		t.Fatalf("expected error status, got %s", state.Status)
	}
	if exec.index("start:strategy") >= 0 || exec.index("start:interview") >= 0 {
		t.Fatalf("downstream tasks must not start: %v", exec.events)
	}
	if len(writer.files) != 0 {
		t.Fatalf("no files should be written, got %v", writer.files)
	}
	profile, _ := state.Node("profile")
	if profile.State != resolver.NodeStateError {
		t.Fatalf("expected profile error state, got %s", profile.State)
	}
}

func TestEngineRunCancelsSiblingsOnFailure(t *testing.T) {
	exec := ExecutorFunc(func(ctx context.Context, req NodeRequest) (string, error) {
		if req.Task.ID == "profile" {
			return "", errors.New("boom")
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(2 * time.Second):
			return "", errors.New("sibling was not cancelled")
		}
	})
	eng, _ := New(exec)
	_, err := eng.Run(context.Background(), RunRequest{Definition: crewDefinition()})
	var nodeErr *NodeError
	if !errors.As(err, &nodeErr) || nodeErr.NodeID != "profile" {
		t.Fatalf("expected profile failure, got %v", err)
	}
}

func TestEngineRunObserverAndClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	counts := map[EventKind]int{}
	observer := func(event NodeEvent) {
		mu.Lock()
		defer mu.Unlock()
		counts[event.Kind]++
		if !event.At.Equal(fixed) {
			t.Errorf("unexpected event time %v", event.At)
		}
	}
	exec := ExecutorFunc(func(ctx context.Context, req NodeRequest) (string, error) {
		return req.Task.ID, nil
	})
	eng, _ := New(exec, WithObserver(observer), WithClock(func() time.Time { return fixed }))
	state, err := eng.Run(context.Background(), RunRequest{Definition: crewDefinition()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if counts[EventStarted] != 4 || counts[EventCompleted] != 4 || counts[EventFailed] != 0 {
		t.Fatalf("unexpected event counts %v", counts)
	}
	if !state.StartedAt.Equal(fixed) || !state.FinishedAt.Equal(fixed) {
		t.Fatalf("clock not applied: %v %v", state.StartedAt, state.FinishedAt)
	}
	if !strings.HasPrefix(state.RunID, "job-application-") {
		t.Fatalf("unexpected generated run id %s", state.RunID)
	}
}

func TestEngineRunRejectsInvalidGraphs(t *testing.T) {
	called := false
	exec := ExecutorFunc(func(ctx context.Context, req NodeRequest) (string, error) {
		called = true
		return "", nil
	})
	def := workflow.Definition{
		ID: "cyclic",
		Tasks: []workflow.TaskRef{
			{ID: "a", Agent: "x", Context: []string{"b"}},
			{ID: "b", Agent: "x", Context: []string{"a"}},
		},
	}
	eng, _ := New(exec)
	if _, err := eng.Run(context.Background(), RunRequest{Definition: def}); !errors.Is(err, workflow.ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if called {
		t.Fatalf("executor must not run for invalid graphs")
	}
}

func TestEngineRunHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := ExecutorFunc(func(ctx context.Context, req NodeRequest) (string, error) {
		t.Errorf("executor should not run")
		return "", nil
	})
	eng, _ := New(exec)
	state, err := eng.Run(ctx, RunRequest{Definition: crewDefinition()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if state.Status != StatusError {
		t.Fatalf("expected error status, got %s", state.Status)
	}
}

type recordingJournal struct {
	mu      sync.Mutex
	runIDs  []string
	entries []string
}

func (j *recordingJournal) factory(runID string) Journal {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runIDs = append(j.runIDs, runID)
	return j
}

func (j *recordingJournal) add(level, format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, level+" "+fmt.Sprintf(format, args...))
}

func (j *recordingJournal) Info(format string, args ...any)  { j.add("INFO", format, args...) }
func (j *recordingJournal) Warn(format string, args ...any)  { j.add("WARN", format, args...) }
func (j *recordingJournal) Error(format string, args ...any) { j.add("ERROR", format, args...) }

func TestEngineRunJournalsUnderRunID(t *testing.T) {
	exec := newRecordingExecutor()
	exec.fail["interview"] = errors.New("model unavailable")
	journal := &recordingJournal{}
	eng, err := New(exec, WithJournal(journal.factory))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := eng.Run(context.Background(), RunRequest{Definition: crewDefinition(), RunID: "run-7"}); err == nil {
		t.Fatalf("expected interview failure")
	}
	if len(journal.runIDs) != 1 || journal.runIDs[0] != "run-7" {
		t.Fatalf("expected one journal scoped to run-7, got %v", journal.runIDs)
	}
	joined := strings.Join(journal.entries, "\n")
	for _, want := range []string{
		"INFO workflow=job-application started",
		"INFO task=strategy completed",
		"ERROR task=interview failed: model unavailable",
		"ERROR failed: task interview: model unavailable",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("journal missing %q:\n%s", want, joined)
		}
	}
	if strings.Contains(joined, "run=") {
		t.Fatalf("entries should leave run scoping to the journal:\n%s", joined)
	}
}
