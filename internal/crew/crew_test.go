package crew

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kingrea/jobprep/internal/artifact"
	"github.com/kingrea/jobprep/internal/config"
	"github.com/kingrea/jobprep/internal/llm"
	"github.com/kingrea/jobprep/internal/logbook"
	"github.com/kingrea/jobprep/internal/tools"
	"github.com/kingrea/jobprep/internal/workflow/engine"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	return cfg
}

func scenarioInputs() RunInputs {
	return RunInputs{
		JobPostingURL:   "https://jobs.lever.co/example/123",
		GitHubURL:       "https://github.com/example",
		PersonalWriteup: "I am a backend engineer who loves distributed systems.",
		Resume:          "# Jane Doe\n\n## Experience\n\nBuilt payment systems in Go.\n",
	}
}

type recordingExecutor struct {
	mu       sync.Mutex
	events   []string
	requests map[string]engine.NodeRequest
	outputs  map[string]string
	fail     map[string]error
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{requests: map[string]engine.NodeRequest{}, outputs: map[string]string{}, fail: map[string]error{}}
}

func (r *recordingExecutor) Execute(ctx context.Context, req engine.NodeRequest) (string, error) {
	r.mu.Lock()
	r.events = append(r.events, "start:"+req.Task.ID)
	r.requests[req.Task.ID] = req
	failure := r.fail[req.Task.ID]
	output, ok := r.outputs[req.Task.ID]
	r.mu.Unlock()
	if !ok {
		output = "output of " + req.Task.ID
	}
	r.mu.Lock()
	r.events = append(r.events, "end:"+req.Task.ID)
	r.mu.Unlock()
	if failure != nil {
		return "", failure
	}
	return output, nil
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

func TestKickoffRunsTasksInDependencyOrder(t *testing.T) {
	cfg := newTestConfig(t)
	exec := newRecordingExecutor()
	c, err := New(cfg, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := c.Kickoff(context.Background(), scenarioInputs())
	if err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	for _, dep := range []string{TaskResearch, TaskProfile} {
		if exec.index("end:"+dep) > exec.index("start:"+TaskStrategy) {
			t.Fatalf("strategy started before %s finished: %v", dep, exec.events)
		}
	}
	if exec.index("end:"+TaskStrategy) > exec.index("start:"+TaskInterview) {
		t.Fatalf("interview started before strategy finished: %v", exec.events)
	}
	if result.RunID == "" {
		t.Fatalf("expected run id")
	}
	if got := result.Output(TaskStrategy); got != "output of strategy" {
		t.Fatalf("unexpected strategy output %q", got)
	}
	data, err := os.ReadFile(filepath.Join(cfg.OutputsDir(), "tailored_resume.md"))
	if err != nil {
		t.Fatalf("read tailored resume: %v", err)
	}
	if string(data) != "output of strategy" {
		t.Fatalf("tailored resume should hold strategy output verbatim, got %q", data)
	}
	data, err = os.ReadFile(filepath.Join(cfg.OutputsDir(), "interview_materials.md"))
	if err != nil || string(data) != "output of interview" {
		t.Fatalf("interview materials mismatch: %q err=%v", data, err)
	}
	if len(result.Warnings()) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings())
	}
}

func TestKickoffRendersInputsAndPassesContext(t *testing.T) {
	cfg := newTestConfig(t)
	exec := newRecordingExecutor()
	c, err := New(cfg, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := scenarioInputs()
	if _, err := c.Kickoff(context.Background(), in); err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	research := exec.requests[TaskResearch].Task.Description
	if !strings.Contains(research, "("+in.JobPostingURL+")") {
		t.Fatalf("research description missing url: %q", research)
	}
	profile := exec.requests[TaskProfile].Task.Description
	if !strings.Contains(profile, in.GitHubURL) || !strings.Contains(profile, in.PersonalWriteup) {
		t.Fatalf("profile description missing inputs: %q", profile)
	}
	interview := exec.requests[TaskInterview]
	var ids []string
	for _, item := range interview.Context {
		ids = append(ids, item.TaskID)
	}
	if strings.Join(ids, ",") != "research,profile,strategy" {
		t.Fatalf("unexpected interview context order %v", ids)
	}
	if interview.Context[2].Output != "output of strategy" {
		t.Fatalf("interview should see the strategy output, got %q", interview.Context[2].Output)
	}
	staged, err := os.ReadFile(filepath.Join(cfg.InputsDir(), artifact.ResumeInputFile))
	if err != nil || string(staged) != in.Resume {
		t.Fatalf("resume not staged: %q err=%v", staged, err)
	}
}

func TestKickoffDoesNotReexpandInputValues(t *testing.T) {
	cfg := newTestConfig(t)
	exec := newRecordingExecutor()
	c, _ := New(cfg, WithExecutor(exec))
	in := scenarioInputs()
	in.PersonalWriteup = "I write {job_posting_url} literally"
	if _, err := c.Kickoff(context.Background(), in); err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	profile := exec.requests[TaskProfile].Task.Description
	if !strings.Contains(profile, "I write {job_posting_url} literally") {
		t.Fatalf("write-up should be inserted literally: %q", profile)
	}
}

func TestKickoffRejectsEmptyInputs(t *testing.T) {
	cfg := newTestConfig(t)
	exec := newRecordingExecutor()
	c, _ := New(cfg, WithExecutor(exec))
	in := scenarioInputs()
	in.GitHubURL = "   "
	in.Resume = ""
	_, err := c.Kickoff(context.Background(), in)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if strings.Join(verr.Missing, ",") != "github_url,resume" {
		t.Fatalf("unexpected missing fields %v", verr.Missing)
	}
	if !strings.HasPrefix(err.Error(), MissingInputsMessage) {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if len(exec.events) != 0 {
		t.Fatalf("executor must not run on invalid input")
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputsDir(), "tailored_resume.md")); !os.IsNotExist(err) {
		t.Fatalf("no output should be written, stat err=%v", err)
	}
}

func TestKickoffStopsOnFirstFailure(t *testing.T) {
	cfg := newTestConfig(t)
	exec := newRecordingExecutor()
	boom := errors.New("model unavailable")
	exec.fail[TaskStrategy] = boom
	c, _ := New(cfg, WithExecutor(exec))
	result, err := c.Kickoff(context.Background(), scenarioInputs())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
	var nodeErr *engine.NodeError
	if !errors.As(err, &nodeErr) || nodeErr.NodeID != TaskStrategy {
		t.Fatalf("expected NodeError for strategy, got %v", err)
	}
	if exec.index("start:"+TaskInterview) != -1 {
		t.Fatalf("interview must not run after a failure")
	}
	if result.Outputs != nil || result.Artifacts != nil {
		t.Fatalf("failed runs return no results")
	}
	for _, name := range []string{"tailored_resume.md", "interview_materials.md"} {
		if _, err := os.Stat(filepath.Join(cfg.OutputsDir(), name)); !os.IsNotExist(err) {
			t.Fatalf("%s should not exist, stat err=%v", name, err)
		}
	}
}

func TestKickoffSanitizesArtifacts(t *testing.T) {
	cfg := newTestConfig(t)
	exec := newRecordingExecutor()
	exec.outputs[TaskStrategy] = "```Summary```"
	c, _ := New(cfg, WithExecutor(exec))
	result, err := c.Kickoff(context.Background(), scenarioInputs())
	if err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	if len(result.Artifacts) != 2 {
		t.Fatalf("expected two artifacts, got %d", len(result.Artifacts))
	}
	if result.Artifacts[0].Ref.ID != artifact.TailoredResume.ID || result.Artifacts[0].Content != "Summary" {
		t.Fatalf("unexpected rendered resume %+v", result.Artifacts[0])
	}
	raw, _ := os.ReadFile(filepath.Join(cfg.OutputsDir(), "tailored_resume.md"))
	if string(raw) != "```Summary```" {
		t.Fatalf("file on disk should be raw, got %q", raw)
	}
}

func TestKickoffObserverSeesEveryTask(t *testing.T) {
	cfg := newTestConfig(t)
	var mu sync.Mutex
	completed := map[string]bool{}
	observer := func(ev engine.NodeEvent) {
		if ev.Kind == engine.EventCompleted {
			mu.Lock()
			completed[ev.NodeID] = true
			mu.Unlock()
		}
	}
	c, _ := New(cfg, WithExecutor(newRecordingExecutor()), WithObserver(observer))
	if _, err := c.Kickoff(context.Background(), scenarioInputs()); err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	for _, id := range []string{TaskResearch, TaskProfile, TaskStrategy, TaskInterview} {
		if !completed[id] {
			t.Fatalf("missing completed event for %s", id)
		}
	}
}

func TestCustomOutputNamesFlowToArtifacts(t *testing.T) {
	dir := t.TempDir()
	stateDir := filepath.Join(dir, config.StateDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := "version: 1\noutputs:\n  tailored_resume: resume_for_acme.md\n"
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	c, _ := New(cfg, WithExecutor(newRecordingExecutor()))
	result, err := c.Kickoff(context.Background(), scenarioInputs())
	if err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "resume_for_acme.md")); err != nil {
		t.Fatalf("expected custom output file: %v", err)
	}
	if result.Artifacts[0].Missing {
		t.Fatalf("artifact should resolve the custom name")
	}
}

type stubChatter struct {
	mu       sync.Mutex
	requests []llm.ChatRequest
}

func (s *stubChatter) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return &llm.ChatResponse{Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant, Content: "answer"}}}}, nil
}

func TestKickoffWithAgentRuntime(t *testing.T) {
	cfg := newTestConfig(t)
	chat := &stubChatter{}
	c, err := New(cfg, WithChatter(chat), WithOverrides(AgentOverride{Agent: AgentResearcher, Role: "Posting Analyst"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := c.Kickoff(context.Background(), scenarioInputs())
	if err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	if len(chat.requests) != 4 {
		t.Fatalf("expected one model call per task, got %d", len(chat.requests))
	}
	var sawOverride bool
	for _, req := range chat.requests {
		if strings.Contains(req.Messages[0].Content, "Posting Analyst") {
			sawOverride = true
			if len(req.Tools) != 2 {
				t.Fatalf("researcher should only see web tools, got %d", len(req.Tools))
			}
		}
	}
	if !sawOverride {
		t.Fatalf("override role never reached the model")
	}
	var sawGuideline bool
	for _, req := range chat.requests {
		if strings.Contains(req.Messages[0].Content, "Resume Strategist") {
			sawGuideline = strings.Contains(req.Messages[1].Content, "- never invent experience")
		}
	}
	if !sawGuideline {
		t.Fatalf("strategy prompt should carry its contract guidelines")
	}
	if result.Output(TaskInterview) != "answer" {
		t.Fatalf("unexpected interview output %q", result.Output(TaskInterview))
	}
}

func TestKickoffJournalsEntriesUnderRunID(t *testing.T) {
	cfg := newTestConfig(t)
	book, err := logbook.Open(cfg.LogsDir())
	if err != nil {
		t.Fatalf("open logbook: %v", err)
	}
	c, _ := New(cfg, WithExecutor(newRecordingExecutor()), WithJournal(book))
	result, err := c.Kickoff(context.Background(), scenarioInputs())
	if err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	lines, total := book.Tail(100)
	if total == 0 {
		t.Fatalf("expected journal entries")
	}
	var sawInterview bool
	for _, line := range lines {
		if !strings.Contains(line, "run="+result.RunID+" ") {
			t.Fatalf("entry not scoped to run %s: %q", result.RunID, line)
		}
		if strings.Contains(line, "task=interview completed") {
			sawInterview = true
		}
	}
	if !sawInterview {
		t.Fatalf("expected interview completion in journal:\n%s", strings.Join(lines, "\n"))
	}
}

type cannedTool struct {
	name string
}

func (c *cannedTool) Name() string               { return c.name }
func (c *cannedTool) Description() string        { return "canned " + c.name }
func (c *cannedTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (c *cannedTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	return "canned " + c.name, nil
}

// toolCallingChatter makes the researcher search once before answering.
type toolCallingChatter struct {
	mu       sync.Mutex
	requests []llm.ChatRequest
}

func (s *toolCallingChatter) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	last := req.Messages[len(req.Messages)-1]
	msg := llm.Message{Role: llm.RoleAssistant, Content: "answer"}
	switch {
	case last.Role == llm.RoleTool:
		msg.Content = "found " + last.Content
	case strings.Contains(req.Messages[0].Content, "Tech Job Researcher"):
		msg.Content = ""
		msg.ToolCalls = []llm.ToolCall{{
			ID:       "call-1",
			Type:     "function",
			Function: llm.ToolCallFunction{Name: tools.SearchInternet, Arguments: `{"query":"acme go"}`},
		}}
	}
	return &llm.ChatResponse{Choices: []llm.Choice{{Message: msg}}}, nil
}

func TestKickoffUsesInjectedToolRegistry(t *testing.T) {
	cfg := newTestConfig(t)
	registry := tools.NewRegistry()
	for _, name := range []string{tools.SearchInternet, tools.ScrapeWebsite, tools.ReadResume, tools.SearchResume} {
		name := name
		registry.MustRegister(name, func(tools.Env) (tools.Tool, error) {
			return &cannedTool{name: name}, nil
		})
	}
	chat := &toolCallingChatter{}
	c, err := New(cfg, WithChatter(chat), WithToolRegistry(registry))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := c.Kickoff(context.Background(), scenarioInputs())
	if err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	if got := result.Output(TaskResearch); got != "found canned search_internet" {
		t.Fatalf("research should use the injected tool, got %q", got)
	}
	if len(chat.requests) != 5 {
		t.Fatalf("expected five model calls, got %d", len(chat.requests))
	}
}

func TestKickoffRequiresCredentialsForHostedModel(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Credentials = config.Credentials{}
	c, _ := New(cfg)
	_, err := c.Kickoff(context.Background(), scenarioInputs())
	if !errors.Is(err, config.ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
}

func TestAgentsApplyOverrides(t *testing.T) {
	quiet := false
	specs, err := Agents(AgentOverride{Agent: AgentProfiler, Goal: "New goal", Verbose: &quiet})
	if err != nil {
		t.Fatalf("Agents: %v", err)
	}
	if len(specs) != 4 {
		t.Fatalf("expected four agents, got %d", len(specs))
	}
	profiler := specs[1]
	if profiler.Goal != "New goal" || profiler.Verbose {
		t.Fatalf("override not applied: %+v", profiler)
	}
	if profiler.Role != "Personal Profiler for Engineers" {
		t.Fatalf("role should keep the built-in value, got %q", profiler.Role)
	}
	if specs[0].Goal == "New goal" {
		t.Fatalf("override leaked to another agent")
	}
	if len(specs[0].Tools) != 2 || len(specs[2].Tools) != 4 {
		t.Fatalf("unexpected tool bindings %v %v", specs[0].Tools, specs[2].Tools)
	}
}

func TestAgentsRejectInvalidOverrides(t *testing.T) {
	if _, err := Agents(AgentOverride{Agent: "ghost"}); err == nil {
		t.Fatalf("expected unknown agent error")
	}
	if _, err := Agents(AgentOverride{Agent: AgentProfiler}, AgentOverride{Agent: AgentProfiler}); err == nil {
		t.Fatalf("expected duplicate override error")
	}
	if _, err := New(newTestConfig(t), WithOverrides(AgentOverride{Agent: "ghost"})); err == nil {
		t.Fatalf("New should reject bad overrides")
	}
}

func TestDefinitionMatchesCrewGraph(t *testing.T) {
	def := Definition(nil)
	if err := def.Validate(); err != nil {
		t.Fatalf("definition invalid: %v", err)
	}
	order, err := def.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	if strings.Join(order, ",") != "research,profile,strategy,interview" {
		t.Fatalf("unexpected order %v", order)
	}
	research, _ := def.Task(TaskResearch)
	strategy, _ := def.Task(TaskStrategy)
	if !research.Async || strategy.Async {
		t.Fatalf("unexpected async flags")
	}
	if strategy.OutputFile != "tailored_resume.md" {
		t.Fatalf("unexpected output file %q", strategy.OutputFile)
	}
}
