package crew

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kingrea/jobprep/internal/agent"
	"github.com/kingrea/jobprep/internal/artifact"
	"github.com/kingrea/jobprep/internal/config"
	"github.com/kingrea/jobprep/internal/contracts"
	"github.com/kingrea/jobprep/internal/llm"
	"github.com/kingrea/jobprep/internal/logbook"
	"github.com/kingrea/jobprep/internal/tools"
	"github.com/kingrea/jobprep/internal/workflow/engine"
)

// Crew runs the job application task graph for one project.
type Crew struct {
	cfg        *config.Config
	store      *artifact.Store
	chat       llm.Chatter
	registry   *tools.Registry
	executor   engine.Executor
	observer   engine.Observer
	journal    *logbook.Logbook
	logger     llm.Logger
	httpClient *http.Client
	overrides  []AgentOverride
	clock      func() time.Time
}

// Option customizes a Crew.
type Option func(*Crew)

// WithExecutor replaces the agent runtime, typically with a test double.
func WithExecutor(executor engine.Executor) Option {
	return func(c *Crew) {
		c.executor = executor
	}
}

// WithChatter replaces the hosted model client.
func WithChatter(chat llm.Chatter) Option {
	return func(c *Crew) {
		c.chat = chat
	}
}

// WithToolRegistry replaces the built-in tool registry.
func WithToolRegistry(registry *tools.Registry) Option {
	return func(c *Crew) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// WithHTTPClient sets the client used by the model and the tools.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Crew) {
		c.httpClient = client
	}
}

// WithObserver receives task events while a run progresses.
func WithObserver(observer engine.Observer) Option {
	return func(c *Crew) {
		c.observer = observer
	}
}

// WithJournal records run progress and missing-output warnings, each entry
// scoped to its run.
func WithJournal(book *logbook.Logbook) Option {
	return func(c *Crew) {
		c.journal = book
	}
}

// WithLogger traces model and tool traffic.
func WithLogger(logger llm.Logger) Option {
	return func(c *Crew) {
		c.logger = logger
	}
}

// WithOverrides applies agent profile overrides to every run.
func WithOverrides(overrides ...AgentOverride) Option {
	return func(c *Crew) {
		c.overrides = append([]AgentOverride(nil), overrides...)
	}
}

// WithClock injects a deterministic clock.
func WithClock(clock func() time.Time) Option {
	return func(c *Crew) {
		c.clock = clock
	}
}

// New prepares a crew for the configured project.
func New(cfg *config.Config, opts ...Option) (*Crew, error) {
	if cfg == nil {
		return nil, fmt.Errorf("crew: config is required")
	}
	c := &Crew{
		cfg:      cfg,
		store:    artifact.NewStore(LayoutFromConfig(cfg)),
		registry: tools.DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := Agents(c.overrides...); err != nil {
		return nil, err
	}
	return c, nil
}

// Store exposes the artifact store the crew writes to.
func (c *Crew) Store() *artifact.Store {
	return c.store
}

// Result is the outcome of a successful run.
type Result struct {
	RunID string
	// Outputs holds the final text of every task keyed by task id.
	Outputs   map[string]string
	Artifacts []artifact.Rendered
	State     engine.State
}

// Output returns the text produced by the given task.
func (r Result) Output(taskID string) string {
	return r.Outputs[taskID]
}

// Warnings lists the missing-artifact messages for the run.
func (r Result) Warnings() []string {
	return artifact.Warnings(r.Artifacts)
}

// Kickoff validates the inputs and runs the task graph to completion. On
// failure the returned Result only carries the diagnostic run state.
func (c *Crew) Kickoff(ctx context.Context, inputs RunInputs) (Result, error) {
	if err := inputs.Validate(); err != nil {
		return Result{}, err
	}
	specs, err := Agents(c.overrides...)
	if err != nil {
		return Result{}, err
	}
	tasks := tasksFor(c.cfg)
	values := contracts.Values(inputs.templateValues())
	for i := range tasks {
		rendered, err := contracts.Render(tasks[i].ID, tasks[i].Description, values)
		if err != nil {
			return Result{}, fmt.Errorf("crew: %w", err)
		}
		tasks[i].Description = rendered
	}
	if err := c.store.Write(artifact.ResumeInput, []byte(inputs.Resume)); err != nil {
		return Result{}, fmt.Errorf("crew: stage resume: %w", err)
	}

	executor := c.executor
	if executor == nil {
		executor, err = c.agentExecutor(specs, tasks)
		if err != nil {
			return Result{}, err
		}
	}
	opts := []engine.Option{engine.WithOutputWriter(c.store)}
	if c.observer != nil {
		opts = append(opts, engine.WithObserver(c.observer))
	}
	if c.journal != nil {
		opts = append(opts, engine.WithJournal(func(runID string) engine.Journal {
			return c.journal.Run(runID)
		}))
	}
	if c.clock != nil {
		opts = append(opts, engine.WithClock(c.clock))
	}
	eng, err := engine.New(executor, opts...)
	if err != nil {
		return Result{}, err
	}
	state, err := eng.Run(ctx, engine.RunRequest{Definition: definitionFor(c.cfg, tasks)})
	if err != nil {
		return Result{RunID: state.RunID, State: state}, err
	}

	result := Result{
		RunID:     state.RunID,
		Outputs:   state.Outputs,
		Artifacts: artifact.Collect(c.store),
		State:     state,
	}
	if c.journal != nil {
		journal := c.journal.Run(state.RunID)
		for _, warning := range result.Warnings() {
			journal.Warn("%s", warning)
		}
	}
	return result, nil
}

func (c *Crew) agentExecutor(specs []agent.AgentSpec, tasks []TaskSpec) (engine.Executor, error) {
	chat := c.chat
	if chat == nil {
		if err := c.cfg.Credentials.Validate(); err != nil {
			return nil, err
		}
		client, err := llm.NewClient(c.llmSettings(), c.llmOptions()...)
		if err != nil {
			return nil, err
		}
		chat = client
	}
	set, err := c.registry.Build(c.toolEnv(), ToolNames(specs)...)
	if err != nil {
		return nil, err
	}
	runnerOpts := []agent.Option{agent.WithMaxSteps(c.cfg.Project.LLM.MaxToolSteps)}
	if c.logger != nil {
		runnerOpts = append(runnerOpts, agent.WithLogger(c.logger))
	}
	runner, err := agent.NewRunner(chat, set, runnerOpts...)
	if err != nil {
		return nil, err
	}
	return newTaskExecutor(runner, specs, tasks), nil
}

func (c *Crew) llmSettings() llm.Settings {
	temperature := c.cfg.Temperature()
	return llm.Settings{
		BaseURL:     c.cfg.Project.LLM.BaseURL,
		APIKey:      c.cfg.Credentials.LLMAPIKey,
		Model:       c.cfg.Project.LLM.Model,
		Temperature: &temperature,
		MaxTokens:   c.cfg.Project.LLM.MaxTokens,
		Timeout:     c.cfg.Project.LLM.Timeout,
	}
}

func (c *Crew) llmOptions() []llm.Option {
	var opts []llm.Option
	if c.httpClient != nil {
		opts = append(opts, llm.WithHTTPClient(c.httpClient))
	}
	if c.logger != nil {
		opts = append(opts, llm.WithLogger(c.logger))
	}
	return opts
}

func (c *Crew) toolEnv() tools.Env {
	return tools.Env{
		SearchEndpoint: c.cfg.Project.Search.Endpoint,
		SearchAPIKey:   c.cfg.Credentials.SearchAPIKey,
		SearchResults:  c.cfg.Project.Search.Results,
		ScrapeMaxBytes: c.cfg.Project.Scrape.MaxBytes,
		ScrapeTimeout:  c.cfg.Project.Scrape.Timeout,
		ResumePath:     c.store.Path(artifact.ResumeInput),
		HTTPClient:     c.httpClient,
		Logger:         c.logger,
	}
}
