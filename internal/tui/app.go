// internal/tui/app.go
//
// This is the terminal front end for jobprep. It collects the four inputs,
// runs the crew and shows the generated documents.
//
// Like every bubbletea program it follows The Elm Architecture:
// User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/jobprep/internal/artifact"
	"github.com/kingrea/jobprep/internal/config"
	"github.com/kingrea/jobprep/internal/crew"
	"github.com/kingrea/jobprep/internal/logbook"
	"github.com/kingrea/jobprep/internal/logging"
	"github.com/kingrea/jobprep/internal/workflow/engine"
	"github.com/kingrea/jobprep/plugins"
)

// appState represents which screen we're on
type appState int

const (
	stateForm    appState = iota // Collecting inputs
	stateRunning                 // Crew is working
	stateResults                 // Showing the generated documents
)

// Form fields in focus order.
const (
	fieldJobURL = iota
	fieldGitHubURL
	fieldWriteup
	fieldResumePath
	fieldGenerate
	fieldCount
)

const (
	eventBuffer       = 32
	runningStatusText = "Generating tailored resume and interview materials... This may take a few minutes."
)

// Runner executes a crew run. *crew.Crew satisfies it.
type Runner interface {
	Kickoff(ctx context.Context, inputs crew.RunInputs) (crew.Result, error)
}

// CrewFactory builds the crew for one run. The observer feeds the progress
// list and is called from the crew's goroutines.
type CrewFactory func(cfg *config.Config, observer engine.Observer) (Runner, error)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithCrewFactory overrides how the crew is built for each run.
func WithCrewFactory(factory CrewFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.factory = factory
		}
	}
}

// WithLogger traces model and tool traffic of the runs started from the TUI.
func WithLogger(logger *logging.Logger) AppOption {
	return func(a *App) {
		a.logger = logger
	}
}

type nodeEventMsg struct {
	event  engine.NodeEvent
	events <-chan engine.NodeEvent
}

type runFinishedMsg struct {
	result crew.Result
	err    error
}

// App is the main application model.
type App struct {
	state   appState
	config  *config.Config
	logbook *logbook.Logbook
	logger  *logging.Logger
	factory CrewFactory
	store   *artifact.Store

	// Form
	jobURL     textinput.Model
	githubURL  textinput.Model
	resumePath textinput.Model
	writeup    textarea.Model
	focus      int

	// Run
	spinner  spinner.Model
	progress []taskProgress
	cancel   context.CancelFunc

	// Results
	viewport  viewport.Model
	result    crew.Result
	activeTab int

	statusMsg string
	errText   string

	width  int
	height int
}

// NewApp creates a new App instance for the project directory.
func NewApp(projectDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	lb, err := logbook.Open(cfg.LogsDir())
	if err == nil {
		lb.Info("Session opened · model %s", cfg.Project.LLM.Model)
	}

	jobURL := textinput.New()
	jobURL.Placeholder = "e.g., https://jobs.lever.co/..."
	jobURL.Prompt = ""
	githubURL := textinput.New()
	githubURL.Placeholder = "e.g., https://github.com/username"
	githubURL.Prompt = ""
	resumePath := textinput.New()
	resumePath.Placeholder = "path/to/resume.md"
	resumePath.Prompt = ""
	writeup := textarea.New()
	writeup.Placeholder = "Describe yourself and your experience..."
	writeup.ShowLineNumbers = false
	writeup.SetHeight(6)

	app := &App{
		state:      stateForm,
		config:     cfg,
		logbook:    lb,
		store:      artifact.NewStore(crew.LayoutFromConfig(cfg)),
		jobURL:     jobURL,
		githubURL:  githubURL,
		resumePath: resumePath,
		writeup:    writeup,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		viewport:   viewport.New(80, 20),
	}
	app.factory = app.defaultCrewFactory
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.setFocus(fieldJobURL)
	return app, nil
}

func (a *App) defaultCrewFactory(cfg *config.Config, observer engine.Observer) (Runner, error) {
	overrides, err := plugins.LoadOverrides(cfg)
	if err != nil {
		return nil, err
	}
	opts := []crew.Option{crew.WithObserver(observer), crew.WithOverrides(overrides...)}
	if a.logbook != nil {
		opts = append(opts, crew.WithJournal(a.logbook))
	}
	if a.logger != nil {
		opts = append(opts, crew.WithLogger(a.logger))
	}
	c, err := crew.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

// fail records an error for display. Missing inputs keep their own message.
func (a *App) fail(err error) {
	if errors.Is(err, crew.ErrInvalidInput) {
		a.errText = crew.MissingInputsMessage
		return
	}
	a.errText = fmt.Sprintf("An error occurred: %v", err)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		inner := max(20, msg.Width-8)
		a.jobURL.Width = inner
		a.githubURL.Width = inner
		a.resumePath.Width = inner
		a.writeup.SetWidth(inner)
		a.viewport.Width = inner
		a.viewport.Height = max(5, msg.Height-16)
		return a, nil

	case spinner.TickMsg:
		if a.state != stateRunning {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case nodeEventMsg:
		applyEvent(a.progress, msg.event)
		return a, waitForEvent(msg.events)

	case runFinishedMsg:
		return a.handleRunFinished(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if a.cancel != nil {
				a.cancel()
			}
			return a, tea.Quit
		}
		switch a.state {
		case stateForm:
			return a.updateForm(msg)
		case stateRunning:
			if msg.String() == "esc" && a.cancel != nil {
				a.cancel()
				a.statusMsg = "Cancelling run..."
			}
			return a, nil
		case stateResults:
			return a.updateResults(msg)
		}
	}

	switch a.state {
	case stateForm:
		return a, a.updateFocused(msg)
	case stateResults:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		return a, a.setFocus((a.focus + 1) % fieldCount)
	case "shift+tab":
		return a, a.setFocus((a.focus + fieldCount - 1) % fieldCount)
	case "ctrl+g":
		return a.generate()
	case "enter":
		switch a.focus {
		case fieldGenerate:
			return a.generate()
		case fieldWriteup:
			// newline inside the write-up
		default:
			return a, a.setFocus(a.focus + 1)
		}
	}
	return a, a.updateFocused(msg)
}

func (a *App) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.focus {
	case fieldJobURL:
		a.jobURL, cmd = a.jobURL.Update(msg)
	case fieldGitHubURL:
		a.githubURL, cmd = a.githubURL.Update(msg)
	case fieldWriteup:
		a.writeup, cmd = a.writeup.Update(msg)
	case fieldResumePath:
		a.resumePath, cmd = a.resumePath.Update(msg)
	}
	return cmd
}

func (a *App) setFocus(field int) tea.Cmd {
	a.focus = field
	a.jobURL.Blur()
	a.githubURL.Blur()
	a.writeup.Blur()
	a.resumePath.Blur()
	switch field {
	case fieldJobURL:
		return a.jobURL.Focus()
	case fieldGitHubURL:
		return a.githubURL.Focus()
	case fieldWriteup:
		return a.writeup.Focus()
	case fieldResumePath:
		return a.resumePath.Focus()
	}
	return nil
}

// generate validates the form and starts the crew.
func (a *App) generate() (tea.Model, tea.Cmd) {
	a.errText = ""
	fields := []string{a.jobURL.Value(), a.githubURL.Value(), a.writeup.Value(), a.resumePath.Value()}
	for _, value := range fields {
		if strings.TrimSpace(value) == "" {
			a.errText = crew.MissingInputsMessage
			a.logWarn("Generate · missing inputs")
			return a, nil
		}
	}
	resume, err := os.ReadFile(a.resolveResumePath())
	if err != nil {
		a.fail(fmt.Errorf("read resume: %w", err))
		a.logError("Generate · %v", err)
		return a, nil
	}
	inputs := crew.RunInputs{
		JobPostingURL:   strings.TrimSpace(a.jobURL.Value()),
		GitHubURL:       strings.TrimSpace(a.githubURL.Value()),
		PersonalWriteup: a.writeup.Value(),
		Resume:          string(resume),
	}
	if err := inputs.Validate(); err != nil {
		a.fail(err)
		a.logWarn("Generate · %v", err)
		return a, nil
	}

	def := crew.Definition(a.config)
	ctx, cancel := context.WithCancel(context.Background())
	// Observers block until the event is queued or the run ends.
	events := make(chan engine.NodeEvent, max(eventBuffer, 3*len(def.Tasks)))
	observer := func(ev engine.NodeEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	runner, err := a.factory(a.config, observer)
	if err != nil {
		cancel()
		a.fail(err)
		a.logError("Generate · %v", err)
		return a, nil
	}
	a.cancel = cancel
	a.state = stateRunning
	a.progress = newTaskProgress(def)
	a.statusMsg = runningStatusText
	a.logInfo("Run · started for %s", inputs.JobPostingURL)
	return a, tea.Batch(a.spinner.Tick, runCrew(ctx, runner, inputs, events), waitForEvent(events))
}

func (a *App) resolveResumePath() string {
	path := strings.TrimSpace(a.resumePath.Value())
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.config.ProjectDir, path)
	}
	return path
}

func runCrew(ctx context.Context, runner Runner, inputs crew.RunInputs, events chan engine.NodeEvent) tea.Cmd {
	return func() tea.Msg {
		defer close(events)
		result, err := runner.Kickoff(ctx, inputs)
		return runFinishedMsg{result: result, err: err}
	}
}

func waitForEvent(events <-chan engine.NodeEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return nodeEventMsg{event: ev, events: events}
	}
}

func (a *App) handleRunFinished(msg runFinishedMsg) (tea.Model, tea.Cmd) {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if msg.err != nil {
		a.state = stateForm
		a.statusMsg = ""
		a.fail(msg.err)
		a.logError("Run · failed: %v", msg.err)
		return a, a.setFocus(fieldGenerate)
	}
	a.result = msg.result
	a.state = stateResults
	a.activeTab = 0
	a.refreshViewport()
	a.statusMsg = fmt.Sprintf("Run %s complete", msg.result.RunID)
	a.logInfo("Run · %s complete", msg.result.RunID)
	return a, nil
}

func (a *App) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	total := len(a.result.Artifacts)
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "tab", "right", "l":
		if total > 0 {
			a.activeTab = (a.activeTab + 1) % total
			a.refreshViewport()
		}
		return a, nil
	case "shift+tab", "left", "h":
		if total > 0 {
			a.activeTab = (a.activeTab + total - 1) % total
			a.refreshViewport()
		}
		return a, nil
	case "ctrl+s":
		a.exportCurrent()
		return a, nil
	case "esc":
		a.state = stateForm
		a.statusMsg = ""
		return a, a.setFocus(fieldGenerate)
	}
	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a *App) currentArtifact() (artifact.Rendered, bool) {
	if a.activeTab < 0 || a.activeTab >= len(a.result.Artifacts) {
		return artifact.Rendered{}, false
	}
	return a.result.Artifacts[a.activeTab], true
}

// exportCurrent is the "download" action for the active document.
func (a *App) exportCurrent() {
	item, ok := a.currentArtifact()
	if !ok {
		return
	}
	if warning := item.Warning(); warning != "" {
		a.statusMsg = warning
		return
	}
	path, err := a.store.Export(item.Ref, a.config.ExportDir())
	if err != nil {
		a.fail(err)
		a.logError("Export · %v", err)
		return
	}
	a.statusMsg = fmt.Sprintf("Saved %s to %s", item.Ref.Name, path)
	a.logInfo("Export · %s -> %s", item.Ref.ID, path)
}

func (a *App) refreshViewport() {
	item, ok := a.currentArtifact()
	if !ok {
		a.viewport.SetContent("")
		return
	}
	if warning := item.Warning(); warning != "" {
		a.viewport.SetContent(warningStyle.Render(warning))
	} else {
		a.viewport.SetContent(item.Content)
	}
	a.viewport.GotoTop()
}

// View renders the current state to a string.
func (a *App) View() string {
	header := headerStyle.Render("⬡ JOB APPLICATION ASSISTANT")
	var body string
	switch a.state {
	case stateForm:
		body = a.renderForm()
	case stateRunning:
		body = a.renderRunning()
	case stateResults:
		body = a.renderResults()
	}
	sections := []string{header, boxStyle.Render(body)}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	sections = append(sections, footerStyle.Render(a.statusMsg))
	return strings.Join(sections, "\n")
}

func (a *App) renderForm() string {
	lines := []string{
		hintStyle.Render("Provide your details to generate a tailored resume and interview materials."),
		"",
		sectionTitleStyle.Render("Job Posting URL"),
		a.jobURL.View(),
		"",
		sectionTitleStyle.Render("GitHub URL"),
		a.githubURL.View(),
		"",
		sectionTitleStyle.Render("Personal Write-up"),
		a.writeup.View(),
		"",
		sectionTitleStyle.Render("Resume (Markdown file)"),
		a.resumePath.View(),
		"",
	}
	button := buttonStyle.Render("Generate")
	if a.focus == fieldGenerate {
		button = buttonFocusedStyle.Render("Generate")
	}
	lines = append(lines, button)
	if a.errText != "" {
		lines = append(lines, "", errorStyle.Render(a.errText))
	}
	lines = append(lines, "", hintStyle.Render("tab → next field    ctrl+g → generate    ctrl+c → quit"))
	return strings.Join(lines, "\n")
}

func (a *App) renderRunning() string {
	title := fmt.Sprintf("%s %s", a.spinner.View(), runningStatusText)
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		renderProgress(a.progress, a.spinner.View()),
		"",
		hintStyle.Render("esc → cancel run"),
	)
}

func (a *App) renderResults() string {
	tabs := make([]string, 0, len(a.result.Artifacts))
	for i, item := range a.result.Artifacts {
		style := tabStyle
		if i == a.activeTab {
			style = tabActiveStyle
		}
		tabs = append(tabs, style.Render(item.Ref.Name))
	}
	parts := []string{lipgloss.JoinHorizontal(lipgloss.Top, tabs...), "", a.viewport.View()}
	for _, warning := range a.result.Warnings() {
		parts = append(parts, warningStyle.Render("⚠ "+warning))
	}
	parts = append(parts, "", hintStyle.Render("tab → switch document    ctrl+s → download    esc → back    q → quit"))
	return strings.Join(parts, "\n")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, _ := a.logbook.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	head := sectionTitleStyle.Render(fmt.Sprintf("LOG · %s", fileName))
	body := hintStyle.Render(strings.Join(lines, "\n"))
	return boxStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}
