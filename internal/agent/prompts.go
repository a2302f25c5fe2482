package agent

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/kingrea/jobprep/internal/tools"
)

//go:embed prompts/system.tmpl
var systemPromptRaw string

//go:embed prompts/task.tmpl
var taskPromptRaw string

var (
	systemTemplate = template.Must(template.New("system").Parse(systemPromptRaw))
	taskTemplate   = template.Must(template.New("task").Parse(taskPromptRaw))
)

type systemPromptData struct {
	Role      string
	Goal      string
	Backstory string
	Tools     []tools.Tool
}

func renderSystemPrompt(spec AgentSpec, bound []tools.Tool) (string, error) {
	var b strings.Builder
	err := systemTemplate.Execute(&b, systemPromptData{
		Role:      spec.Role,
		Goal:      spec.Goal,
		Backstory: spec.Backstory,
		Tools:     bound,
	})
	return b.String(), err
}

func renderTaskPrompt(a Assignment) (string, error) {
	var b strings.Builder
	err := taskTemplate.Execute(&b, a)
	return b.String(), err
}
