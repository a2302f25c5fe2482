package crew

import (
	"context"
	"fmt"

	"github.com/kingrea/jobprep/internal/agent"
	"github.com/kingrea/jobprep/internal/contracts"
	"github.com/kingrea/jobprep/internal/workflow/engine"
)

// taskExecutor adapts the agent runner to the workflow engine.
type taskExecutor struct {
	runner *agent.Runner
	agents map[string]agent.AgentSpec
	tasks  map[string]TaskSpec
}

func newTaskExecutor(runner *agent.Runner, specs []agent.AgentSpec, tasks []TaskSpec) *taskExecutor {
	exec := &taskExecutor{
		runner: runner,
		agents: make(map[string]agent.AgentSpec, len(specs)),
		tasks:  make(map[string]TaskSpec, len(tasks)),
	}
	for _, spec := range specs {
		exec.agents[spec.ID] = spec
	}
	for _, task := range tasks {
		exec.tasks[task.ID] = task
	}
	return exec
}

func (e *taskExecutor) Execute(ctx context.Context, req engine.NodeRequest) (string, error) {
	task, ok := e.tasks[req.Task.ID]
	if !ok {
		return "", fmt.Errorf("crew: unknown task %s", req.Task.ID)
	}
	spec, ok := e.agents[req.Task.Agent]
	if !ok {
		return "", fmt.Errorf("crew: task %s names unknown agent %s", req.Task.ID, req.Task.Agent)
	}
	blocks := make([]agent.ContextBlock, 0, len(req.Context))
	for _, item := range req.Context {
		title := item.TaskID
		if upstream, ok := e.tasks[item.TaskID]; ok && upstream.Name != "" {
			title = upstream.Name
		}
		blocks = append(blocks, agent.ContextBlock{Title: title, Output: item.Output})
	}
	var guidelines []string
	if contract, ok := contracts.ContractForTask(task.ID); ok {
		guidelines = contract.Behaviors
	}
	return e.runner.Execute(ctx, agent.Assignment{
		Agent:          spec,
		Description:    req.Task.Description,
		ExpectedOutput: task.ExpectedOutput,
		Guidelines:     guidelines,
		Context:        blocks,
	})
}
