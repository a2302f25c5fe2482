package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kingrea/jobprep/internal/llm"
	"github.com/kingrea/jobprep/internal/tools"
)

// DefaultMaxSteps bounds tool-calling rounds per task.
const DefaultMaxSteps = 6

// ErrEmptyAnswer is returned when the model finishes without any text.
var ErrEmptyAnswer = errors.New("agent: model returned an empty answer")

const finalAnswerNudge = "You have used all available tool calls. Using everything gathered so far, give your complete final answer now."

// Runner executes assignments against the model.
type Runner struct {
	chat     llm.Chatter
	tools    tools.Set
	maxSteps int
	logger   llm.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithMaxSteps overrides the tool-calling budget.
func WithMaxSteps(steps int) Option {
	return func(r *Runner) {
		if steps > 0 {
			r.maxSteps = steps
		}
	}
}

// WithLogger traces verbose agents to the transport log.
func WithLogger(logger llm.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner wires a runner to the model and the run's tool set.
func NewRunner(chat llm.Chatter, set tools.Set, opts ...Option) (*Runner, error) {
	if chat == nil {
		return nil, fmt.Errorf("agent: model client is required")
	}
	runner := &Runner{
		chat:     chat,
		tools:    set,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Execute runs the assignment to completion and returns the final answer.
// Tool failures are reported back to the model as text; model transport
// failures abort the assignment.
func (r *Runner) Execute(ctx context.Context, a Assignment) (string, error) {
	spec := a.Agent
	if err := spec.Validate(); err != nil {
		return "", err
	}
	bound, err := r.tools.Subset(spec.Tools)
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", spec.ID, err)
	}
	system, err := renderSystemPrompt(spec, bound)
	if err != nil {
		return "", fmt.Errorf("agent %s: system prompt: %w", spec.ID, err)
	}
	user, err := renderTaskPrompt(a)
	if err != nil {
		return "", fmt.Errorf("agent %s: task prompt: %w", spec.ID, err)
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}
	byName := make(map[string]tools.Tool, len(bound))
	defs := make([]llm.Tool, 0, len(bound))
	for _, tool := range bound {
		byName[tool.Name()] = tool
		defs = append(defs, tools.Definition(tool))
	}

	for step := 1; step <= r.maxSteps; step++ {
		req := llm.ChatRequest{Messages: messages}
		if len(defs) > 0 {
			req.Tools = defs
			req.ToolChoice = "auto"
		}
		msg, err := r.complete(ctx, spec, req)
		if err != nil {
			return "", err
		}
		if len(msg.ToolCalls) == 0 {
			return finalAnswer(spec, msg)
		}
		r.tracef(spec, "step %d: %d tool call(s)", step, len(msg.ToolCalls))
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   msg.Content,
			ToolCalls: msg.ToolCalls,
		})
		for _, call := range msg.ToolCalls {
			result, err := r.dispatch(ctx, spec, byName, call)
			if err != nil {
				return "", err
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    result,
			})
		}
	}

	r.tracef(spec, "tool budget of %d steps exhausted, requesting final answer", r.maxSteps)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: finalAnswerNudge})
	msg, err := r.complete(ctx, spec, llm.ChatRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	return finalAnswer(spec, msg)
}

func (r *Runner) complete(ctx context.Context, spec AgentSpec, req llm.ChatRequest) (llm.Message, error) {
	resp, err := r.chat.Chat(ctx, req)
	if err != nil {
		return llm.Message{}, fmt.Errorf("agent %s: %w", spec.ID, err)
	}
	msg, err := resp.Message()
	if err != nil {
		return llm.Message{}, fmt.Errorf("agent %s: %w", spec.ID, err)
	}
	return msg, nil
}

// dispatch runs a single tool call. Only cancellation is returned as an
// error; everything else becomes the tool message the model sees.
func (r *Runner) dispatch(ctx context.Context, spec AgentSpec, byName map[string]tools.Tool, call llm.ToolCall) (string, error) {
	name := call.Function.Name
	tool, ok := byName[name]
	if !ok {
		r.tracef(spec, "rejected unknown tool %q", name)
		return fmt.Sprintf("error: tool %q is not available to this agent", name), nil
	}
	args := json.RawMessage(strings.TrimSpace(call.Function.Arguments))
	if len(args) > 0 && !json.Valid(args) {
		return fmt.Sprintf("error: arguments for %s are not valid JSON", name), nil
	}
	result, err := tool.Call(ctx, args)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("agent %s: %w", spec.ID, ctxErr)
	}
	if err != nil {
		r.tracef(spec, "tool %s failed: %v", name, err)
		return "error: " + err.Error(), nil
	}
	r.tracef(spec, "tool %s returned %d bytes", name, len(result))
	return result, nil
}

func finalAnswer(spec AgentSpec, msg llm.Message) (string, error) {
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return "", fmt.Errorf("agent %s: %w", spec.ID, ErrEmptyAnswer)
	}
	return text, nil
}

func (r *Runner) tracef(spec AgentSpec, format string, args ...any) {
	if !spec.Verbose || r.logger == nil {
		return
	}
	r.logger.Printf("agent %s: %s", spec.ID, fmt.Sprintf(format, args...))
}
