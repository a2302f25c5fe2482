// Package llm talks to a hosted model through an OpenAI-compatible
// /chat/completions endpoint. Gemini, OpenAI and OpenRouter all speak it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ErrNoChoices is returned when the provider answers without any choice.
var ErrNoChoices = errors.New("llm: response contained no choices")

// Message is a single chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolFunction describes a callable function offered to the model.
type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// Tool wraps a function definition.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// FunctionTool builds a function tool definition.
func FunctionTool(name, description string, parameters any) Tool {
	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// ToolCallFunction carries the model's chosen function and raw JSON arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ChatRequest is the request body for a chat completion.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	ToolChoice  string    `json:"tool_choice,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason"`
	Message      Message `json:"message"`
}

// Usage tokens information. Not all providers return it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the decoded completion.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Message returns the first choice's message.
func (r *ChatResponse) Message() (Message, error) {
	if r == nil || len(r.Choices) == 0 {
		return Message{}, ErrNoChoices
	}
	return r.Choices[0].Message, nil
}

// APIError reports a non-2xx provider response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("llm: provider returned %d: %s", e.StatusCode, body)
}

// Chatter is the contract agents depend on.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Logger is satisfied by *logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Settings configures a Client.
type Settings struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client is an OpenAI-compatible chat completions client.
type Client struct {
	settings Settings
	http     *http.Client
	logger   Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient swaps the transport (primarily for tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger traces requests to the transport log.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient validates settings and returns a client.
func NewClient(settings Settings, opts ...Option) (*Client, error) {
	settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	if settings.BaseURL == "" {
		return nil, fmt.Errorf("llm: base url is required")
	}
	if strings.TrimSpace(settings.Model) == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 120 * time.Second
	}
	client := &Client{
		settings: settings,
		http:     &http.Client{Timeout: settings.Timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Chat sends a completion request. Model, temperature and max tokens default
// to the client settings when the request leaves them unset.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.settings.Model
	}
	if req.Temperature == nil {
		req.Temperature = c.settings.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.settings.MaxTokens
	}
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(req); err != nil {
		return nil, fmt.Errorf("llm: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.BaseURL+"/chat/completions", buf)
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	if c.settings.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.settings.APIKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	c.logf("llm: request model=%s messages=%d tools=%d", req.Model, len(req.Messages), len(req.Tools))
	res, err := c.http.Do(httpReq)
	if err != nil {
		c.logf("llm: transport error: %v", err)
		return nil, fmt.Errorf("llm: send request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		c.logf("llm: status %d after %s", res.StatusCode, time.Since(started).Round(time.Millisecond))
		return nil, &APIError{StatusCode: res.StatusCode, Body: string(body)}
	}
	var out ChatResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}
	if out.Usage != nil {
		c.logf("llm: response in %s tokens=%d", time.Since(started).Round(time.Millisecond), out.Usage.TotalTokens)
	} else {
		c.logf("llm: response in %s", time.Since(started).Round(time.Millisecond))
	}
	return &out, nil
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
