// Package tools implements the capabilities agents may invoke: web search,
// website scraping and resume lookup.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/kingrea/jobprep/internal/llm"
)

// Tool names as exposed to the model.
const (
	SearchInternet = "search_internet"
	ScrapeWebsite  = "scrape_website"
	ReadResume     = "read_resume"
	SearchResume   = "search_resume"
)

// Tool is a capability an agent can invoke.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the arguments object.
	Parameters() map[string]any
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// Definition converts a tool into the model-facing definition.
func Definition(tool Tool) llm.Tool {
	return llm.FunctionTool(tool.Name(), tool.Description(), tool.Parameters())
}

// Env carries the settings factories need to build tools for a run.
type Env struct {
	SearchEndpoint string
	SearchAPIKey   string
	SearchResults  int
	ScrapeMaxBytes int64
	ScrapeTimeout  time.Duration
	// ResumePath is the staged resume read by the resume tools.
	ResumePath string
	HTTPClient *http.Client
	Logger     llm.Logger
}

func (e Env) httpClient(timeout time.Duration) *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (e Env) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// Factory constructs a tool for the provided environment.
type Factory func(Env) (Tool, error)

// Registry maintains known tool factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry returns a registry holding every built-in tool.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.MustRegister(SearchInternet, NewSearchTool)
	reg.MustRegister(ScrapeWebsite, NewScrapeTool)
	reg.MustRegister(ReadResume, NewReadResumeTool)
	reg.MustRegister(SearchResume, NewSearchResumeTool)
	return reg
}

// Register installs a tool factory. Returns an error if the name already exists.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("tools: name is required")
	}
	if factory == nil {
		return fmt.Errorf("tools: factory is required for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("tools: %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve constructs a tool by name.
func (r *Registry) Resolve(name string, env Env) (Tool, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tools: unknown tool %s", name)
	}
	tool, err := factory(env)
	if err != nil {
		return nil, fmt.Errorf("tools: build %s: %w", name, err)
	}
	if tool.Name() != name {
		return nil, fmt.Errorf("tools: factory for %s built %s", name, tool.Name())
	}
	return tool, nil
}

// Build resolves every named tool into a Set.
func (r *Registry) Build(env Env, names ...string) (Set, error) {
	set := Set{}
	for _, name := range names {
		if _, exists := set[name]; exists {
			continue
		}
		tool, err := r.Resolve(name, env)
		if err != nil {
			return nil, err
		}
		set[name] = tool
	}
	return set, nil
}

// Names returns a sorted list of registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set is a resolved collection of tools keyed by name.
type Set map[string]Tool

// Subset returns the tools bound to an agent, in the given order.
func (s Set) Subset(names []string) ([]Tool, error) {
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		tool, ok := s[name]
		if !ok {
			return nil, fmt.Errorf("tools: %s is not available", name)
		}
		out = append(out, tool)
	}
	return out, nil
}

func decodeArgs(args json.RawMessage, into any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, into); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func stringParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
