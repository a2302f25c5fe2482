// internal/config/config.go
//
// This package handles configuration and the .jobprep directory structure.
// Every project that runs jobprep gets a .jobprep/ folder created in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// StateDirName is the name of the directory we create in each project
	StateDirName = ".jobprep"

	DefaultModel          = "gemini-1.5-pro-latest"
	DefaultLLMBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultTemperature    = 0.7
	DefaultLLMTimeout     = 120 * time.Second
	DefaultMaxToolSteps   = 6
	DefaultSearchEndpoint = "https://google.serper.dev/search"
	DefaultSearchResults  = 5
	DefaultScrapeMaxBytes = 512 << 10
	DefaultScrapeTimeout  = 30 * time.Second
	DefaultServerHost     = "127.0.0.1"
	DefaultServerPort     = 8787

	DefaultExportDir              = "exports"
	DefaultTailoredResumeFile     = "tailored_resume.md"
	DefaultInterviewMaterialsFile = "interview_materials.md"
)

// ErrMissingCredentials is returned when an API key needed by a hosted
// collaborator is absent.
var ErrMissingCredentials = errors.New("config: missing credentials")

const defaultProjectConfigYAML = `# jobprep project configuration
version: 1

llm:
  model: gemini-1.5-pro-latest
  # Any OpenAI-compatible chat completions endpoint works here.
  base_url: https://generativelanguage.googleapis.com/v1beta/openai
  temperature: 0.7
  timeout: 120s
  max_tool_steps: 6

search:
  endpoint: https://google.serper.dev/search
  results: 5

outputs:
  tailored_resume: tailored_resume.md
  interview_materials: interview_materials.md

runtime:
  # 0 lets research and profiling run side by side.
  max_parallel: 0
`

// LLMConfig configures the hosted model backend.
type LLMConfig struct {
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	Temperature  *float64      `yaml:"temperature,omitempty"`
	MaxTokens    int           `yaml:"max_tokens,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	MaxToolSteps int           `yaml:"max_tool_steps,omitempty"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	Endpoint string `yaml:"endpoint"`
	Results  int    `yaml:"results,omitempty"`
}

// ScrapeConfig configures the website scraping tool.
type ScrapeConfig struct {
	MaxBytes int64         `yaml:"max_bytes,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// OutputsConfig names the generated artifacts and where they land.
type OutputsConfig struct {
	Dir                string `yaml:"dir,omitempty"`
	TailoredResume     string `yaml:"tailored_resume"`
	InterviewMaterials string `yaml:"interview_materials"`
	ExportDir          string `yaml:"export_dir,omitempty"`
}

// RuntimeConfig mirrors the task graph runtime knobs.
type RuntimeConfig struct {
	MaxParallel int `yaml:"max_parallel"`
}

// ServerConfig configures the HTTP form API.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// ProjectConfig models .jobprep/config.yaml.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	LLM     LLMConfig     `yaml:"llm"`
	Search  SearchConfig  `yaml:"search"`
	Scrape  ScrapeConfig  `yaml:"scrape,omitempty"`
	Outputs OutputsConfig `yaml:"outputs"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Server  ServerConfig  `yaml:"server,omitempty"`
}

// Credentials carries the API keys for the hosted collaborators.
type Credentials struct {
	LLMAPIKey    string
	SearchAPIKey string
}

// Validate reports which credentials are missing.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.LLMAPIKey) == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if strings.TrimSpace(c.SearchAPIKey) == "" {
		missing = append(missing, "SERPER_API_KEY")
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
}

// Config holds the runtime configuration for jobprep.
type Config struct {
	// ProjectDir is the directory where the user ran jobprep from
	ProjectDir string

	// StateDir is ProjectDir/.jobprep
	StateDir string

	Project     ProjectConfig
	Credentials Credentials

	// dotenv holds the project's .env values. They are consulted after the
	// real environment and never exported to it.
	dotenv map[string]string
}

// InitStateDir creates the .jobprep directory structure in the given project directory.
//
// Structure created:
// .jobprep/
// ├── config.yaml
// ├── logs/    <- transport trace and run journal
// ├── inputs/  <- staged resume for the file tools
// └── agents/  <- optional agent profile overrides (*.yaml, *.go)
func InitStateDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, StateDirName)
	dirs := []string{
		filepath.Join(stateDir, "logs"),
		filepath.Join(stateDir, "inputs"),
		filepath.Join(stateDir, "agents"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(stateDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings and
// credentials. A .env file in the project directory is honoured but never
// overrides variables that are already set.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, StateDirName),
		Project:    defaultProjectConfig(),
	}
	dotenv, err := readDotEnv(filepath.Join(projectDir, ".env"))
	if err != nil {
		return nil, err
	}
	cfg.dotenv = dotenv
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	cfg.Credentials = cfg.credentialsFromEnv()
	return cfg, nil
}

// Getenv returns the process environment value for key, falling back to the
// project's .env file. A variable set in the environment wins even when empty.
func (c *Config) Getenv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if c == nil {
		return ""
	}
	return c.dotenv[key]
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// InputsDir returns the directory the resume is staged into.
func (c *Config) InputsDir() string {
	return filepath.Join(c.StateDir, "inputs")
}

// AgentsDir returns the directory holding agent profile overrides.
func (c *Config) AgentsDir() string {
	return filepath.Join(c.StateDir, "agents")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// OutputsDir returns the directory the generated artifacts are written to.
func (c *Config) OutputsDir() string {
	if c.Project.Outputs.Dir != "" {
		return c.Project.Outputs.Dir
	}
	return c.ProjectDir
}

// ExportDir returns the directory "downloads" are copied into.
func (c *Config) ExportDir() string {
	if c.Project.Outputs.ExportDir != "" {
		return c.Project.Outputs.ExportDir
	}
	return filepath.Join(c.ProjectDir, DefaultExportDir)
}

// Temperature returns the configured sampling temperature.
func (c *Config) Temperature() float64 {
	if c.Project.LLM.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Project.LLM.Temperature
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Project.applyDefaults()
			c.Project.normalize(c.ProjectDir)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func (c *Config) applyEnvOverrides() {
	if model := strings.TrimSpace(c.Getenv("JOBPREP_MODEL")); model != "" {
		c.Project.LLM.Model = model
	}
	if base := strings.TrimSpace(c.Getenv("JOBPREP_LLM_BASE_URL")); base != "" {
		c.Project.LLM.BaseURL = strings.TrimRight(base, "/")
	}
	if port := strings.TrimSpace(c.Getenv("JOBPREP_SERVER_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && parsed > 0 && parsed <= 65535 {
			c.Project.Server.Port = parsed
		}
	}
}

func (c *Config) credentialsFromEnv() Credentials {
	return Credentials{
		LLMAPIKey:    c.firstEnv("GEMINI_API_KEY", "JOBPREP_LLM_API_KEY", "OPENAI_API_KEY"),
		SearchAPIKey: c.firstEnv("SERPER_API_KEY"),
	}
}

func (c *Config) firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(c.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func readDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return values, nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{Version: 1}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.LLM.Model == "" {
		pc.LLM.Model = DefaultModel
	}
	if pc.LLM.BaseURL == "" {
		pc.LLM.BaseURL = DefaultLLMBaseURL
	}
	if pc.LLM.Temperature == nil {
		t := DefaultTemperature
		pc.LLM.Temperature = &t
	}
	if pc.LLM.Timeout <= 0 {
		pc.LLM.Timeout = DefaultLLMTimeout
	}
	if pc.LLM.MaxToolSteps <= 0 {
		pc.LLM.MaxToolSteps = DefaultMaxToolSteps
	}
	if pc.Search.Endpoint == "" {
		pc.Search.Endpoint = DefaultSearchEndpoint
	}
	if pc.Search.Results <= 0 {
		pc.Search.Results = DefaultSearchResults
	}
	if pc.Scrape.MaxBytes <= 0 {
		pc.Scrape.MaxBytes = DefaultScrapeMaxBytes
	}
	if pc.Scrape.Timeout <= 0 {
		pc.Scrape.Timeout = DefaultScrapeTimeout
	}
	if pc.Outputs.TailoredResume == "" {
		pc.Outputs.TailoredResume = DefaultTailoredResumeFile
	}
	if pc.Outputs.InterviewMaterials == "" {
		pc.Outputs.InterviewMaterials = DefaultInterviewMaterialsFile
	}
	if pc.Server.Host == "" {
		pc.Server.Host = DefaultServerHost
	}
	if pc.Server.Port == 0 {
		pc.Server.Port = DefaultServerPort
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.LLM.Model = strings.TrimSpace(pc.LLM.Model)
	pc.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(pc.LLM.BaseURL), "/")
	pc.Search.Endpoint = strings.TrimSpace(pc.Search.Endpoint)
	pc.Outputs.Dir = resolvePath(base, pc.Outputs.Dir)
	pc.Outputs.ExportDir = resolvePath(base, pc.Outputs.ExportDir)
	pc.Outputs.TailoredResume = strings.TrimSpace(pc.Outputs.TailoredResume)
	pc.Outputs.InterviewMaterials = strings.TrimSpace(pc.Outputs.InterviewMaterials)
	if pc.Runtime.MaxParallel < 0 {
		pc.Runtime.MaxParallel = 0
	}
	pc.Server.Host = strings.TrimSpace(pc.Server.Host)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if pc.LLM.Temperature != nil && (*pc.LLM.Temperature < 0 || *pc.LLM.Temperature > 2) {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if pc.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must be >= 0")
	}
	for field, name := range map[string]string{
		"outputs.tailored_resume":     pc.Outputs.TailoredResume,
		"outputs.interview_materials": pc.Outputs.InterviewMaterials,
	} {
		if name == "" {
			return fmt.Errorf("%s is required", field)
		}
		if filepath.Base(name) != name {
			return fmt.Errorf("%s must be a file name, got %q", field, name)
		}
	}
	if pc.Outputs.TailoredResume == pc.Outputs.InterviewMaterials {
		return fmt.Errorf("outputs must use distinct file names")
	}
	if pc.Server.Port < 0 || pc.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
