package plugins

import (
	"fmt"

	"github.com/kingrea/jobprep/internal/config"
	"github.com/kingrea/jobprep/internal/crew"
)

// LoadOverrides discovers YAML and Go agent overrides under .jobprep/agents.
func LoadOverrides(cfg *config.Config) ([]crew.AgentOverride, error) {
	if cfg == nil {
		return nil, nil
	}
	files, err := LoadOverrideFiles(cfg.AgentsDir())
	if err != nil {
		return nil, err
	}
	overrides := make([]crew.AgentOverride, 0, len(files))
	for _, file := range files {
		overrides = append(overrides, file.Override)
	}
	return overrides, nil
}

// LoadOverrideFiles loads every override in dir and rejects two files
// targeting the same agent.
func LoadOverrideFiles(dir string) ([]OverrideFile, error) {
	yamlFiles, err := LoadOverrideDir(dir)
	if err != nil {
		return nil, err
	}
	goFiles, err := LoadGoOverrideDir(dir)
	if err != nil {
		return nil, err
	}
	files := append(yamlFiles, goFiles...)
	seen := make(map[string]string, len(files))
	for _, file := range files {
		id := file.Override.Agent
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("plugin: duplicate override for agent %s (%s and %s)", id, existing, file.Path)
		}
		seen[id] = file.Path
	}
	return files, nil
}
