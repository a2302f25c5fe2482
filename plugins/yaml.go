package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/jobprep/internal/crew"
)

// OverrideFile pairs a parsed agent override with its on-disk source.
type OverrideFile struct {
	Override crew.AgentOverride
	Path     string
}

// ParseOverrideYAML decodes and validates a single agent override payload.
func ParseOverrideYAML(data []byte) (crew.AgentOverride, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return crew.AgentOverride{}, fmt.Errorf("plugin: override payload is empty")
	}
	var override crew.AgentOverride
	if err := yaml.Unmarshal(data, &override); err != nil {
		return crew.AgentOverride{}, fmt.Errorf("plugin: decode override: %w", err)
	}
	if err := ValidateOverride(override); err != nil {
		return crew.AgentOverride{}, err
	}
	return normalizeOverride(override), nil
}

// LoadOverrideFile reads a YAML override from disk.
func LoadOverrideFile(path string) (OverrideFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return OverrideFile{}, fmt.Errorf("plugin: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return OverrideFile{}, fmt.Errorf("plugin: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return OverrideFile{}, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	override, err := ParseOverrideYAML(data)
	if err != nil {
		return OverrideFile{}, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return OverrideFile{Override: override, Path: filepath.Clean(path)}, nil
}

// LoadOverrideDir scans a directory for *.yaml overrides. Missing directories
// mean "no overrides".
func LoadOverrideDir(dir string) ([]OverrideFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}
	var files []OverrideFile
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		file, err := LoadOverrideFile(filepath.Join(trimmed, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return nil, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
