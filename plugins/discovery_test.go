package plugins

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/jobprep/internal/config"
	"github.com/kingrea/jobprep/internal/crew"
)

func initTestConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	if err := config.InitStateDir(root); err != nil {
		t.Fatalf("init state dir: %v", err)
	}
	return &config.Config{
		ProjectDir: root,
		StateDir:   filepath.Join(root, config.StateDirName),
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg := initTestConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.AgentsDir(), "strategist.yaml"), []byte(sampleOverride), 0644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.AgentsDir(), "interview.go"), []byte(goOverrideSource), 0644); err != nil {
		t.Fatalf("write go: %v", err)
	}
	overrides, err := LoadOverrides(cfg)
	if err != nil {
		t.Fatalf("load overrides: %v", err)
	}
	if len(overrides) != 2 {
		t.Fatalf("expected 2 overrides, got %d", len(overrides))
	}
	specs, err := crew.Agents(overrides...)
	if err != nil {
		t.Fatalf("apply overrides: %v", err)
	}
	if specs[2].Role != "Staff Resume Strategist" {
		t.Fatalf("strategist override not applied: %+v", specs[2])
	}
	if specs[3].Goal != "Prepare the candidate for a system design round" {
		t.Fatalf("interview override not applied: %+v", specs[3])
	}
}

func TestLoadOverridesRejectsDuplicates(t *testing.T) {
	cfg := initTestConfig(t)
	for _, name := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(cfg.AgentsDir(), name), []byte(sampleOverride), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	_, err := LoadOverrides(cfg)
	if err == nil || !strings.Contains(err.Error(), "duplicate override") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestLoadOverridesWithoutDirectory(t *testing.T) {
	cfg := &config.Config{ProjectDir: t.TempDir()}
	cfg.StateDir = filepath.Join(cfg.ProjectDir, config.StateDirName)
	overrides, err := LoadOverrides(cfg)
	if err != nil || len(overrides) != 0 {
		t.Fatalf("expected no overrides, got %v err=%v", overrides, err)
	}
}
