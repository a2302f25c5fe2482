package plugins

import (
	"os"
	"path/filepath"
	"testing"
)

const goOverrideSource = `package main

func AgentOverrides() ([]map[string]any, error) {
	return []map[string]any{
		{
			"agent": "interview_preparer",
			"goal":  "Prepare the candidate for a system design round",
		},
	}, nil
}`

func TestLoadGoOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "interview.go"), []byte(goOverrideSource), 0644); err != nil {
		t.Fatalf("write plugin: %v", err)
	}
	files, err := LoadGoOverrideDir(dir)
	if err != nil {
		t.Fatalf("load go overrides: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 override, got %d", len(files))
	}
	if files[0].Override.Agent != "interview_preparer" {
		t.Fatalf("unexpected override: %+v", files[0].Override)
	}
	if files[0].Path != filepath.Join(dir, "interview.go")+"#1" {
		t.Fatalf("unexpected path %s", files[0].Path)
	}
}

func TestLoadGoOverrideDirMissingFunc(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatalf("write broken plugin: %v", err)
	}
	if _, err := LoadGoOverrideDir(dir); err == nil {
		t.Fatalf("expected error for missing AgentOverrides function")
	}
}
