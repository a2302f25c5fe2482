package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kingrea/jobprep/internal/config"
	"github.com/kingrea/jobprep/internal/crew"
)

func TestRunRejectsMissingInputsBeforeTouchingProject(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	err := run([]string{"-project", dir, "-job-url", "https://jobs.example/1"}, &stdout, &stderr)
	if !errors.Is(err, crew.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, config.StateDirName)); !os.IsNotExist(statErr) {
		t.Fatalf("state dir should not be created for invalid inputs: %v", statErr)
	}
	if stdout.Len() != 0 {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestRunReportsUnreadableResume(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"-resume", filepath.Join(t.TempDir(), "missing.md")}, &stdout, &stderr)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected missing resume error, got %v", err)
	}
}
