package contracts

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		name      string
		taskID    string
		template  string
		wantValid bool
	}{
		{
			name:      "research-ok",
			taskID:    "research",
			template:  "Analyze the job posting URL provided ({job_posting_url}).",
			wantValid: true,
		},
		{
			name:      "profile-ok",
			taskID:    "profile",
			template:  "Use GitHub ({github_url}) and write-up ({personal_writeup}).",
			wantValid: true,
		},
		{
			name:      "strategy-no-placeholders",
			taskID:    "strategy",
			template:  "Tailor the resume.",
			wantValid: true,
		},
		{
			name:      "unknown-placeholder",
			taskID:    "research",
			template:  "Visit {job_posting_url} as {user}.",
			wantValid: false,
		},
		{
			name:      "missing-required",
			taskID:    "profile",
			template:  "Use GitHub ({github_url}).",
			wantValid: false,
		},
		{
			name:      "unbalanced",
			taskID:    "research",
			template:  "Visit {job_posting_url",
			wantValid: false,
		},
		{
			name:      "attribute-access",
			taskID:    "research",
			template:  "Visit {job_posting_url} {job_posting_url.__class__}",
			wantValid: false,
		},
		{
			name:      "unknown-task",
			taskID:    "deploy",
			template:  "anything",
			wantValid: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			report := Check(tc.taskID, tc.template)
			if report.IsValid() != tc.wantValid {
				t.Fatalf("valid = %v, want %v (errors: %v)", report.IsValid(), tc.wantValid, report.Errors)
			}
		})
	}
}

func TestRenderSubstitutesLiterally(t *testing.T) {
	out, err := Render("profile", "GitHub ({github_url}) and write-up ({personal_writeup}).", Values{
		"github_url":       "https://github.com/alice",
		"personal_writeup": "uses {braces} literally",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "GitHub (https://github.com/alice) and write-up (uses {braces} literally)."
	if out != want {
		t.Fatalf("render = %q, want %q", out, want)
	}
}

func TestRenderRejectsInvalidTemplates(t *testing.T) {
	_, err := Render("research", "Visit {job_posting_url} then {secret}", Values{"job_posting_url": "x"})
	if !errors.Is(err, ErrInvalidTemplate) {
		t.Fatalf("expected ErrInvalidTemplate, got %v", err)
	}
	if !strings.Contains(err.Error(), "{secret}") {
		t.Fatalf("error should name the placeholder: %v", err)
	}
}

func TestRenderRequiresValues(t *testing.T) {
	_, err := Render("research", "Visit {job_posting_url}", Values{})
	if !errors.Is(err, ErrInvalidTemplate) || !strings.Contains(err.Error(), "job_posting_url") {
		t.Fatalf("expected missing value error, got %v", err)
	}
}

func TestPlaceholdersAreDistinct(t *testing.T) {
	got := Placeholders("{a} {b} {a}")
	if strings.Join(got, ",") != "a,b" {
		t.Fatalf("placeholders = %v", got)
	}
}
