package crew

import (
	"errors"
	"strings"
)

// MissingInputsMessage is shown when any required input is empty.
const MissingInputsMessage = "Please provide all required inputs."

// ErrInvalidInput marks input validation failures.
var ErrInvalidInput = errors.New("crew: invalid input")

// Input field names, as used by the task templates and the HTTP API.
const (
	FieldJobPostingURL   = "job_posting_url"
	FieldGitHubURL       = "github_url"
	FieldPersonalWriteup = "personal_writeup"
	FieldResume          = "resume"
)

// RunInputs are the four user-provided values for a run. Values are opaque
// text; URLs are not checked for format.
type RunInputs struct {
	JobPostingURL   string `json:"job_posting_url"`
	GitHubURL       string `json:"github_url"`
	PersonalWriteup string `json:"personal_writeup"`
	// Resume holds the markdown content of the resume.
	Resume string `json:"resume"`
}

// ValidationError lists the inputs that were empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return MissingInputsMessage + " Missing: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Validate reports every empty or whitespace-only input.
func (in RunInputs) Validate() error {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check(FieldJobPostingURL, in.JobPostingURL)
	check(FieldGitHubURL, in.GitHubURL)
	check(FieldPersonalWriteup, in.PersonalWriteup)
	check(FieldResume, in.Resume)
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

func (in RunInputs) templateValues() map[string]string {
	return map[string]string{
		FieldJobPostingURL:   in.JobPostingURL,
		FieldGitHubURL:       in.GitHubURL,
		FieldPersonalWriteup: in.PersonalWriteup,
	}
}
