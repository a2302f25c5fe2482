// Package artifact defines the files a crew run reads and produces. Each
// artifact has a stable identifier, a kind, and a resolver that maps it to a
// path inside the project's layout.

package artifact

import (
	"fmt"
	"path/filepath"
)

// Kind captures the role an artifact plays in a run.
type Kind string

const (
	// KindDocument is a generated markdown document written verbatim.
	KindDocument Kind = "document"
	// KindInput is user-provided material staged for the tools.
	KindInput Kind = "input"
)

// Default file names.
const (
	TailoredResumeFile     = "tailored_resume.md"
	InterviewMaterialsFile = "interview_materials.md"
	ResumeInputFile        = "resume.md"
)

// Layout describes where artifacts live for a project.
type Layout struct {
	OutputsDir             string
	InputsDir              string
	TailoredResumeFile     string
	InterviewMaterialsFile string
}

func (l Layout) withDefaults() Layout {
	if l.TailoredResumeFile == "" {
		l.TailoredResumeFile = TailoredResumeFile
	}
	if l.InterviewMaterialsFile == "" {
		l.InterviewMaterialsFile = InterviewMaterialsFile
	}
	return l
}

// PathResolver returns the fully-qualified path to an artifact for a layout.
type PathResolver func(Layout) string

// ArtifactRef declares a stable identifier and metadata for an artifact.
type ArtifactRef struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	path        PathResolver
}

// Path resolves the artifact path for the provided layout.
func (r ArtifactRef) Path(layout Layout) string {
	if r.path == nil {
		return ""
	}
	resolved := r.path(layout.withDefaults())
	if resolved == "" {
		return ""
	}
	return filepath.Clean(resolved)
}

// FileName returns the base name of the artifact within the layout.
func (r ArtifactRef) FileName(layout Layout) string {
	path := r.Path(layout)
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

// Validate ensures the reference is well-formed.
func (r ArtifactRef) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("artifact: id is required")
	}
	if r.Kind == "" {
		return fmt.Errorf("artifact: kind is required for %s", r.ID)
	}
	if r.path == nil {
		return fmt.Errorf("artifact: path resolver missing for %s", r.ID)
	}
	return nil
}

// State captures the readiness of an artifact on disk.
type State string

const (
	StateMissing State = "missing"
	StateReady   State = "ready"
	StateInvalid State = "invalid"
	StateError   State = "error"
)

// CheckResult captures Store.Check results.
type CheckResult struct {
	Ref   ArtifactRef
	Path  string
	State State
	Size  int64
	Err   error
}

// helper to register global references
func register(ref ArtifactRef) ArtifactRef {
	if refs == nil {
		refs = map[string]ArtifactRef{}
	}
	refs[ref.ID] = ref
	order = append(order, ref.ID)
	return ref
}

var (
	refs  map[string]ArtifactRef
	order []string
)

// Lookup returns a registered artifact reference by ID.
func Lookup(id string) (ArtifactRef, bool) {
	ref, ok := refs[id]
	return ref, ok
}

// Outputs returns the generated document references in display order.
func Outputs() []ArtifactRef {
	var out []ArtifactRef
	for _, id := range order {
		if ref := refs[id]; ref.Kind == KindDocument {
			out = append(out, ref)
		}
	}
	return out
}

func newDocRef(id, name, desc string, resolver PathResolver) ArtifactRef {
	return ArtifactRef{
		ID:          id,
		Name:        name,
		Description: desc,
		Kind:        KindDocument,
		path:        resolver,
	}
}

func newInputRef(id, name, desc string, resolver PathResolver) ArtifactRef {
	return ArtifactRef{
		ID:          id,
		Name:        name,
		Description: desc,
		Kind:        KindInput,
		path:        resolver,
	}
}

// Canonical artifact references for a crew run.
var (
	TailoredResume = register(newDocRef("tailored-resume", "Tailored resume", "Resume rewritten for the job posting", func(l Layout) string {
		return filepath.Join(l.OutputsDir, l.TailoredResumeFile)
	}))
	InterviewMaterials = register(newDocRef("interview-materials", "Interview materials", "Likely questions and talking points", func(l Layout) string {
		return filepath.Join(l.OutputsDir, l.InterviewMaterialsFile)
	}))
	ResumeInput = register(newInputRef("resume-input", "Resume", "Candidate resume staged for the file tools", func(l Layout) string {
		if l.InputsDir == "" {
			return ""
		}
		return filepath.Join(l.InputsDir, ResumeInputFile)
	}))
)
