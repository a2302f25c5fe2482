package workflow

import (
	"errors"
	"strings"
	"testing"
)

const crewGraph = `
id: job-application
name: Job application crew
runtime:
  max_parallel: 0
tasks:
  - id: research
    agent: researcher
    async: true
  - id: profile
    agent: profiler
    async: true
  - id: strategy
    agent: resume_strategist
    context: [research, profile]
    output_file: tailored_resume.md
  - id: interview
    agent: interview_preparer
    context: [research, profile, strategy]
    output_file: interview_materials.md
`

func TestParseDefinitionYAMLRejectsMissingTasks(t *testing.T) {
	const payload = `
id: missing-tasks
tasks: []
`
	_, err := ParseDefinitionYAML([]byte(payload))
	if err == nil {
		t.Fatalf("expected error when tasks are missing")
	}
	if !strings.Contains(err.Error(), "at least one task is required") {
		t.Fatalf("unexpected error for missing tasks: %v", err)
	}
}

func TestParseDefinitionYAMLRejectsInvalidContextReferences(t *testing.T) {
	const payload = `
id: invalid-context
tasks:
  - id: start
    agent: researcher
    context: [missing]
`
	_, err := ParseDefinitionYAML([]byte(payload))
	if err == nil {
		t.Fatalf("expected error when context references unknown task")
	}
	if !strings.Contains(err.Error(), "references unknown task") {
		t.Fatalf("unexpected error for context reference: %v", err)
	}
}

func TestParseDefinitionYAMLRejectsDuplicatesAndSelfReference(t *testing.T) {
	cases := map[string]string{
		"duplicate id": "id: dup\ntasks:\n  - id: a\n    agent: x\n  - id: a\n    agent: y\n",
		"self context": "id: self\ntasks:\n  - id: a\n    agent: x\n    context: [a]\n",
		"no agent":     "id: agentless\ntasks:\n  - id: a\n",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseDefinitionYAML([]byte(payload)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseDefinitionYAMLClampsNegativeParallelSettings(t *testing.T) {
	const payload = `
id: clamp-runtime
runtime:
  max_parallel: -4
tasks:
  - id: research
    agent: researcher
`
	def, err := ParseDefinitionYAML([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error parsing runtime clamp: %v", err)
	}
	if def.Runtime.MaxParallel != 0 {
		t.Fatalf("max_parallel should clamp to 0, got %d", def.Runtime.MaxParallel)
	}
}

func TestNormalizedDedupesContextPreservingOrder(t *testing.T) {
	def := Definition{
		ID: "dedupe",
		Tasks: []TaskRef{
			{ID: "b", Agent: "x"},
			{ID: "a", Agent: "x"},
			{ID: "c", Agent: "x", Context: []string{" b ", "a", "b", ""}},
		},
	}
	norm, err := def.Normalized()
	if err != nil {
		t.Fatalf("Normalized: %v", err)
	}
	got := strings.Join(norm.Dependencies("c"), ",")
	if got != "b,a" {
		t.Fatalf("context = %s, want b,a", got)
	}
	if len(def.Tasks[2].Context) != 4 {
		t.Fatalf("Normalized must not mutate the receiver")
	}
}

func TestTopologicalOrderForCrewGraph(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(crewGraph))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	order, err := def.TopologicalOrder()
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if got := strings.Join(order, ","); got != "research,profile,strategy,interview" {
		t.Fatalf("order = %s", got)
	}
	ref, ok := def.Task("strategy")
	if !ok || ref.OutputFile != "tailored_resume.md" || ref.Async {
		t.Fatalf("unexpected strategy ref %+v", ref)
	}
}

func TestTopologicalOrderTieBreaksByDeclaration(t *testing.T) {
	def := Definition{
		ID: "ties",
		Tasks: []TaskRef{
			{ID: "late", Agent: "x", Context: []string{"root"}},
			{ID: "root", Agent: "x"},
			{ID: "other", Agent: "x"},
		},
	}
	order, err := def.TopologicalOrder()
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if got := strings.Join(order, ","); got != "root,other,late" {
		t.Fatalf("order = %s, want root,other,late", got)
	}
}

func TestValidateRejectsCycleWithWitness(t *testing.T) {
	def := Definition{
		ID: "cyclic",
		Tasks: []TaskRef{
			{ID: "a", Agent: "x", Context: []string{"b"}},
			{ID: "b", Agent: "x", Context: []string{"c"}},
			{ID: "c", Agent: "x", Context: []string{"a"}},
		},
	}
	err := def.Validate()
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if got := strings.Join(cycleErr.Path, " -> "); got != "a -> b -> c -> a" {
		t.Fatalf("witness = %s", got)
	}
}

func TestMarshalYAMLRoundTrip(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(crewGraph))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	data, err := MarshalYAML(def)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), "output_file: interview_materials.md") {
		t.Fatalf("marshalled yaml missing output file:\n%s", data)
	}
	again, err := ParseDefinitionYAML(data)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(again.Tasks) != 4 || !again.Tasks[0].Async {
		t.Fatalf("round trip lost tasks: %+v", again.Tasks)
	}
}
