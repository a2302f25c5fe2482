// Package crew binds the job application agents and tasks to the workflow
// engine. It owns the fixed task graph: research and profile run together,
// the resume strategy follows both, and interview preparation comes last.
package crew

import (
	"fmt"
	"strings"

	"github.com/kingrea/jobprep/internal/agent"
	"github.com/kingrea/jobprep/internal/tools"
)

// Agent identifiers.
const (
	AgentResearcher        = "researcher"
	AgentProfiler          = "profiler"
	AgentResumeStrategist  = "resume_strategist"
	AgentInterviewPreparer = "interview_preparer"
)

var (
	webTools    = []string{tools.ScrapeWebsite, tools.SearchInternet}
	resumeTools = []string{tools.ScrapeWebsite, tools.SearchInternet, tools.ReadResume, tools.SearchResume}
)

// AgentOverride replaces parts of a built-in agent profile. Empty fields keep
// the built-in value.
type AgentOverride struct {
	Agent     string `yaml:"agent" json:"agent"`
	Role      string `yaml:"role,omitempty" json:"role,omitempty"`
	Goal      string `yaml:"goal,omitempty" json:"goal,omitempty"`
	Backstory string `yaml:"backstory,omitempty" json:"backstory,omitempty"`
	Verbose   *bool  `yaml:"verbose,omitempty" json:"verbose,omitempty"`
}

// AgentIDs lists the known agents in crew order.
func AgentIDs() []string {
	return []string{AgentResearcher, AgentProfiler, AgentResumeStrategist, AgentInterviewPreparer}
}

// IsAgent reports whether id names a built-in agent.
func IsAgent(id string) bool {
	for _, known := range AgentIDs() {
		if known == id {
			return true
		}
	}
	return false
}

func builtinAgents() []agent.AgentSpec {
	return []agent.AgentSpec{
		{
			ID:      AgentResearcher,
			Role:    "Tech Job Researcher",
			Goal:    "Make sure to do amazing analysis on job posting to help job applicants",
			Tools:   webTools,
			Verbose: true,
			Backstory: "As a Job Researcher, your prowess in navigating and extracting critical " +
				"information from job postings is unmatched. Your skills help pinpoint the " +
				"necessary qualifications and skills sought by employers, forming the " +
				"foundation for effective application tailoring.",
		},
		{
			ID:      AgentProfiler,
			Role:    "Personal Profiler for Engineers",
			Goal:    "Do incredible research on job applicants to help them stand out in the job market",
			Tools:   resumeTools,
			Verbose: true,
			Backstory: "Equipped with analytical prowess, you dissect and synthesize information " +
				"from diverse sources to craft comprehensive personal and professional profiles, " +
				"laying the groundwork for personalized resume enhancements.",
		},
		{
			ID:      AgentResumeStrategist,
			Role:    "Resume Strategist for Engineers",
			Goal:    "Find all the best ways to make a resume stand out in the job market.",
			Tools:   resumeTools,
			Verbose: true,
			Backstory: "With a strategic mind and an eye for detail, you excel at refining resumes " +
				"to highlight the most relevant skills and experiences, ensuring they resonate " +
				"perfectly with the job's requirements.",
		},
		{
			ID:      AgentInterviewPreparer,
			Role:    "Engineering Interview Preparer",
			Goal:    "Create interview questions and talking points based on the resume and job requirements",
			Tools:   resumeTools,
			Verbose: true,
			Backstory: "Your role is crucial in anticipating the dynamics of interviews. With your " +
				"ability to formulate key questions and talking points, you prepare candidates " +
				"for success, ensuring they can confidently address all aspects of the job.",
		},
	}
}

// Agents builds fresh agent profiles for a run, applying overrides on top of
// the built-in profiles. Tool bindings cannot be overridden.
func Agents(overrides ...AgentOverride) ([]agent.AgentSpec, error) {
	specs := builtinAgents()
	index := make(map[string]int, len(specs))
	for i := range specs {
		specs[i] = specs[i].Clone()
		index[specs[i].ID] = i
	}
	seen := map[string]bool{}
	for _, override := range overrides {
		id := strings.TrimSpace(override.Agent)
		pos, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("crew: override for unknown agent %q", override.Agent)
		}
		if seen[id] {
			return nil, fmt.Errorf("crew: duplicate override for agent %s", id)
		}
		seen[id] = true
		spec := &specs[pos]
		if v := strings.TrimSpace(override.Role); v != "" {
			spec.Role = v
		}
		if v := strings.TrimSpace(override.Goal); v != "" {
			spec.Goal = v
		}
		if v := strings.TrimSpace(override.Backstory); v != "" {
			spec.Backstory = v
		}
		if override.Verbose != nil {
			spec.Verbose = *override.Verbose
		}
	}
	return specs, nil
}

// ToolNames returns every tool any agent is bound to.
func ToolNames(specs []agent.AgentSpec) []string {
	seen := map[string]bool{}
	var names []string
	for _, spec := range specs {
		for _, name := range spec.Tools {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
