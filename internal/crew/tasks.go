package crew

import (
	"github.com/kingrea/jobprep/internal/artifact"
	"github.com/kingrea/jobprep/internal/config"
	"github.com/kingrea/jobprep/internal/workflow"
)

// Task identifiers.
const (
	TaskResearch  = "research"
	TaskProfile   = "profile"
	TaskStrategy  = "strategy"
	TaskInterview = "interview"
)

// WorkflowID identifies the job application task graph.
const WorkflowID = "job-application"

// TaskSpec is a task of the crew. Description is a template whose
// placeholders are filled from the run inputs.
type TaskSpec struct {
	ID             string
	Name           string
	Agent          string
	Description    string
	ExpectedOutput string
	Context        []string
	Async          bool
	OutputFile     string
}

// Tasks returns the crew's tasks in declaration order, using the default
// output file names.
func Tasks() []TaskSpec {
	return []TaskSpec{
		{
			ID:    TaskResearch,
			Name:  "Job requirements",
			Agent: AgentResearcher,
			Description: "Analyze the job posting URL provided ({job_posting_url}) to extract key skills, " +
				"experiences, and qualifications required. Use the tools to gather content and " +
				"identify and categorize the requirements.",
			ExpectedOutput: "A structured list of job requirements, including necessary skills, qualifications, " +
				"and experiences.",
			Async: true,
		},
		{
			ID:    TaskProfile,
			Name:  "Candidate profile",
			Agent: AgentProfiler,
			Description: "Compile a detailed personal and professional profile using the GitHub ({github_url}) " +
				"URLs, and personal write-up ({personal_writeup}). Utilize tools to extract and " +
				"synthesize information from these sources.",
			ExpectedOutput: "A comprehensive profile document that includes skills, project experiences, " +
				"contributions, interests, and communication style.",
			Async: true,
		},
		{
			ID:    TaskStrategy,
			Name:  "Tailored resume",
			Agent: AgentResumeStrategist,
			Description: "Using the profile and job requirements obtained from previous tasks, tailor the " +
				"resume to highlight the most relevant areas. Employ tools to adjust and enhance " +
				"the resume content. Make sure this is the best resume ever but don't make up any " +
				"information. Update every section, including the initial summary, work experience, " +
				"skills, and education, to better reflect the candidate's abilities and how it " +
				"matches the job posting.",
			ExpectedOutput: "An updated resume that effectively highlights the candidate's qualifications and " +
				"experiences relevant to the job.",
			Context:    []string{TaskResearch, TaskProfile},
			OutputFile: artifact.TailoredResumeFile,
		},
		{
			ID:    TaskInterview,
			Name:  "Interview materials",
			Agent: AgentInterviewPreparer,
			Description: "Create a set of potential interview questions and talking points based on the " +
				"tailored resume and job requirements. Utilize tools to generate relevant questions " +
				"and discussion points. Make sure to use these questions and talking points to help " +
				"the candidate highlight the main points of the resume and how it matches the job " +
				"posting.",
			ExpectedOutput: "A document containing key questions and talking points that the candidate should " +
				"prepare for the initial interview.",
			Context:    []string{TaskResearch, TaskProfile, TaskStrategy},
			OutputFile: artifact.InterviewMaterialsFile,
		},
	}
}

func tasksFor(cfg *config.Config) []TaskSpec {
	tasks := Tasks()
	if cfg == nil {
		return tasks
	}
	for i := range tasks {
		switch tasks[i].ID {
		case TaskStrategy:
			if name := cfg.Project.Outputs.TailoredResume; name != "" {
				tasks[i].OutputFile = name
			}
		case TaskInterview:
			if name := cfg.Project.Outputs.InterviewMaterials; name != "" {
				tasks[i].OutputFile = name
			}
		}
	}
	return tasks
}

// Definition derives the workflow graph from the crew's tasks. A nil config
// yields the defaults.
func Definition(cfg *config.Config) workflow.Definition {
	return definitionFor(cfg, tasksFor(cfg))
}

func definitionFor(cfg *config.Config, tasks []TaskSpec) workflow.Definition {
	def := workflow.Definition{
		ID:          WorkflowID,
		Name:        "Job application crew",
		Description: "Research a posting, profile the candidate, tailor the resume and prepare for the interview.",
	}
	if cfg != nil {
		def.Runtime.MaxParallel = cfg.Project.Runtime.MaxParallel
	}
	for _, task := range tasks {
		def.Tasks = append(def.Tasks, workflow.TaskRef{
			ID:          task.ID,
			Agent:       task.Agent,
			Name:        task.Name,
			Description: task.Description,
			Context:     append([]string(nil), task.Context...),
			Async:       task.Async,
			OutputFile:  task.OutputFile,
		})
	}
	return def
}

// LayoutFromConfig maps the configuration onto the artifact layout.
func LayoutFromConfig(cfg *config.Config) artifact.Layout {
	return artifact.Layout{
		OutputsDir:             cfg.OutputsDir(),
		InputsDir:              cfg.InputsDir(),
		TailoredResumeFile:     cfg.Project.Outputs.TailoredResume,
		InterviewMaterialsFile: cfg.Project.Outputs.InterviewMaterials,
	}
}
