package contracts

// Contract describes the fixed template schema for a task.
type Contract struct {
	TaskID string
	// Placeholders must each appear in the task description template.
	Placeholders []string
	// Behaviors are handed to the agent as guidelines for its answer.
	Behaviors []string
}

var taskContracts = map[string]Contract{
	"research": {
		TaskID:       "research",
		Placeholders: []string{"job_posting_url"},
		Behaviors: []string{
			"read the posting before searching the web",
			"categorize requirements into skills, qualifications and experience",
		},
	},
	"profile": {
		TaskID:       "profile",
		Placeholders: []string{"github_url", "personal_writeup"},
		Behaviors: []string{
			"synthesize every source into one profile",
		},
	},
	"strategy": {
		TaskID: "strategy",
		Behaviors: []string{
			"never invent experience",
			"update every resume section",
		},
	},
	"interview": {
		TaskID: "interview",
		Behaviors: []string{
			"tie every talking point to the tailored resume",
		},
	},
}

// ContractForTask returns the contract for the given task, if it exists.
func ContractForTask(taskID string) (Contract, bool) {
	contract, ok := taskContracts[taskID]
	return contract, ok
}
