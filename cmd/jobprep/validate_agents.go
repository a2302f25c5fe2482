package main

import (
	"fmt"
	"os"

	"github.com/kingrea/jobprep/internal/contracts"
	"github.com/kingrea/jobprep/internal/crew"
	"github.com/kingrea/jobprep/plugins"
)

// handleValidateAgentsCommand checks the agent overrides in a directory and
// the built-in task templates.
func handleValidateAgentsCommand() bool {
	if len(os.Args) < 2 || os.Args[1] != "validate-agents" {
		return false
	}
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: jobprep validate-agents /path/to/agents")
		os.Exit(2)
	}
	files, err := plugins.LoadOverrideFiles(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}
	for _, file := range files {
		fmt.Printf("OK: %s (%s)\n", file.Path, file.Override.Agent)
	}
	if _, err := crew.Agents(overridesOf(files)...); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	valid := true
	for _, task := range crew.Tasks() {
		report := contracts.Check(task.ID, task.Description)
		if report.IsValid() {
			continue
		}
		valid = false
		fmt.Printf("Invalid task template: %s\n", report.TaskID)
		for _, validationErr := range report.Errors {
			fmt.Printf("- %v\n", validationErr)
		}
	}
	if !valid {
		os.Exit(1)
	}
	fmt.Printf("%d override(s) valid\n", len(files))
	os.Exit(0)
	return true
}

func overridesOf(files []plugins.OverrideFile) []crew.AgentOverride {
	out := make([]crew.AgentOverride, 0, len(files))
	for _, file := range files {
		out = append(out, file.Override)
	}
	return out
}
