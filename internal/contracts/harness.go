package contracts

// Report captures validation results for a task template.
type Report struct {
	TaskID string
	Errors []error
}

// Check validates a template and returns a report.
func Check(taskID, template string) *Report {
	return &Report{
		TaskID: taskID,
		Errors: ValidateTemplate(taskID, template),
	}
}

// IsValid reports whether the validation passed.
func (r *Report) IsValid() bool {
	return r != nil && len(r.Errors) == 0
}
