package contracts

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalidTemplate is wrapped by every Render failure.
var ErrInvalidTemplate = errors.New("contracts: invalid task template")

// Values maps placeholder names to their substitutions.
type Values map[string]string

var placeholderPattern = regexp.MustCompile(`\{([^{}]*)\}`)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Placeholders returns the distinct placeholder names in template order.
func Placeholders(template string) []string {
	var names []string
	seen := map[string]struct{}{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		name := match[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// ValidateTemplate checks a description template against the task contract.
func ValidateTemplate(taskID, template string) []error {
	contract, ok := ContractForTask(taskID)
	if !ok {
		return []error{fmt.Errorf("unknown task %q", taskID)}
	}
	var errs []error
	if err := checkBraces(template); err != nil {
		errs = append(errs, err)
	}
	allowed := make(map[string]struct{}, len(contract.Placeholders))
	for _, name := range contract.Placeholders {
		allowed[name] = struct{}{}
	}
	found := map[string]struct{}{}
	for _, name := range Placeholders(template) {
		found[name] = struct{}{}
		if !namePattern.MatchString(name) {
			errs = append(errs, fmt.Errorf("placeholder {%s} is not a valid name", name))
			continue
		}
		if _, ok := allowed[name]; !ok {
			errs = append(errs, fmt.Errorf("placeholder {%s} is not accepted by task %s", name, taskID))
		}
	}
	for _, required := range contract.Placeholders {
		if _, ok := found[required]; !ok {
			errs = append(errs, fmt.Errorf("missing required placeholder {%s}", required))
		}
	}
	return errs
}

// Render validates the template and substitutes every placeholder. Values are
// inserted literally and never re-expanded.
func Render(taskID, template string, values Values) (string, error) {
	if errs := ValidateTemplate(taskID, template); len(errs) > 0 {
		return "", fmt.Errorf("%w %s: %s", ErrInvalidTemplate, taskID, joinErrors(errs))
	}
	var missing []string
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1 : len(token)-1]
		value, ok := values[name]
		if !ok {
			missing = append(missing, name)
			return token
		}
		return value
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w %s: no value for %s", ErrInvalidTemplate, taskID, strings.Join(missing, ", "))
	}
	return rendered, nil
}

func checkBraces(template string) error {
	depth := 0
	for i, r := range template {
		switch r {
		case '{':
			if depth > 0 {
				return fmt.Errorf("nested brace at offset %d", i)
			}
			depth++
		case '}':
			if depth == 0 {
				return fmt.Errorf("unbalanced closing brace at offset %d", i)
			}
			depth--
		}
	}
	if depth != 0 {
		return fmt.Errorf("unclosed brace")
	}
	return nil
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}
