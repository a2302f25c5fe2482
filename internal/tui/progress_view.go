package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/jobprep/internal/workflow"
	"github.com/kingrea/jobprep/internal/workflow/engine"
)

// taskProgress tracks what the TUI knows about one task of the running crew.
type taskProgress struct {
	ref      workflow.TaskRef
	state    string
	started  time.Time
	finished time.Time
	err      string
}

func newTaskProgress(def workflow.Definition) []taskProgress {
	items := make([]taskProgress, 0, len(def.Tasks))
	for _, task := range def.Tasks {
		state := "pending"
		if len(task.Context) == 0 {
			state = "ready"
		}
		items = append(items, taskProgress{ref: task, state: state})
	}
	return items
}

// applyEvent folds a node event into the progress list.
func applyEvent(items []taskProgress, ev engine.NodeEvent) {
	for i := range items {
		if items[i].ref.ID != ev.NodeID {
			continue
		}
		switch ev.Kind {
		case engine.EventStarted:
			items[i].state = "running"
			items[i].started = ev.At
		case engine.EventCompleted:
			items[i].state = "complete"
			items[i].finished = ev.At
		case engine.EventFailed:
			items[i].state = "error"
			items[i].finished = ev.At
			if ev.Err != nil {
				items[i].err = ev.Err.Error()
			}
		}
	}
	refreshReadiness(items)
}

func refreshReadiness(items []taskProgress) {
	done := map[string]bool{}
	for _, item := range items {
		if item.state == "complete" {
			done[item.ref.ID] = true
		}
	}
	for i := range items {
		if items[i].state != "pending" {
			continue
		}
		ready := true
		for _, dep := range items[i].ref.Context {
			if !done[dep] {
				ready = false
				break
			}
		}
		if ready {
			items[i].state = "ready"
		}
	}
}

func renderProgress(items []taskProgress, spinner string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		name := item.ref.Name
		if strings.TrimSpace(name) == "" {
			name = item.ref.ID
		}
		indicator := " "
		if item.state == "running" {
			indicator = spinner
		}
		label := labelStyleForState(item.state).Render(friendlyLabel(item.state))
		line := fmt.Sprintf("%s %s · [%s]", indicator, name, label)
		if item.ref.Agent != "" {
			line += detailTextStyle.Render(" " + friendlyLabel(item.ref.Agent))
		}
		if item.state == "complete" && !item.started.IsZero() && !item.finished.IsZero() {
			line += detailTextStyle.Render(" " + item.finished.Sub(item.started).Round(time.Second).String())
		}
		lines = append(lines, line)
		if item.err != "" {
			lines = append(lines, detailTextStyle.Render("  error: "+item.err))
		}
	}
	return strings.Join(lines, "\n")
}

func labelStyleForState(state string) lipgloss.Style {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "ready", "complete":
		return labelStyleReady
	case "error":
		return labelStyleBlocked
	case "running":
		return labelStyleRunning
	default:
		return labelStyleDefault
	}
}

func friendlyLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	replacer := strings.NewReplacer("_", " ", "-", " ")
	words := strings.Fields(replacer.Replace(strings.ToLower(value)))
	if len(words) == 0 {
		return ""
	}
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
