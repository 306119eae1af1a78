package cmd

import (
	"context"
	"strconv"
	"strings"

	"github.com/Tiliavir/trivial-study-tracker/internal/client"
	"github.com/Tiliavir/trivial-study-tracker/internal/model"
)

// shortIDLen is how many characters of a task id the CLI prints.
const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

// parsePlanned parses "name|subject|minutes" or "name|minutes".
func parsePlanned(arg string) (model.PlannedTask, error) {
	parts := strings.Split(arg, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	var p model.PlannedTask
	var minutes string
	switch len(parts) {
	case 2:
		p.Name, minutes = parts[0], parts[1]
	case 3:
		p.Name, p.Subject, minutes = parts[0], parts[1], parts[2]
	default:
		return p, userErrorf("%q: expected \"name|subject|minutes\" or \"name|minutes\"", arg)
	}
	if p.Name == "" {
		return p, userErrorf("%q: task name is empty", arg)
	}
	n, err := strconv.Atoi(minutes)
	if err != nil || n <= 0 {
		return p, userErrorf("%q: minutes must be a positive whole number", arg)
	}
	p.EstimatedMinutes = n
	return p, nil
}

// findTask resolves a full id or a unique prefix among today's tasks of
// the caller.
func findTask(ctx context.Context, c *client.Client, ref string) (model.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Task{}, userErrorf("task id is empty")
	}
	tasks, err := c.TasksToday(ctx, false)
	if err != nil {
		return model.Task{}, err
	}
	return matchTask(tasks, ref)
}

func matchTask(tasks []model.Task, ref string) (model.Task, error) {
	var matches []model.Task
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, userErrorf("no task of today matches %q (see \"tst list\")", ref)
	case 1:
		return matches[0], nil
	}
	return model.Task{}, userErrorf("%q is ambiguous: matches %d tasks", ref, len(matches))
}
