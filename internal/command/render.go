package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/signalbox/internal/models"
)

// HelpText is the static usage guide.
const HelpText = `Signalbox task assistant. Mention me with a command:

• Create: "@bot remind Alice to send the contract by Friday 18:00, high priority"
• Complete: "@bot task 12 done", "@bot that one is done" or "@bot complete all"
• Query: "@bot my tasks", "@bot overdue tasks" or "@bot show task 12"
• Update: "@bot change task 12 deadline to 2024-06-01 18:00"

Statuses: in_progress, overdue, done. Priorities: high, medium, low.`

const timeLayout = "2006-01-02 15:04"

// StatusIcon returns the list icon for a task status.
func StatusIcon(status string) string {
	switch status {
	case models.TaskOverdue:
		return "⚠️"
	case models.TaskDone:
		return "✅"
	default:
		return "🔄"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (r *Router) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.In(r.loc).Format(timeLayout)
}

func (r *Router) renderCreated(t *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Task created [#%d]\n", t.ID)
	fmt.Fprintf(&b, "Content: %s\n", t.Content)
	fmt.Fprintf(&b, "Assignee: %s\n", orDash(t.Assignee))
	fmt.Fprintf(&b, "Deadline: %s\n", orDash(t.Deadline))
	fmt.Fprintf(&b, "Priority: %s", t.Priority)
	return b.String()
}

func renderPartial(t *models.Task, missing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 Task recorded [#%d]: %s\n", t.ID, t.Content)
	if len(missing) == 0 {
		return strings.TrimSuffix(b.String(), "\n")
	}
	fmt.Fprintf(&b, "Still missing: %s\n", strings.Join(missing, ", "))
	for _, m := range missing {
		switch m {
		case "deadline":
			fmt.Fprintf(&b, "Set it with \"update task %d deadline 2024-06-01 18:00\"\n", t.ID)
		case "assignee":
			fmt.Fprintf(&b, "Set it with \"update task %d assignee @name\"\n", t.ID)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderBatchDone(closed []models.Task) string {
	if len(closed) == 0 {
		return "There are no open tasks to complete."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Completed %d tasks:", len(closed))
	for _, t := range closed {
		fmt.Fprintf(&b, "\n• [#%d] %s", t.ID, t.Content)
	}
	return b.String()
}

func (r *Router) renderDetail(t *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Task [#%d]\n", t.ID)
	fmt.Fprintf(&b, "Content: %s\n", t.Content)
	fmt.Fprintf(&b, "Assignee: %s\n", orDash(t.Assignee))
	fmt.Fprintf(&b, "Deadline: %s\n", orDash(t.Deadline))
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "Status: %s %s\n", StatusIcon(t.Status), t.Status)
	fmt.Fprintf(&b, "Creator: %s\n", orDash(t.CreatorName))
	created := t.CreatedAt
	fmt.Fprintf(&b, "Created: %s", r.formatTime(&created))
	if t.CompletedAt != nil {
		fmt.Fprintf(&b, "\nCompleted: %s", r.formatTime(t.CompletedAt))
	}
	return b.String()
}

func renderList(tasks []models.Task) string {
	if len(tasks) == 0 {
		return "No matching tasks."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Tasks (%d):", len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n%s [#%d] %s", StatusIcon(t.Status), t.ID, t.Content)
		if t.Assignee != "" {
			fmt.Fprintf(&b, " @%s", t.Assignee)
		}
		if t.Deadline != "" {
			fmt.Fprintf(&b, " (due %s)", t.Deadline)
		}
	}
	return b.String()
}
