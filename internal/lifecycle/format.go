package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
)

// FormatReminder renders the reminder posted to a task's group. custom,
// when set, replaces the generated body text.
func FormatReminder(t *models.Task, reason, custom string, loc *time.Location) notify.Message {
	msg := notify.Message{Severity: notify.SeverityWarning}
	switch reason {
	case models.ReasonDeadline:
		msg.Title = fmt.Sprintf("Task [#%d] is past its deadline", t.ID)
		msg.Severity = notify.SeverityError
	case models.ReasonTimeout24h:
		msg.Title = fmt.Sprintf("Task [#%d] has been open for over a day", t.ID)
	default:
		msg.Title = fmt.Sprintf("Reminder for task [#%d]", t.ID)
	}

	var b strings.Builder
	if custom != "" {
		b.WriteString(custom)
	} else {
		b.WriteString(t.Content)
	}
	if t.Assignee != "" {
		fmt.Fprintf(&b, "\n@%s please follow up.", t.Assignee)
	}
	msg.Text = b.String()

	deadline := t.Deadline
	if deadline == "" {
		deadline = "none"
	}
	msg.Fields = []notify.Field{
		{Name: "Deadline", Value: deadline, Short: true},
		{Name: "Priority", Value: t.Priority, Short: true},
		{Name: "Created", Value: t.CreatedAt.In(loc).Format("2006-01-02 15:04"), Short: true},
	}
	return msg
}
