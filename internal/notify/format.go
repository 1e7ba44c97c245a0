package notify

import (
	"fmt"
	"unicode/utf8"

	"github.com/zulandar/signalbox/internal/models"
)

// alertSeverity maps an alert severity (1 urgent .. 3 info) to a message severity.
func alertSeverity(sev int) string {
	switch sev {
	case models.SeverityUrgent:
		return SeverityError
	case models.SeverityWarning:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// SeverityLabel names an alert severity.
func SeverityLabel(sev int) string {
	switch sev {
	case models.SeverityUrgent:
		return "urgent"
	case models.SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// FormatAlert renders an operator notification for an alert raised on msg
// in group.
func FormatAlert(a *models.Alert, group *models.Group, msg *models.Message) Message {
	var title string
	switch a.Type {
	case models.AlertSensitive:
		title = "Policy alert"
	default:
		title = "Unreplied message"
	}
	groupName := a.GroupID
	if group != nil && group.Name != "" {
		groupName = group.Name
	}
	out := Message{
		Title:    fmt.Sprintf("%s in %s", title, groupName),
		Severity: alertSeverity(a.Severity),
		Fields: []Field{
			{Name: "Severity", Value: SeverityLabel(a.Severity), Short: true},
		},
	}
	if msg != nil {
		out.Text = Truncate(msg.Content, 200)
		sender := msg.SenderName
		if sender == "" {
			sender = msg.SenderID
		}
		out.Fields = append(out.Fields,
			Field{Name: "Sender", Value: sender, Short: true},
			Field{Name: "Sent", Value: msg.SentAt.Format("2006-01-02 15:04"), Short: true},
		)
	}
	if a.Detail != "" {
		out.Fields = append(out.Fields, Field{Name: "Detail", Value: a.Detail})
	}
	return out
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
