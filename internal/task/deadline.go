package task

import (
	"strings"
	"time"

	"github.com/zulandar/signalbox/internal/models"
)

// dateOnlyLayouts are interpreted as the end of that day.
var dateOnlyLayouts = []string{"2006-01-02", "2006/01/02"}

var dateTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02T15:04",
}

// ParseDeadline parses the free-form deadline text stored on a task.
// Text without a zone is read in loc. It returns false for empty or
// unrecognized text, which the sweeper treats as no deadline.
func ParseDeadline(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	for _, layout := range dateOnlyLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Add(24*time.Hour - time.Second), true
		}
	}
	return time.Time{}, false
}

// Decide applies the escalation decision table to an open task:
//
//	parseable deadline, now >= deadline       -> deadline
//	no parseable deadline, age >= fallbackAge -> timeout_24h
//
// A task with a parseable deadline still ahead is never escalated by age.
func Decide(t *models.Task, now time.Time, fallbackAge time.Duration, loc *time.Location) (reason string, escalate bool) {
	if !IsOpen(t.Status) {
		return "", false
	}
	if deadline, ok := ParseDeadline(t.Deadline, loc); ok {
		if !now.Before(deadline) {
			return models.ReasonDeadline, true
		}
		return "", false
	}
	if now.Sub(t.CreatedAt) >= fallbackAge {
		return models.ReasonTimeout24h, true
	}
	return "", false
}
