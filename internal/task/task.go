// Package task holds the task lifecycle rules: status transitions,
// priority and status normalization, deadline parsing and the escalation
// decision table used by the lifecycle sweeper.
package task

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/signalbox/internal/models"
)

// ErrInvalidTransition is returned when a status change would move a task
// backwards or out of the terminal done state.
var ErrInvalidTransition = errors.New("task: invalid status transition")

// ValidTransitions maps each status to its valid next statuses.
var ValidTransitions = map[string][]string{
	models.TaskInProgress: {models.TaskOverdue, models.TaskDone},
	models.TaskOverdue:    {models.TaskDone},
}

// OpenStatuses are the statuses of tasks that still need attention.
var OpenStatuses = []string{models.TaskInProgress, models.TaskOverdue}

// CanTransition reports whether from → to is allowed. Keeping the same
// status is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition, annotated with the valid
// targets, when from → to is not allowed.
func CheckTransition(from, to string) error {
	if CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%w from %q to %q; valid transitions: %v", ErrInvalidTransition, from, to, ValidTransitions[from])
}

// IsOpen reports whether status is in_progress or overdue.
func IsOpen(status string) bool {
	return status == models.TaskInProgress || status == models.TaskOverdue
}

var statusAliases = map[string]string{
	"in_progress": models.TaskInProgress,
	"in-progress": models.TaskInProgress,
	"inprogress":  models.TaskInProgress,
	"doing":       models.TaskInProgress,
	"open":        models.TaskInProgress,
	"pending":     models.TaskInProgress,
	"进行中":         models.TaskInProgress,
	"overdue":     models.TaskOverdue,
	"late":        models.TaskOverdue,
	"逾期":          models.TaskOverdue,
	"已逾期":         models.TaskOverdue,
	"done":        models.TaskDone,
	"complete":    models.TaskDone,
	"completed":   models.TaskDone,
	"finished":    models.TaskDone,
	"完成":          models.TaskDone,
	"已完成":         models.TaskDone,
}

// NormalizeStatus maps a classifier-supplied status word to a task status.
func NormalizeStatus(s string) (string, bool) {
	st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// NormalizePriority maps a classifier-supplied priority word to high,
// medium or low. Anything unrecognized is medium.
func NormalizePriority(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "urgent", "critical", "p0", "p1", "高", "紧急":
		return models.PriorityHigh
	case "low", "minor", "p3", "低":
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}
