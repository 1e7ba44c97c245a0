package models

import "time"

// Task statuses. in_progress may move to overdue; both may move to done.
const (
	TaskInProgress = "in_progress"
	TaskOverdue    = "overdue"
	TaskDone       = "done"
)

// Task priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Task is a unit of work created from a chat command.
type Task struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	GroupID         string `gorm:"size:128;not null;index"`
	CreatorID       string `gorm:"size:128"`
	CreatorName     string `gorm:"size:128"`
	Assignee        string `gorm:"size:128"` // empty when unassigned
	Content         string `gorm:"type:text;not null"`
	Deadline        string `gorm:"size:64"` // free-form, kept verbatim
	Priority        string `gorm:"size:8;default:medium"`
	Status          string `gorm:"size:16;default:in_progress;index"`
	ReminderGen     int    `gorm:"not null;default:0"`
	SourceMessageID string `gorm:"size:128"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}
