package models

import "time"

// Reminder types.
const (
	ReminderAuto   = "auto"
	ReminderManual = "manual"
)

// Reminder statuses.
const (
	ReminderPending = "pending"
	ReminderSent    = "sent"
)

// Escalation reasons recorded on reminders.
const (
	ReasonDeadline   = "deadline"
	ReasonTimeout24h = "timeout_24h"
	ReasonManual     = "manual"
)

// Reminder is the dispatch ledger. LedgerKey is unique: automatic
// reminders use one key per task generation, so a pending row is a claim
// and a sent row suppresses further automatic escalation.
type Reminder struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	LedgerKey  string    `gorm:"size:191;not null;uniqueIndex"`
	TaskID     uint      `gorm:"not null;index"`
	GroupID    string    `gorm:"size:128;not null"`
	TargetUser string    `gorm:"size:128"`
	Content    string    `gorm:"type:text"`
	Type       string    `gorm:"size:8;not null"`
	Reason     string    `gorm:"size:16"`
	Generation int       `gorm:"not null;default:0"`
	Status     string    `gorm:"size:8;default:pending;index"`
	Attempts   int       `gorm:"not null;default:0"`
	LastError  string    `gorm:"type:text"`
	ClaimedAt  time.Time `gorm:"index"`
	SentAt     *time.Time
	CreatedAt  time.Time
}
