package models

import "time"

// Alert types.
const (
	AlertUnreplied = "unreplied"
	AlertSensitive = "sensitive"
)

// Alert statuses.
const (
	AlertOpen     = "open"
	AlertResolved = "resolved"
)

// Alert severities, most severe first.
const (
	SeverityUrgent  = 1
	SeverityWarning = 2
	SeverityInfo    = 3
)

// Alert is raised by the unreplied watcher or the policy scanner.
// A message carries at most one alert of each type.
type Alert struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	GroupID    string `gorm:"size:128;not null;index"`
	MessageID  string `gorm:"size:128;not null;uniqueIndex:idx_alert_message_type"`
	Type       string `gorm:"size:16;not null;uniqueIndex:idx_alert_message_type"`
	Severity   int    `gorm:"default:2"`
	Status     string `gorm:"size:16;default:open;index"`
	Detail     string `gorm:"type:text"`
	CreatedAt  time.Time
	ResolvedAt *time.Time
}
