package models

import "time"

// Group is a monitored group conversation. Groups are soft-deleted by
// clearing Active; messages and tasks keep referencing them.
type Group struct {
	ID                string `gorm:"primaryKey;size:128"`
	Name              string `gorm:"size:128;not null"`
	Active            bool   `gorm:"not null;index"`
	Priority          int    `gorm:"default:2"` // 1=high, 2=normal, 3=low
	ResponseThreshold int    // minutes; 0 falls back to the global timeout
	CallbackURL       string `gorm:"type:text"`
	AutoRemind        bool   `gorm:"not null"`
	MemberCount       int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
