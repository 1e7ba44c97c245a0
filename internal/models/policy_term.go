package models

import "time"

// PolicyTerm is one entry in the content screening list.
type PolicyTerm struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Term      string `gorm:"size:128;not null;uniqueIndex"`
	Severity  int    `gorm:"default:2"`
	CreatedAt time.Time
}
