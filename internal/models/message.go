package models

import "time"

// Reply status values for Message.ReplyStatus.
const (
	ReplyUnreplied = "unreplied"
	ReplyReplied   = "replied"
)

// Message is one chat event stored on intake. ReplyStatus moves from
// unreplied to replied at most once.
type Message struct {
	ID          string     `gorm:"primaryKey;size:128"`
	GroupID     string     `gorm:"size:128;not null;index"`
	SenderID    string     `gorm:"size:128;not null"`
	SenderName  string     `gorm:"size:128"`
	Content     string     `gorm:"type:text"`
	MsgType     string     `gorm:"size:32;default:text"`
	SentAt      time.Time  `gorm:"not null;index"`
	ReplyStatus string     `gorm:"size:16;default:unreplied;index"`
	ReplyTime   *time.Time
	CreatedAt   time.Time
}
