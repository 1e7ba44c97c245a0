// Package intake turns inbound conversation events into stored messages
// and drives the per-event control flow: reply reconciliation for
// operator messages, policy scanning for customer messages, and command
// routing for bot mentions.
package intake

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/signalbox/internal/models"
)

// ErrInvalidEvent is returned for events missing a group or content.
var ErrInvalidEvent = errors.New("intake: invalid event")

// Event is one inbound record from the transport boundary, already
// decrypted and parsed. ResponseURL marks an interactive command.
type Event struct {
	MessageID   string    `json:"message_id"`
	GroupID     string    `json:"group_id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	Content     string    `json:"content"`
	MsgType     string    `json:"msg_type"`
	SentAt      time.Time `json:"sent_at"`
	ResponseURL string    `json:"response_url,omitempty"`
}

// IsCommand reports whether the event carries a callback address.
func (e Event) IsCommand() bool {
	return e.ResponseURL != ""
}

// Normalize fills a missing id with a fresh uuid and a missing timestamp
// with now, and stores the timestamp in UTC.
func Normalize(e Event, now time.Time) Event {
	e.MessageID = strings.TrimSpace(e.MessageID)
	if e.MessageID == "" {
		e.MessageID = uuid.NewString()
	}
	if e.SentAt.IsZero() {
		e.SentAt = now
	}
	e.SentAt = e.SentAt.UTC()
	if e.MsgType == "" {
		e.MsgType = "text"
	}
	return e
}

// Validate checks the fields every event must carry.
func (e Event) Validate() error {
	var missing []string
	if strings.TrimSpace(e.GroupID) == "" {
		missing = append(missing, "group_id")
	}
	if strings.TrimSpace(e.Content) == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// ValidationError lists the required event fields that were absent.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "intake: invalid event: missing " + strings.Join(e.Missing, ", ")
}

// Unwrap lets errors.Is match ErrInvalidEvent.
func (e *ValidationError) Unwrap() error { return ErrInvalidEvent }

// PlaceholderName is the name given to a group first seen in an event.
func PlaceholderName(groupID string) string {
	suffix := groupID
	if r := []rune(groupID); len(r) > 6 {
		suffix = string(r[len(r)-6:])
	}
	return "group-" + suffix
}

func (e Event) message(internal bool) *models.Message {
	m := &models.Message{
		ID:          e.MessageID,
		GroupID:     e.GroupID,
		SenderID:    e.SenderID,
		SenderName:  e.SenderName,
		Content:     e.Content,
		MsgType:     e.MsgType,
		SentAt:      e.SentAt,
		ReplyStatus: models.ReplyUnreplied,
	}
	if internal {
		at := e.SentAt
		m.ReplyStatus = models.ReplyReplied
		m.ReplyTime = &at
	}
	return m
}
