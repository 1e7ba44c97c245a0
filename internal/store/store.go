// Package store is the conversation store: every query and write against
// groups, messages, alerts, tasks, reminders, policy terms and settings.
// Multi-row state changes are single predicate-scoped statements.
package store

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a create collides with an existing key.
	ErrDuplicate = errors.New("store: duplicate")
)

// Store wraps a GORM connection.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for migrations and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func duplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
