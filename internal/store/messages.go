package store

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertMessage stores m unless a message with the same id already
// exists. inserted is false for a replayed id.
func (s *Store) InsertMessage(ctx context.Context, m *models.Message) (inserted bool, err error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if result.Error != nil {
		return false, fmt.Errorf("store: insert message %s: %w", m.ID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// GetMessage loads one message.
func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: message %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: get message %s: %w", id, err)
	}
	return &m, nil
}

// RecentMessages returns up to limit of the newest messages in a group,
// oldest first.
func (s *Store) RecentMessages(ctx context.Context, groupID string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("sent_at DESC, created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("store: recent messages %s: %w", groupID, err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkReplied moves one message to replied. A message already replied is
// left untouched.
func (s *Store) MarkReplied(ctx context.Context, id string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND reply_status = ?", id, models.ReplyUnreplied).
		Updates(map[string]interface{}{"reply_status": models.ReplyReplied, "reply_time": at.UTC()}).Error
	if err != nil {
		return fmt.Errorf("store: mark replied %s: %w", id, err)
	}
	return nil
}

// ReconcileResult counts the rows closed by Reconcile.
type ReconcileResult struct {
	Messages int64
	Alerts   int64
}

// Reconcile closes all reply debt in a group: every unreplied message sent
// strictly before at becomes replied with reply_time = at, and every open
// unreplied alert is resolved. Both updates run in one transaction.
func (s *Store) Reconcile(ctx context.Context, groupID string, at time.Time) (ReconcileResult, error) {
	var res ReconcileResult
	at = at.UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msgs := tx.Model(&models.Message{}).
			Where("group_id = ? AND reply_status = ? AND sent_at < ?", groupID, models.ReplyUnreplied, at).
			Updates(map[string]interface{}{"reply_status": models.ReplyReplied, "reply_time": at})
		if msgs.Error != nil {
			return msgs.Error
		}
		res.Messages = msgs.RowsAffected

		alerts := tx.Model(&models.Alert{}).
			Where("group_id = ? AND type = ? AND status = ?", groupID, models.AlertUnreplied, models.AlertOpen).
			Updates(map[string]interface{}{"status": models.AlertResolved, "resolved_at": at})
		if alerts.Error != nil {
			return alerts.Error
		}
		res.Alerts = alerts.RowsAffected
		return nil
	})
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("store: reconcile group %s: %w", groupID, err)
	}
	return res, nil
}

// StaleUnreplied returns unreplied messages in a group sent before cutoff
// that do not yet carry an unreplied alert.
func (s *Store) StaleUnreplied(ctx context.Context, groupID string, cutoff time.Time) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND reply_status = ? AND sent_at < ?", groupID, models.ReplyUnreplied, cutoff.UTC()).
		Where("NOT EXISTS (SELECT 1 FROM alerts WHERE alerts.message_id = messages.id AND alerts.type = ?)", models.AlertUnreplied).
		Order("sent_at ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("store: stale unreplied %s: %w", groupID, err)
	}
	return msgs, nil
}

// GroupMessage is a message with its group's display name.
type GroupMessage struct {
	models.Message `gorm:"embedded"`
	GroupName      string
}

func (s *Store) groupMessages(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Message{}).
		Select("messages.*, `groups`.name AS group_name").
		Joins("JOIN `groups` ON `groups`.id = messages.group_id")
}

// OverdueReplies returns up to limit unreplied messages across all groups
// sent before cutoff, oldest first.
func (s *Store) OverdueReplies(ctx context.Context, cutoff time.Time, limit int) ([]GroupMessage, error) {
	var rows []GroupMessage
	err := s.groupMessages(ctx).
		Where("messages.reply_status = ? AND messages.sent_at < ?", models.ReplyUnreplied, cutoff.UTC()).
		Order("messages.sent_at ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: overdue replies: %w", err)
	}
	return rows, nil
}

// ListMessages returns one page of messages across all groups, newest
// first. page starts at 1.
func (s *Store) ListMessages(ctx context.Context, page, limit int) ([]GroupMessage, error) {
	if page < 1 {
		page = 1
	}
	var rows []GroupMessage
	err := s.groupMessages(ctx).
		Order("messages.sent_at DESC, messages.id DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	return rows, nil
}
