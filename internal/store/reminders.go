package store

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutoLedgerKey is the ledger key of the automatic reminder for one task
// generation.
func AutoLedgerKey(taskID uint, gen int) string {
	return fmt.Sprintf("auto:%d:%d", taskID, gen)
}

// HasSentAutoReminder reports whether the automatic reminder for the
// task's generation was delivered. Manual pushes are not counted.
func (s *Store) HasSentAutoReminder(ctx context.Context, taskID uint, gen int) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("task_id = ? AND generation = ? AND type = ? AND status = ?", taskID, gen, models.ReminderAuto, models.ReminderSent).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("store: sent reminders for task %d: %w", taskID, err)
	}
	return n > 0, nil
}

// ClaimReminder takes the ledger slot r.LedgerKey for a dispatch attempt.
// It inserts r as pending, or takes over an existing pending row whose
// claim is older than lease. claimed is false when the slot is already
// sent or freshly claimed by someone else. On success r.ID identifies the
// claimed row.
func (s *Store) ClaimReminder(ctx context.Context, r *models.Reminder, lease time.Duration) (claimed bool, err error) {
	now := time.Now().UTC()
	r.Status = models.ReminderPending
	r.ClaimedAt = now

	db := s.db.WithContext(ctx)
	ins := db.Clauses(clause.OnConflict{DoNothing: true}).Create(r)
	if ins.Error != nil {
		return false, fmt.Errorf("store: claim reminder %s: %w", r.LedgerKey, ins.Error)
	}
	if ins.RowsAffected == 1 {
		return true, nil
	}

	upd := db.Model(&models.Reminder{}).
		Where("ledger_key = ? AND status = ? AND claimed_at < ?", r.LedgerKey, models.ReminderPending, now.Add(-lease)).
		Updates(map[string]interface{}{"claimed_at": now, "content": r.Content, "reason": r.Reason})
	if upd.Error != nil {
		return false, fmt.Errorf("store: reclaim reminder %s: %w", r.LedgerKey, upd.Error)
	}
	if upd.RowsAffected == 0 {
		return false, nil
	}
	var existing models.Reminder
	if err := db.Where("ledger_key = ?", r.LedgerKey).First(&existing).Error; err != nil {
		return false, fmt.Errorf("store: load reminder %s: %w", r.LedgerKey, err)
	}
	*r = existing
	return true, nil
}

// MarkReminderSent records a successful delivery for a claimed row.
func (s *Store) MarkReminderSent(ctx context.Context, id uint, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   models.ReminderSent,
			"sent_at":  at.UTC(),
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("store: mark reminder %d sent: %w", id, err)
	}
	return nil
}

// ReleaseReminder gives a claimed row back after a failed delivery so the
// next sweep can claim it again.
func (s *Store) ReleaseReminder(ctx context.Context, id uint, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	err := s.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("id = ? AND status = ?", id, models.ReminderPending).
		Updates(map[string]interface{}{
			"claimed_at": time.Time{},
			"last_error": msg,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("store: release reminder %d: %w", id, err)
	}
	return nil
}

// ListReminders returns the ledger rows for a task, oldest first.
func (s *Store) ListReminders(ctx context.Context, taskID uint) ([]models.Reminder, error) {
	var rs []models.Reminder
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("id ASC").Find(&rs).Error; err != nil {
		return nil, fmt.Errorf("store: list reminders %d: %w", taskID, err)
	}
	return rs, nil
}
