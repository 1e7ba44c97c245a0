package store

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm/clause"
)

// AlertFilter holds optional filters for listing alerts.
type AlertFilter struct {
	Status  string
	GroupID string
	Type    string
	Limit   int
}

// CreateAlert inserts a, unless the message already has an alert of the
// same type. created is false in that case.
func (s *Store) CreateAlert(ctx context.Context, a *models.Alert) (created bool, err error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(a)
	if result.Error != nil {
		return false, fmt.Errorf("store: create %s alert for %s: %w", a.Type, a.MessageID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListAlerts returns alerts matching filter, newest first.
func (s *Store) ListAlerts(ctx context.Context, filter AlertFilter) ([]models.Alert, error) {
	q := s.db.WithContext(ctx).Model(&models.Alert{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.GroupID != "" {
		q = q.Where("group_id = ?", filter.GroupID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var alerts []models.Alert
	if err := q.Order("created_at DESC, id DESC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("store: list alerts: %w", err)
	}
	return alerts, nil
}

// ResolveAlert resolves one alert manually. Resolving an already resolved
// alert is a no-op.
func (s *Store) ResolveAlert(ctx context.Context, id uint, at time.Time) (*models.Alert, error) {
	var a models.Alert
	db := s.db.WithContext(ctx)
	if err := db.Where("id = ?", id).First(&a).Error; err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: alert %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: get alert %d: %w", id, err)
	}
	if a.Status == models.AlertResolved {
		return &a, nil
	}
	at = at.UTC()
	err := db.Model(&models.Alert{}).
		Where("id = ? AND status = ?", id, models.AlertOpen).
		Updates(map[string]interface{}{"status": models.AlertResolved, "resolved_at": at}).Error
	if err != nil {
		return nil, fmt.Errorf("store: resolve alert %d: %w", id, err)
	}
	a.Status = models.AlertResolved
	a.ResolvedAt = &at
	return &a, nil
}
