package store

import (
	"context"
	"fmt"

	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm/clause"
)

// EnsureGroup returns the group with g.ID, inserting g first if no such
// group exists. created reports whether the insert happened.
func (s *Store) EnsureGroup(ctx context.Context, g *models.Group) (group *models.Group, created bool, err error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(g)
	if result.Error != nil {
		return nil, false, fmt.Errorf("store: ensure group %s: %w", g.ID, result.Error)
	}
	if result.RowsAffected == 1 {
		return g, true, nil
	}
	existing, err := s.GetGroup(ctx, g.ID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetGroup loads one group.
func (s *Store) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	var g models.Group
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: group %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: get group %s: %w", id, err)
	}
	return &g, nil
}

// ListGroups returns groups ordered by priority then name.
func (s *Store) ListGroups(ctx context.Context, activeOnly bool) ([]models.Group, error) {
	q := s.db.WithContext(ctx).Model(&models.Group{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var groups []models.Group
	if err := q.Order("priority ASC, name ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("store: list groups: %w", err)
	}
	return groups, nil
}

// ListDigestGroups returns active groups with auto_remind on and a
// callback endpoint configured.
func (s *Store) ListDigestGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.WithContext(ctx).
		Where("active = ? AND auto_remind = ? AND callback_url <> ''", true, true).
		Order("id ASC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("store: list digest groups: %w", err)
	}
	return groups, nil
}

// CreateGroup inserts a new group. It returns ErrDuplicate if the id is taken.
func (s *Store) CreateGroup(ctx context.Context, g *models.Group) error {
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		if duplicate(err) {
			return fmt.Errorf("%w: group %s", ErrDuplicate, g.ID)
		}
		return fmt.Errorf("store: create group %s: %w", g.ID, err)
	}
	return nil
}

// UpdateGroup applies column updates to a group.
func (s *Store) UpdateGroup(ctx context.Context, id string, updates map[string]interface{}) (*models.Group, error) {
	result := s.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("store: update group %s: %w", id, result.Error)
	}
	return s.GetGroup(ctx, id)
}

// DeactivateGroup soft-deletes a group by clearing its active flag.
func (s *Store) DeactivateGroup(ctx context.Context, id string) error {
	if _, err := s.GetGroup(ctx, id); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).Update("active", false).Error; err != nil {
		return fmt.Errorf("store: deactivate group %s: %w", id, err)
	}
	return nil
}
