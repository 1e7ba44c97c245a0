package store

import (
	"context"
	"fmt"

	"github.com/zulandar/signalbox/internal/models"
)

// ListPolicyTerms returns the full screening list ordered by severity.
func (s *Store) ListPolicyTerms(ctx context.Context) ([]models.PolicyTerm, error) {
	var terms []models.PolicyTerm
	if err := s.db.WithContext(ctx).Order("severity ASC, term ASC").Find(&terms).Error; err != nil {
		return nil, fmt.Errorf("store: list policy terms: %w", err)
	}
	return terms, nil
}

// CreatePolicyTerm adds a term. It returns ErrDuplicate if the term exists.
func (s *Store) CreatePolicyTerm(ctx context.Context, pt *models.PolicyTerm) error {
	if err := s.db.WithContext(ctx).Create(pt).Error; err != nil {
		if duplicate(err) {
			return fmt.Errorf("%w: policy term %q", ErrDuplicate, pt.Term)
		}
		return fmt.Errorf("store: create policy term %q: %w", pt.Term, err)
	}
	return nil
}

// DeletePolicyTerm removes a term by id.
func (s *Store) DeletePolicyTerm(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PolicyTerm{})
	if result.Error != nil {
		return fmt.Errorf("store: delete policy term %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: policy term %d", ErrNotFound, id)
	}
	return nil
}
