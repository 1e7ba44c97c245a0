package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/task"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Allowed list orderings. Anything else falls back to OrderCreatedDesc.
const (
	OrderCreatedAsc   = "created_asc"
	OrderCreatedDesc  = "created_desc"
	OrderDeadlineAsc  = "deadline_asc"
	OrderDeadlineDesc = "deadline_desc"
)

var taskOrders = map[string]string{
	OrderCreatedAsc:   "created_at ASC, id ASC",
	OrderCreatedDesc:  "created_at DESC, id DESC",
	OrderDeadlineAsc:  "deadline ASC, id ASC",
	OrderDeadlineDesc: "deadline DESC, id DESC",
}

// OrderClause maps a requested ordering onto the allow-list.
func OrderClause(order string) string {
	if o, ok := taskOrders[order]; ok {
		return o
	}
	return taskOrders[OrderCreatedDesc]
}

// TaskFilter holds optional filters for listing tasks.
type TaskFilter struct {
	GroupID  string
	Statuses []string
	Assignee string // substring match
	OrderBy  string
	Limit    int
}

// TaskUpdate carries the fields an update names; nil means unchanged.
type TaskUpdate struct {
	Content  *string
	Deadline *string
	Assignee *string
	Priority *string
	Status   *string
}

// Empty reports whether the update names no fields.
func (u TaskUpdate) Empty() bool {
	return u.Content == nil && u.Deadline == nil && u.Assignee == nil && u.Priority == nil && u.Status == nil
}

// CreateTask inserts a new task.
func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	if t.GroupID == "" {
		return fmt.Errorf("store: create task: group is required")
	}
	if t.Content == "" {
		return fmt.Errorf("store: create task: content is required")
	}
	if t.Status == "" {
		t.Status = models.TaskInProgress
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("store: create task: %w", err)
	}
	return nil
}

// GetTask loads a task by id.
func (s *Store) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	return getTask(s.db.WithContext(ctx), "", id)
}

// GetGroupTask loads a task by id, scoped to a group.
func (s *Store) GetGroupTask(ctx context.Context, groupID string, id uint) (*models.Task, error) {
	return getTask(s.db.WithContext(ctx), groupID, id)
}

func getTask(db *gorm.DB, groupID string, id uint) (*models.Task, error) {
	q := db.Where("id = ?", id)
	if groupID != "" {
		q = q.Where("group_id = ?", groupID)
	}
	var t models.Task
	if err := q.First(&t).Error; err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: task %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: get task %d: %w", id, err)
	}
	return &t, nil
}

// LatestOpenTask returns the most recently created open task in a group.
func (s *Store) LatestOpenTask(ctx context.Context, groupID string) (*models.Task, error) {
	var t models.Task
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND status IN ?", groupID, task.OpenStatuses).
		Order("created_at DESC, id DESC").
		First(&t).Error
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: open task in %s", ErrNotFound, groupID)
		}
		return nil, fmt.Errorf("store: latest open task %s: %w", groupID, err)
	}
	return &t, nil
}

// ListTasks returns tasks matching filter.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	q := s.db.WithContext(ctx).Model(&models.Task{})
	if filter.GroupID != "" {
		q = q.Where("group_id = ?", filter.GroupID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Assignee != "" {
		q = q.Where("assignee LIKE ? ESCAPE '!'", "%"+escapeLike(filter.Assignee)+"%")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var tasks []models.Task
	if err := q.Order(OrderClause(filter.OrderBy)).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	return tasks, nil
}

// OpenTasks returns every in_progress or overdue task, oldest first.
func (s *Store) OpenTasks(ctx context.Context) ([]models.Task, error) {
	return s.ListTasks(ctx, TaskFilter{Statuses: task.OpenStatuses, OrderBy: OrderCreatedAsc})
}

// CompleteTask marks one open task in a group done. A task already done
// yields task.ErrInvalidTransition.
func (s *Store) CompleteTask(ctx context.Context, groupID string, id uint, at time.Time) (*models.Task, error) {
	var out *models.Task
	at = at.UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := getTask(tx.Clauses(clause.Locking{Strength: "UPDATE"}), groupID, id)
		if err != nil {
			return err
		}
		if !task.IsOpen(t.Status) {
			return fmt.Errorf("%w: task %d is already %s", task.ErrInvalidTransition, id, t.Status)
		}
		if err := tx.Model(&models.Task{}).
			Where("id = ? AND status IN ?", id, task.OpenStatuses).
			Updates(map[string]interface{}{"status": models.TaskDone, "completed_at": at}).Error; err != nil {
			return fmt.Errorf("store: complete task %d: %w", id, err)
		}
		t.Status = models.TaskDone
		t.CompletedAt = &at
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteOpenTasks marks every open task in a group done and returns the
// tasks it closed.
func (s *Store) CompleteOpenTasks(ctx context.Context, groupID string, at time.Time) ([]models.Task, error) {
	var closed []models.Task
	at = at.UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_id = ? AND status IN ?", groupID, task.OpenStatuses).
			Order("id ASC").
			Find(&closed).Error; err != nil {
			return err
		}
		if len(closed) == 0 {
			return nil
		}
		ids := make([]uint, len(closed))
		for i := range closed {
			ids[i] = closed[i].ID
			closed[i].Status = models.TaskDone
			closed[i].CompletedAt = &at
		}
		return tx.Model(&models.Task{}).
			Where("id IN ? AND status IN ?", ids, task.OpenStatuses).
			Updates(map[string]interface{}{"status": models.TaskDone, "completed_at": at}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("store: complete open tasks %s: %w", groupID, err)
	}
	return closed, nil
}

// UpdateTask applies the fields named by u to a task in a group and
// returns the updated task with the list of fields applied. A deadline
// change starts a new reminder generation. A move to done is stamped at.
func (s *Store) UpdateTask(ctx context.Context, groupID string, id uint, u TaskUpdate, at time.Time) (*models.Task, []string, error) {
	at = at.UTC()
	var (
		out     *models.Task
		changed []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := getTask(tx.Clauses(clause.Locking{Strength: "UPDATE"}), groupID, id)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if u.Content != nil {
			updates["content"] = *u.Content
			t.Content = *u.Content
			changed = append(changed, "content")
		}
		if u.Deadline != nil {
			updates["deadline"] = *u.Deadline
			if *u.Deadline != t.Deadline {
				updates["reminder_gen"] = gorm.Expr("reminder_gen + 1")
				t.ReminderGen++
			}
			t.Deadline = *u.Deadline
			changed = append(changed, "deadline")
		}
		if u.Assignee != nil {
			updates["assignee"] = *u.Assignee
			t.Assignee = *u.Assignee
			changed = append(changed, "assignee")
		}
		if u.Priority != nil {
			updates["priority"] = *u.Priority
			t.Priority = *u.Priority
			changed = append(changed, "priority")
		}
		if u.Status != nil {
			if err := task.CheckTransition(t.Status, *u.Status); err != nil {
				return err
			}
			updates["status"] = *u.Status
			if *u.Status == models.TaskDone && t.Status != models.TaskDone {
				updates["completed_at"] = at
				t.CompletedAt = &at
			}
			t.Status = *u.Status
			changed = append(changed, "status")
		}
		if len(updates) == 0 {
			out = t
			return nil
		}
		if err := tx.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("store: update task %d: %w", id, err)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, changed, nil
}

// MarkOverdue moves an in_progress task to overdue. It reports whether
// the row changed.
func (s *Store) MarkOverdue(ctx context.Context, id uint) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status = ?", id, models.TaskInProgress).
		Update("status", models.TaskOverdue)
	if result.Error != nil {
		return false, fmt.Errorf("store: mark overdue %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
