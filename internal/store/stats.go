package store

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/task"
)

// Group health statuses reported by GroupStats.
const (
	HealthNormal   = "normal"
	HealthWarning  = "warning"
	HealthAbnormal = "abnormal"
)

// Overview summarizes monitoring state since a cutoff.
type Overview struct {
	ActiveGroups     int64   `json:"active_groups"`
	MessagesToday    int64   `json:"messages_today"`
	Unreplied        int64   `json:"unreplied"`
	AvgResponseMin   float64 `json:"avg_response_minutes"`
	OpenAlerts       int64   `json:"open_alerts"`
	OutstandingTasks int64   `json:"outstanding_tasks"`
}

// GroupStat is the per-group row of the monitoring dashboard.
type GroupStat struct {
	GroupID        string  `json:"group_id"`
	Name           string  `json:"name"`
	MessagesToday  int64   `json:"messages_today"`
	Unreplied      int64   `json:"unreplied"`
	AvgResponseMin float64 `json:"avg_response_minutes"`
	Status         string  `json:"status"`
}

// Health classifies a group from its unreplied count and average response.
func Health(unreplied int64, avgMin float64) string {
	switch {
	case unreplied > 2 || avgMin > 20:
		return HealthAbnormal
	case unreplied > 0 || avgMin > 10:
		return HealthWarning
	default:
		return HealthNormal
	}
}

// Overview computes the monitoring summary for messages sent since since.
func (s *Store) Overview(ctx context.Context, since time.Time) (*Overview, error) {
	db := s.db.WithContext(ctx)
	var ov Overview
	if err := db.Model(&models.Group{}).Where("active = ?", true).Count(&ov.ActiveGroups).Error; err != nil {
		return nil, fmt.Errorf("store: overview groups: %w", err)
	}
	if err := db.Model(&models.Message{}).Where("sent_at >= ?", since.UTC()).Count(&ov.MessagesToday).Error; err != nil {
		return nil, fmt.Errorf("store: overview messages: %w", err)
	}
	if err := db.Model(&models.Message{}).Where("reply_status = ?", models.ReplyUnreplied).Count(&ov.Unreplied).Error; err != nil {
		return nil, fmt.Errorf("store: overview unreplied: %w", err)
	}
	if err := db.Model(&models.Alert{}).Where("status = ?", models.AlertOpen).Count(&ov.OpenAlerts).Error; err != nil {
		return nil, fmt.Errorf("store: overview alerts: %w", err)
	}
	if err := db.Model(&models.Task{}).Where("status IN ?", task.OpenStatuses).Count(&ov.OutstandingTasks).Error; err != nil {
		return nil, fmt.Errorf("store: overview tasks: %w", err)
	}
	avg, err := s.avgResponse(ctx, "", since)
	if err != nil {
		return nil, err
	}
	ov.AvgResponseMin = avg
	return &ov, nil
}

// GroupStats computes per-group monitoring rows for active groups.
func (s *Store) GroupStats(ctx context.Context, since time.Time) ([]GroupStat, error) {
	groups, err := s.ListGroups(ctx, true)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	stats := make([]GroupStat, 0, len(groups))
	for _, g := range groups {
		st := GroupStat{GroupID: g.ID, Name: g.Name}
		if err := db.Model(&models.Message{}).Where("group_id = ? AND sent_at >= ?", g.ID, since.UTC()).Count(&st.MessagesToday).Error; err != nil {
			return nil, fmt.Errorf("store: group stats %s: %w", g.ID, err)
		}
		if err := db.Model(&models.Message{}).Where("group_id = ? AND reply_status = ?", g.ID, models.ReplyUnreplied).Count(&st.Unreplied).Error; err != nil {
			return nil, fmt.Errorf("store: group stats %s: %w", g.ID, err)
		}
		if st.AvgResponseMin, err = s.avgResponse(ctx, g.ID, since); err != nil {
			return nil, err
		}
		st.Status = Health(st.Unreplied, st.AvgResponseMin)
		stats = append(stats, st)
	}
	return stats, nil
}

// avgResponse averages reply latency in minutes over replied messages
// sent since since. Latency is computed here rather than in SQL because
// date arithmetic differs between SQLite and MySQL.
func (s *Store) avgResponse(ctx context.Context, groupID string, since time.Time) (float64, error) {
	q := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("sent_at", "reply_time").
		Where("reply_status = ? AND reply_time IS NOT NULL AND sent_at >= ?", models.ReplyReplied, since.UTC())
	if groupID != "" {
		q = q.Where("group_id = ?", groupID)
	}
	var rows []models.Message
	if err := q.Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("store: average response: %w", err)
	}
	var total time.Duration
	var n int
	for _, m := range rows {
		if m.ReplyTime == nil || m.ReplyTime.Before(m.SentAt) {
			continue
		}
		total += m.ReplyTime.Sub(m.SentAt)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return total.Minutes() / float64(n), nil
}
