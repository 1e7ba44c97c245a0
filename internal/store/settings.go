package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm/clause"
)

// Settings returns every setting as raw JSON values keyed by name.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	var rows []models.Setting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (s *Store) setting(ctx context.Context, key string) (string, bool, error) {
	var rows []models.Setting
	if err := s.db.WithContext(ctx).Where(&models.Setting{Key: key}).Limit(1).Find(&rows).Error; err != nil {
		return "", false, fmt.Errorf("store: get setting %s: %w", key, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Value, true, nil
}

// SettingBool returns a boolean setting, or def when it is unset or unreadable.
func (s *Store) SettingBool(ctx context.Context, key string, def bool) (bool, error) {
	v, ok, err := s.setting(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	b, perr := strconv.ParseBool(v)
	if perr != nil {
		return def, nil
	}
	return b, nil
}

// SettingInt returns an integer setting, or def when it is unset or unreadable.
func (s *Store) SettingInt(ctx context.Context, key string, def int) (int, error) {
	v, ok, err := s.setting(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	n, perr := strconv.Atoi(v)
	if perr != nil {
		return def, nil
	}
	return n, nil
}

// SettingStrings returns a string-list setting, or def when it is unset or unreadable.
func (s *Store) SettingStrings(ctx context.Context, key string, def []string) ([]string, error) {
	v, ok, err := s.setting(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	var list []string
	if json.Unmarshal([]byte(v), &list) != nil {
		return def, nil
	}
	return list, nil
}

// AlertsEnabled reports whether operator alerts go out on channel: alerting
// must be on and the channel listed in notification_channels.
func (s *Store) AlertsEnabled(ctx context.Context, channel string) (bool, error) {
	enabled, err := s.SettingBool(ctx, models.SettingAlertEnabled, true)
	if err != nil || !enabled {
		return false, err
	}
	channels, err := s.SettingStrings(ctx, models.SettingNotificationChannels, []string{models.ChannelWebhook})
	if err != nil {
		return false, err
	}
	return slices.Contains(channels, channel), nil
}

// PutSetting stores value JSON-encoded under key, replacing any previous value.
func (s *Store) PutSetting(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal setting %s: %w", key, err)
	}
	row := models.Setting{Key: key, Value: string(data)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("store: put setting %s: %w", key, err)
	}
	return nil
}
