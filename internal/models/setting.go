package models

import "time"

// Well-known setting keys.
const (
	SettingAlertEnabled         = "alert_enabled"
	SettingAlertTimeoutMinutes  = "alert_timeout_minutes"
	SettingNotificationChannels = "notification_channels"
)

// ChannelWebhook is the notification channel for the operator alert webhook.
const ChannelWebhook = "webhook"

// Setting is a global key/value pair. Values are JSON-encoded.
type Setting struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}
