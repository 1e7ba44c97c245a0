package db

import (
	"encoding/json"
	"fmt"

	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Group{},
		&models.Message{},
		&models.Alert{},
		&models.Task{},
		&models.Reminder{},
		&models.PolicyTerm{},
		&models.Setting{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DefaultPolicyTerms is the screening list installed by `sb db init`.
var DefaultPolicyTerms = []models.PolicyTerm{
	{Term: "complaint", Severity: models.SeverityUrgent},
	{Term: "refund", Severity: models.SeverityUrgent},
	{Term: "scam", Severity: models.SeverityUrgent},
	{Term: "slow", Severity: models.SeverityWarning},
	{Term: "disappointed", Severity: models.SeverityWarning},
}

// DefaultSettings returns the global alerting settings installed by `sb db init`.
func DefaultSettings() map[string]interface{} {
	return map[string]interface{}{
		models.SettingAlertEnabled:         true,
		models.SettingAlertTimeoutMinutes:  30,
		models.SettingNotificationChannels: []string{models.ChannelWebhook},
	}
}

// SeedPolicyTerms inserts the given terms, leaving existing terms untouched.
func SeedPolicyTerms(db *gorm.DB, terms []models.PolicyTerm) error {
	for _, pt := range terms {
		row := models.PolicyTerm{Term: pt.Term, Severity: pt.Severity}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "term"}},
			DoNothing: true,
		}).Create(&row)
		if result.Error != nil {
			return fmt.Errorf("db: seed policy term %q: %w", pt.Term, result.Error)
		}
	}
	return nil
}

// SeedSettings inserts the given settings as JSON values, leaving existing
// keys untouched.
func SeedSettings(db *gorm.DB, settings map[string]interface{}) error {
	for key, v := range settings {
		value, err := marshalJSON(v)
		if err != nil {
			return fmt.Errorf("db: marshal setting %q: %w", key, err)
		}
		row := models.Setting{Key: key, Value: value}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&row)
		if result.Error != nil {
			return fmt.Errorf("db: seed setting %q: %w", key, result.Error)
		}
	}
	return nil
}

// Init migrates the schema and installs the default seed data.
func Init(db *gorm.DB) error {
	if err := AutoMigrate(db); err != nil {
		return err
	}
	if err := SeedPolicyTerms(db, DefaultPolicyTerms); err != nil {
		return err
	}
	return SeedSettings(db, DefaultSettings())
}

// marshalJSON marshals a value to a JSON string, returning empty string for nil.
func marshalJSON(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
