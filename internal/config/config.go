// Package config provides YAML-based configuration loading for Signalbox.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Signalbox configuration, loaded from signalbox.yaml.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Identity   IdentityConfig   `yaml:"identity"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Digest     DigestConfig     `yaml:"digest"`
	Notify     NotifyConfig     `yaml:"notify"`
	Classifier ClassifierConfig `yaml:"classifier"`
}

// DatabaseConfig selects and locates the backing store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite | mysql
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// IdentityConfig decides which senders count as internal operators.
type IdentityConfig struct {
	InternalIDs      []string `yaml:"internal_ids"`
	InternalPrefixes []string `yaml:"internal_prefixes"`
	SystemMarkers    []string `yaml:"system_markers"`
	BotID            string   `yaml:"bot_id"`
	BotName          string   `yaml:"bot_name"`
}

// MonitorConfig controls the lifecycle sweep and reply thresholds.
type MonitorConfig struct {
	CheckIntervalSec   int   `yaml:"check_interval_sec"`
	EscalationAgeHours int   `yaml:"escalation_age_hours"`
	ReplyTimeoutMin    int   `yaml:"reply_timeout_min"`
	AutoRemindDefault  *bool `yaml:"auto_remind_default"`
}

// DigestConfig controls the daily task digest.
type DigestConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// NotifyConfig controls outbound delivery.
type NotifyConfig struct {
	TimeoutSec     int    `yaml:"timeout_sec"`
	AlertWebhook   string `yaml:"alert_webhook"`
	MaxConcurrency int    `yaml:"max_concurrency"`
}

// ClassifierConfig locates the external intent classifier. Exactly one of
// Command or Endpoint may be set; neither means commands get the fallback reply.
type ClassifierConfig struct {
	Command    []string `yaml:"command"`
	Endpoint   string   `yaml:"endpoint"`
	TimeoutSec int      `yaml:"timeout_sec"`
}

// CronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated config with every default applied and a
// SQLite database at path.
func Default(path string) *Config {
	cfg := &Config{Database: DatabaseConfig{Driver: "sqlite", Path: path}}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "signalbox.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Identity.InternalPrefixes) == 0 {
		c.Identity.InternalPrefixes = []string{"system_"}
	}
	if len(c.Identity.SystemMarkers) == 0 {
		c.Identity.SystemMarkers = []string{"system"}
	}
	if c.Identity.BotID == "" {
		c.Identity.BotID = "system_bot"
	}
	if c.Identity.BotName == "" {
		c.Identity.BotName = "Signalbox"
	}
	if c.Monitor.CheckIntervalSec == 0 {
		c.Monitor.CheckIntervalSec = 60
	}
	if c.Monitor.EscalationAgeHours == 0 {
		c.Monitor.EscalationAgeHours = 24
	}
	if c.Monitor.ReplyTimeoutMin == 0 {
		c.Monitor.ReplyTimeoutMin = 30
	}
	if c.Monitor.AutoRemindDefault == nil {
		c.Monitor.AutoRemindDefault = boolPtr(true)
	}
	if c.Digest.Enabled == nil {
		c.Digest.Enabled = boolPtr(true)
	}
	if c.Digest.Cron == "" {
		c.Digest.Cron = "0 9 * * *"
	}
	if c.Notify.TimeoutSec == 0 {
		c.Notify.TimeoutSec = 10
	}
	if c.Notify.MaxConcurrency == 0 {
		c.Notify.MaxConcurrency = 4
	}
	if c.Classifier.TimeoutSec == 0 {
		c.Classifier.TimeoutSec = 20
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	case "mysql":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required for mysql")
		}
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Monitor.CheckIntervalSec < 0 {
		errs = append(errs, "monitor.check_interval_sec must be positive")
	}
	if c.Monitor.EscalationAgeHours < 0 {
		errs = append(errs, "monitor.escalation_age_hours must be positive")
	}
	if c.Monitor.ReplyTimeoutMin < 0 {
		errs = append(errs, "monitor.reply_timeout_min must be positive")
	}
	if _, err := CronParser.Parse(c.Digest.Cron); err != nil {
		errs = append(errs, fmt.Sprintf("digest.cron %q: %v", c.Digest.Cron, err))
	}
	if c.Notify.MaxConcurrency < 0 {
		errs = append(errs, "notify.max_concurrency must be positive")
	}
	if len(c.Classifier.Command) > 0 && c.Classifier.Endpoint != "" {
		errs = append(errs, "classifier: set either command or endpoint, not both")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// CheckInterval returns the lifecycle sweep interval.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Monitor.CheckIntervalSec) * time.Second
}

// EscalationAge returns the fallback escalation age for tasks without a deadline.
func (c *Config) EscalationAge() time.Duration {
	return time.Duration(c.Monitor.EscalationAgeHours) * time.Hour
}

// NotifyTimeout returns the per-delivery timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutSec) * time.Second
}

// ClassifierTimeout returns the per-call classifier timeout.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSec) * time.Second
}

// DigestEnabled reports whether the daily digest is scheduled.
func (c *Config) DigestEnabled() bool {
	return c.Digest.Enabled == nil || *c.Digest.Enabled
}

// AutoRemindDefault reports the auto_remind flag given to auto-created groups.
func (c *Config) AutoRemindDefault() bool {
	return c.Monitor.AutoRemindDefault == nil || *c.Monitor.AutoRemindDefault
}

func boolPtr(b bool) *bool { return &b }
