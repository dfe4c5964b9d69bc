package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting of the reminder service.
type Config struct {
	Port            int           `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	Timezone        string        `yaml:"timezone"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Database DatabaseConfig `yaml:"database"`
	JobStore JobStoreConfig `yaml:"job_store"`
	Notify   NotifyConfig   `yaml:"notify"`
	Line     LineConfig     `yaml:"line"`
}

// DatabaseConfig selects the gorm driver and DSN.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite | postgres
	DSN      string `yaml:"dsn"`
	LogLevel string `yaml:"log_level"` // silent | error | warn | info
}

// JobStoreConfig selects where scheduled job records live.
type JobStoreConfig struct {
	Backend  string `yaml:"backend"` // sql | redis
	RedisURL string `yaml:"redis_url"`
}

// NotifyConfig controls the notification sender and delivery retries.
type NotifyConfig struct {
	Backend      string        `yaml:"backend"` // line | log
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// LineConfig holds LINE Messaging API credentials.
type LineConfig struct {
	ChannelSecret string `yaml:"channel_secret"`
	ChannelToken  string `yaml:"channel_access_token"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:            8080,
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
		Database: DatabaseConfig{
			Driver:   "sqlite",
			DSN:      "medreminder.db",
			LogLevel: "warn",
		},
		JobStore: JobStoreConfig{
			Backend: "sql",
		},
		Notify: NotifyConfig{
			Backend:      "line",
			Timeout:      10 * time.Second,
			MaxAttempts:  2,
			RetryBackoff: 2 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Timezone, "REMINDER_TIMEZONE")
	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.DSN, "BLUEPRINT_DB_URL")
	setString(&cfg.Database.LogLevel, "DB_LOG_LEVEL")
	setString(&cfg.JobStore.Backend, "JOB_STORE")
	setString(&cfg.JobStore.RedisURL, "REDIS_URL")
	setString(&cfg.Notify.Backend, "NOTIFIER")
	setString(&cfg.Line.ChannelSecret, "CHANNEL_SECRET")
	setString(&cfg.Line.ChannelToken, "CHANNEL_ACCESS_TOKEN")

	if err := setDuration(&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Notify.Timeout, "NOTIFY_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Notify.RetryBackoff, "NOTIFY_RETRY_BACKOFF"); err != nil {
		return err
	}
	if v := os.Getenv("NOTIFY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NOTIFY_MAX_ATTEMPTS %q: %w", v, err)
		}
		cfg.Notify.MaxAttempts = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn must be set")
	}
	switch strings.ToLower(c.JobStore.Backend) {
	case "sql":
	case "redis":
		if c.JobStore.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when the job store backend is redis")
		}
	default:
		return fmt.Errorf("unsupported job store backend %q", c.JobStore.Backend)
	}
	switch strings.ToLower(c.Notify.Backend) {
	case "log":
	case "line":
		if c.Line.ChannelSecret == "" || c.Line.ChannelToken == "" {
			return fmt.Errorf("CHANNEL_SECRET and CHANNEL_ACCESS_TOKEN must be set for the line notifier")
		}
	default:
		return fmt.Errorf("unsupported notifier %q", c.Notify.Backend)
	}
	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("notify max attempts must be at least 1, got %d", c.Notify.MaxAttempts)
	}
	if c.Notify.Timeout <= 0 {
		return fmt.Errorf("notify timeout must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the reminder timezone; empty means the host's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
