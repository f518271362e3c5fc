package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"app"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking BookingConfig `yaml:"booking"`

	Backup BackupConfig `yaml:"backup"`

	Notifications struct {
		Telegram TelegramConfig `yaml:"telegram"`
	} `yaml:"notifications"`

	Sweep SweepConfig `yaml:"sweep"`

	Catalog struct {
		Path          string `yaml:"path"`
		ReloadSeconds int    `yaml:"reload_seconds"`
	} `yaml:"catalog"`
}

// BookingConfig holds the reservation and slot generation policy.
type BookingConfig struct {
	CancellationLeadMinutes  int   `yaml:"cancellation_lead_minutes"`
	ModificationLeadMinutes  int   `yaml:"modification_lead_minutes"`
	MaxBatchSize             int   `yaml:"max_batch_size"`
	MaxDateSpanDays          int   `yaml:"max_date_span_days"`
	DefaultCapacity          int   `yaml:"default_capacity"`
	ClaimMaxRetries          int   `yaml:"claim_max_retries"`
	AllowCompleteFromPending *bool `yaml:"allow_complete_from_pending"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type TelegramConfig struct {
	Enabled       bool    `yaml:"enabled"`
	BotToken      string  `yaml:"bot_token"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	QueueSize     int     `yaml:"queue_size"`
}

type SweepConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
	BatchLimit      int  `yaml:"batch_limit"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/slotbook.db"
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "configs/catalog.yaml"
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "UTC"
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects negative limits and unknown time zones.
func (c *Config) Validate() error {
	b := c.Booking
	checks := map[string]int{
		"booking.cancellation_lead_minutes": b.CancellationLeadMinutes,
		"booking.modification_lead_minutes": b.ModificationLeadMinutes,
		"booking.max_batch_size":            b.MaxBatchSize,
		"booking.max_date_span_days":        b.MaxDateSpanDays,
		"booking.default_capacity":          b.DefaultCapacity,
		"booking.claim_max_retries":         b.ClaimMaxRetries,
		"sweep.interval_seconds":            c.Sweep.IntervalSeconds,
		"sweep.batch_limit":                 c.Sweep.BatchLimit,
		"backup.retention_days":             c.Backup.RetentionDays,
	}
	for name, v := range checks {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative, got %d", name, v)
		}
	}
	if c.Notifications.Telegram.Enabled && c.Notifications.Telegram.BotToken == "" {
		return fmt.Errorf("notifications.telegram.bot_token is required when telegram is enabled")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	return nil
}

// Location returns the default business time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) CatalogReloadInterval() time.Duration {
	if c.Catalog.ReloadSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Catalog.ReloadSeconds) * time.Second
}

func (b BookingConfig) CancellationLead() time.Duration {
	if b.CancellationLeadMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(b.CancellationLeadMinutes) * time.Minute
}

func (b BookingConfig) ModificationLead() time.Duration {
	if b.ModificationLeadMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.ModificationLeadMinutes) * time.Minute
}

func (b BookingConfig) BatchLimit() int {
	if b.MaxBatchSize <= 0 {
		return 500
	}
	return b.MaxBatchSize
}

func (b BookingConfig) DateSpanLimit() int {
	if b.MaxDateSpanDays <= 0 {
		return 31
	}
	return b.MaxDateSpanDays
}

func (b BookingConfig) Capacity() int {
	if b.DefaultCapacity <= 0 {
		return 1
	}
	return b.DefaultCapacity
}

func (b BookingConfig) CompleteFromPending() bool {
	if b.AllowCompleteFromPending == nil {
		return true
	}
	return *b.AllowCompleteFromPending
}

func (b BackupConfig) Interval() time.Duration {
	if b.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.IntervalHours) * time.Hour
}

func (b BackupConfig) Dir() string {
	if b.Path == "" {
		return "data/backups"
	}
	return b.Path
}

func (t TelegramConfig) Rate() float64 {
	if t.RatePerSecond <= 0 {
		return 1
	}
	return t.RatePerSecond
}

func (t TelegramConfig) Queue() int {
	if t.QueueSize <= 0 {
		return 256
	}
	return t.QueueSize
}

func (s SweepConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

func (s SweepConfig) Limit() int {
	if s.BatchLimit <= 0 {
		return 100
	}
	return s.BatchLimit
}
