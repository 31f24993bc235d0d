package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

// Config is built once at startup and passed to the components that need it.
type Config struct {
	DatabaseURI   string `yaml:"database_uri"`
	TelegramToken string `yaml:"telegram_token"`
	TimeZone      string `yaml:"time_zone"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Log       LogConfig       `yaml:"log"`

	Location *time.Location `yaml:"-"`
}

type SchedulerConfig struct {
	TickSchedule string `yaml:"tick_schedule"` // robfig/cron spec
	Workers      int    `yaml:"workers"`
}

type DispatchConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryBase     time.Duration `yaml:"retry_base"`
	RetryMaxDelay time.Duration `yaml:"retry_max_delay"`
	RatePerSec    int           `yaml:"rate_per_sec"`
	SendTimeout   time.Duration `yaml:"send_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

func Default() *Config {
	return &Config{
		DatabaseURI: "sqlite://data/habitline.db",
		TimeZone:    "Europe/Moscow",
		Scheduler: SchedulerConfig{
			TickSchedule: "@every 1m",
			Workers:      4,
		},
		Dispatch: DispatchConfig{
			MaxAttempts:   3,
			RetryBase:     time.Second,
			RetryMaxDelay: 8 * time.Second,
			RatePerSec:    25,
			SendTimeout:   10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then the environment (including a .env file if present).
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env file is optional in production
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.DatabaseURI, "DATABASE_URI")
	setString(&c.TelegramToken, "TELEGRAM_TOKEN")
	setString(&c.TimeZone, "TIME_ZONE")
	setString(&c.Scheduler.TickSchedule, "TICK_SCHEDULE")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Log.File, "LOG_FILE")

	return errors.Join(
		setInt(&c.Scheduler.Workers, "SCHEDULER_WORKERS"),
		setInt(&c.Dispatch.MaxAttempts, "DISPATCH_MAX_ATTEMPTS"),
		setInt(&c.Dispatch.RatePerSec, "DISPATCH_RATE_PER_SEC"),
		setDuration(&c.Dispatch.RetryBase, "DISPATCH_RETRY_BASE"),
		setDuration(&c.Dispatch.RetryMaxDelay, "DISPATCH_RETRY_MAX"),
		setDuration(&c.Dispatch.SendTimeout, "DISPATCH_SEND_TIMEOUT"),
	)
}

func (c *Config) finish() error {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	c.Location = loc

	if c.Scheduler.Workers <= 0 {
		c.Scheduler.Workers = 1
	}
	if c.Dispatch.MaxAttempts <= 0 {
		c.Dispatch.MaxAttempts = 1
	}
	if c.Dispatch.RetryMaxDelay < c.Dispatch.RetryBase {
		c.Dispatch.RetryMaxDelay = c.Dispatch.RetryBase
	}
	return nil
}

// Validate checks the settings every long-running command needs.
func (c *Config) Validate() error {
	if c.DatabaseURI == "" {
		return errors.New("DATABASE_URI is required")
	}
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
