// Package config loads the server configuration from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Storage   StorageConfig   `yaml:"storage"`
	Content   ContentConfig   `yaml:"content"`
	View      ViewConfig      `yaml:"view"`
	Admin     AdminConfig     `yaml:"admin"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

type AppConfig struct {
	LogLevel string     `yaml:"log_level"`
	Mode     string     `yaml:"mode"`
	HTTP     HTTPConfig `yaml:"http"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns the HTTP listen address.
func (c HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// StorageConfig locates the preference database. An empty path keeps
// preferences in memory.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// ContentConfig optionally replaces the embedded catalogue.
type ContentConfig struct {
	File string `yaml:"file"`
}

// ViewConfig tunes the navigation state. All values are cosmetic.
type ViewConfig struct {
	LookAhead         float64       `yaml:"look_ahead"`
	ScrolledThreshold float64       `yaml:"scrolled_threshold"`
	SplashDuration    time.Duration `yaml:"splash_duration"`
	SessionIdle       time.Duration `yaml:"session_idle"`
	MaxSessions       int           `yaml:"max_sessions"`
}

type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type AnalyticsConfig struct {
	Retention       time.Duration `yaml:"retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	MaxEvents       int           `yaml:"max_events"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: "info",
			Mode:     "release",
			HTTP:     HTTPConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
		},
		Storage: StorageConfig{DBPath: "data/preferences.db"},
		View: ViewConfig{
			LookAhead:         100,
			ScrolledThreshold: 20,
			SplashDuration:    2 * time.Second,
			SessionIdle:       30 * time.Minute,
			MaxSessions:       10000,
		},
		Admin: AdminConfig{Username: "admin"},
		Analytics: AnalyticsConfig{
			Retention:       365 * 24 * time.Hour,
			CleanupInterval: time.Hour,
			MaxEvents:       10000,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if it
// exists; ${VAR} references are expanded) and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.App.HTTP.Port = port
	}
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("CONTENT_FILE"); v != "" {
		c.Content.File = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		c.App.Mode = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		c.Admin.Username = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		c.Admin.Password = v
	}
	if v := os.Getenv("SPLASH_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SPLASH_DURATION: %w", err)
		}
		c.View.SplashDuration = d
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.App.HTTP,
		validation.Field(&c.App.HTTP.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := validation.ValidateStruct(&c.App,
		validation.Field(&c.App.Mode, validation.In("debug", "release", "test")),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if _, err := c.App.Level(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := validation.ValidateStruct(&c.View,
		validation.Field(&c.View.LookAhead, validation.Min(0.0)),
		validation.Field(&c.View.ScrolledThreshold, validation.Min(0.0)),
		validation.Field(&c.View.SplashDuration, validation.Min(time.Duration(0))),
		validation.Field(&c.View.SessionIdle, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.View.MaxSessions, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("view: %w", err)
	}
	if err := validation.ValidateStruct(&c.Admin,
		validation.Field(&c.Admin.Username, validation.Required),
	); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	return validation.ValidateStruct(&c.Analytics,
		validation.Field(&c.Analytics.Retention, validation.Required),
		validation.Field(&c.Analytics.CleanupInterval, validation.Required),
		validation.Field(&c.Analytics.MaxEvents, validation.Min(1)),
	)
}

// Level parses the configured log level.
func (c AppConfig) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
