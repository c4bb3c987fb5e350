// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MemoryDatabaseURL selects the in-process stores instead of PostgreSQL.
const MemoryDatabaseURL = "memory://"

// Supported OTEL_EXPORTER values.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

var (
	exporters  = []string{ExporterNone, ExporterStdout, ExporterOTLPHTTP, ExporterOTLPGRPC}
	logFormats = []string{"console", "json"}
	logLevels  = []string{"debug", "info", "warn", "error"}
)

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL       string
	HTTPAddr          string
	LogLevel          string
	LogFormat         string
	SessionTTL        time.Duration
	AllowRegistration bool
	TelegramBotToken  string
	GeminiAPIKey      string
	OTelExporter      string
	OTelServiceName   string
	ShutdownTimeout   time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		HTTPAddr:         envOr("HTTP_ADDR", ":8080"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        envOr("LOG_FORMAT", "console"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		OTelExporter:     envOr("OTEL_EXPORTER", ExporterNone),
		OTelServiceName:  envOr("OTEL_SERVICE_NAME", "expense-claims"),
	}

	var errs []string

	var err error
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", 720*time.Hour); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err.Error())
	}

	cfg.AllowRegistration = true
	if v := os.Getenv("ALLOW_REGISTRATION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("ALLOW_REGISTRATION must be a boolean, got %q", v))
		}
		cfg.AllowRegistration = b
	}

	// Validate required configuration.
	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// validate checks that all required configuration is present and well formed.
func (c *Config) validate() []string {
	var errs []string

	switch {
	case c.DatabaseURL == "":
		errs = append(errs, "DATABASE_URL is required")
	case !c.UsesMemoryStore() &&
		!strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://"):
		errs = append(errs, "DATABASE_URL must be a postgres:// URL or "+MemoryDatabaseURL)
	}

	if !slices.Contains(logLevels, c.LogLevel) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of %s", strings.Join(logLevels, ", ")))
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be one of %s", strings.Join(logFormats, ", ")))
	}
	if !slices.Contains(exporters, c.OTelExporter) {
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER must be one of %s", strings.Join(exporters, ", ")))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, "SESSION_TTL must be positive")
	}

	return errs
}

// UsesMemoryStore reports whether the in-process stores were selected.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == MemoryDatabaseURL
}

// NotificationsEnabled reports whether Telegram status notifications are configured.
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramBotToken != ""
}

// SuggestionsEnabled reports whether Gemini category suggestions are configured.
func (c *Config) SuggestionsEnabled() bool {
	return c.GeminiAPIKey != ""
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a duration like 30m or 720h, got %q", key, v)
	}
	return d, nil
}
