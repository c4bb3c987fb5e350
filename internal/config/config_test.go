package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/test")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		require.Equal(t, ":8080", cfg.HTTPAddr)
		require.Equal(t, "info", cfg.LogLevel)
		require.Equal(t, "console", cfg.LogFormat)
		require.Equal(t, 720*time.Hour, cfg.SessionTTL)
		require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
		require.True(t, cfg.AllowRegistration)
		require.Equal(t, ExporterNone, cfg.OTelExporter)
		require.Equal(t, "expense-claims", cfg.OTelServiceName)
		require.False(t, cfg.UsesMemoryStore())
		require.False(t, cfg.NotificationsEnabled())
		require.False(t, cfg.SuggestionsEnabled())
	})

	t.Run("loads all config from env", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "memory://")
		t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("LOG_FORMAT", "json")
		t.Setenv("SESSION_TTL", "2h")
		t.Setenv("SHUTDOWN_TIMEOUT", "3s")
		t.Setenv("ALLOW_REGISTRATION", "false")
		t.Setenv("TELEGRAM_BOT_TOKEN", "test-token-123")
		t.Setenv("GEMINI_API_KEY", "gemini-key")
		t.Setenv("OTEL_EXPORTER", "otlp-grpc")
		t.Setenv("OTEL_SERVICE_NAME", "claims-test")

		cfg, err := Load()
		require.NoError(t, err)
		require.True(t, cfg.UsesMemoryStore())
		require.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
		require.Equal(t, "debug", cfg.LogLevel)
		require.Equal(t, "json", cfg.LogFormat)
		require.Equal(t, 2*time.Hour, cfg.SessionTTL)
		require.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
		require.False(t, cfg.AllowRegistration)
		require.True(t, cfg.NotificationsEnabled())
		require.True(t, cfg.SuggestionsEnabled())
		require.Equal(t, ExporterOTLPGRPC, cfg.OTelExporter)
		require.Equal(t, "claims-test", cfg.OTelServiceName)
	})

	t.Run("requires database URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "DATABASE_URL is required")
	})

	t.Run("rejects unsupported database URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "mysql://localhost/test")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "DATABASE_URL must be")
	})

	t.Run("collects every problem", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("LOG_LEVEL", "verbose")
		t.Setenv("LOG_FORMAT", "xml")
		t.Setenv("SESSION_TTL", "forever")
		t.Setenv("ALLOW_REGISTRATION", "maybe")
		t.Setenv("OTEL_EXPORTER", "jaeger")

		_, err := Load()
		require.Error(t, err)
		for _, want := range []string{"DATABASE_URL", "LOG_LEVEL", "LOG_FORMAT", "SESSION_TTL", "ALLOW_REGISTRATION", "OTEL_EXPORTER"} {
			require.Contains(t, err.Error(), want)
		}
	})

	t.Run("rejects non-positive session TTL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "memory://")
		t.Setenv("SESSION_TTL", "-1h")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "SESSION_TTL must be positive")
	})
}
