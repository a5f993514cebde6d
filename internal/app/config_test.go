package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.True(t, cfg.NATS.Enabled)
	require.Equal(t, "nats://queue.example.com:4222", cfg.NATS.URL)
	require.Equal(t, 3*time.Second, cfg.NATS.PublishTimeout)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "harborcare", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, 45, cfg.Maintenance.RetentionDays)

	require.False(t, cfg.Monitoring.Prometheus.Enabled)
	require.False(t, cfg.Features.Realtime.Enabled)
	require.True(t, cfg.Features.Persist)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/notify.sqlite", cfg.Database.Path)
	require.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	require.Equal(t, 5*time.Second, cfg.NATS.PublishTimeout)
	require.Equal(t, 90, cfg.Maintenance.RetentionDays)
	require.True(t, cfg.Features.Persist)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("NOTIFY_SERVER_PORT", "7070")
	t.Setenv("NOTIFY_MAINTENANCE_RETENTION_DAYS", "30")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 30, cfg.Maintenance.RetentionDays)
}

func TestDatabaseSettingsMapping(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{
			Driver: "postgres",
			Postgres: DBAuthConfig{
				Host:     "db.local",
				Port:     5432,
				Database: "notify",
				Username: "svc",
				Password: "pw",
			},
		},
	}

	settings := cfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db.local", settings.Host)
	require.Equal(t, 5432, settings.Port)
	require.Equal(t, "notify", settings.Name)
	require.Equal(t, "svc", settings.User)
	require.Equal(t, "pw", settings.Password)
}
