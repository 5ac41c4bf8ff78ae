package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrderDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_DSN", "postgres://localhost/orders")

	var cfg Order
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "postgres://localhost/orders", cfg.DatabaseDSN)
	assert.Equal(t, "ecommerce.exchange", cfg.Exchange)
	assert.Equal(t, "best-effort", cfg.ReservationPolicy)
	assert.Equal(t, "direct", cfg.PublishMode)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxInterval)
	assert.Equal(t, 50, cfg.OutboxBatchSize)
	assert.False(t, cfg.BreakerEnabled)
	assert.True(t, cfg.RunMigrations)
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_DSN", "")
	require.NoError(t, os.Unsetenv("DATABASE_DSN"))

	var cfg User
	require.Error(t, Load(&cfg))
}

func TestLoadNotificationOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_DSN", "postgres://localhost/notifications")
	t.Setenv("NOTIFICATION_DEDUP", "true")
	t.Setenv("LOW_STOCK_THRESHOLD", "5")
	t.Setenv("SMTP_HOST", "mail.local")

	var cfg Notification
	require.NoError(t, Load(&cfg))

	assert.True(t, cfg.Dedup)
	assert.Equal(t, 5, cfg.LowStockThreshold)
	assert.Equal(t, int64(1), cfg.AdminUserID)
	assert.Equal(t, "notification.", cfg.QueuePrefix)
	assert.Equal(t, "mail.local", cfg.SMTP.Host)
	assert.Equal(t, 100*time.Millisecond, cfg.LogDelay)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analytics.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_dsn: postgres://yaml/analytics\ndedup: true\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	var cfg Analytics
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "postgres://yaml/analytics", cfg.DatabaseDSN)
	assert.True(t, cfg.Dedup)
	assert.Equal(t, "analytics.", cfg.QueuePrefix)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	var cfg Product
	require.Error(t, Load(&cfg))
}
