package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "db.sqlite3", cfg.Database.Path)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "0 5 0 * * *", cfg.Schedule.SnapshotCron)
	rate, err := cfg.DailyRate()
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.00035")))
	assert.False(t, cfg.Debug)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	yaml := `
database:
  path: /var/lib/ledger/events.db
interest:
  daily_rate: "0.0004"
server:
  addr: ":9090"
  allowed_origins: ["https://ledger.example.com"]
debug: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("LEDGER_ADDR", ":7070")
	t.Setenv("LEDGER_SNAPSHOT_CRON", "@daily")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/ledger/events.db", cfg.Database.Path)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, []string{"https://ledger.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "@daily", cfg.Schedule.SnapshotCron)
	assert.True(t, cfg.Debug)
	rate, _ := cfg.DailyRate()
	assert.True(t, rate.Equal(decimal.RequireFromString("0.0004")))
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unterminated"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Interest.DailyRate = "abc"
	assert.ErrorContains(t, cfg.Validate(), "daily_rate")

	cfg.Interest.DailyRate = "-0.1"
	assert.ErrorContains(t, cfg.Validate(), "negative")

	cfg.Interest.DailyRate = "0.00035"
	cfg.Schedule.SnapshotCron = "every day"
	assert.ErrorContains(t, cfg.Validate(), "snapshot_cron")
}
