package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/message-scheduler/internal/config"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app?sslmode=disable")

	cfg, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, 1000, cfg.ErrorLogMaxLength)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "scheduled_message_events", cfg.AMQPQueue)
	assert.Equal(t, "postgres://u:p@db:5432/app?sslmode=disable", cfg.DSN())
	assert.False(t, cfg.Production())
}

func TestDSNFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_USER", "sched")
	t.Setenv("DB_PASSWORD", "s3cr#t")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_NAME", "scheduler")
	t.Setenv("DB_SSLMODE", "disable")

	cfg, err := config.Parse()
	require.NoError(t, err)
	assert.Equal(t, "postgres://sched:s3cr%23t@pg:5432/scheduler?sslmode=disable", cfg.DSN())
}

func TestParseRejectsBadValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")

	t.Setenv("POLL_INTERVAL", "0s")
	_, err := config.Parse()
	assert.Error(t, err)

	t.Setenv("POLL_INTERVAL", "10s")
	t.Setenv("ERROR_LOG_MAX_LENGTH", "0")
	_, err = config.Parse()
	assert.Error(t, err)
}

func TestParseRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "")
	_, err := config.Parse()
	assert.Error(t, err)
}
