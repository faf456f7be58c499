package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclebandit/message-scheduler/internal/config"
	"github.com/unclebandit/message-scheduler/internal/lock"
	"github.com/unclebandit/message-scheduler/internal/queue"
)

func testConfig() config.Config {
	return config.Config{
		PollInterval:       15 * time.Second,
		DispatchTimeout:    5 * time.Second,
		ErrorLogMaxLength:  250,
		AttachmentMaxBytes: 1024,
	}
}

func TestBuildWorkerDefaults(t *testing.T) {
	w, err := buildWorker(testConfig(), nil, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, 250, w.Dispatcher.MaxErrorLength)
	assert.Equal(t, 15*time.Second, w.Scheduler.Interval)
	assert.IsType(t, &lock.LocalGuard{}, w.Scheduler.Guard)
	assert.IsType(t, &queue.InMemoryQueue{}, w.Dispatcher.Events)
}

func TestBuildWorkerRedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	cfg.CycleLockTTL = time.Minute

	_, err := buildWorker(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}
