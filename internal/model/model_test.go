package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/message-scheduler/internal/model"
)

func TestNormalizeEndpointURL(t *testing.T) {
	cases := map[string]string{
		"https://Chat.Example.com/":         "https://chat.example.com",
		"HTTP://chat.example.com:3000":      "http://chat.example.com:3000",
		"https://chat.example.com/app//":    "https://chat.example.com/app",
		"https://chat.example.com/?x=1#top": "https://chat.example.com",
		"  https://chat.example.com  ":      "https://chat.example.com",
	}
	for in, want := range cases {
		got, err := model.NormalizeEndpointURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "chat.example.com", "ftp://chat.example.com", "https://"} {
		_, err := model.NormalizeEndpointURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestStatus(t *testing.T) {
	assert.False(t, model.StatusPending.Terminal())
	assert.True(t, model.StatusSent.Terminal())
	assert.True(t, model.StatusFailed.Terminal())
	assert.False(t, model.Status("RETRYING").Valid())
}

func TestDue(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := &model.ScheduledMessage{Status: model.StatusPending, ScheduledAt: now}
	assert.True(t, msg.Due(now))
	assert.False(t, msg.Due(now.Add(-time.Second)))

	msg.Status = model.StatusFailed
	assert.False(t, msg.Due(now.Add(time.Hour)))
}
