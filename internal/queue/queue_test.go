package queue_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/message-scheduler/internal/model"
	"github.com/unclebandit/message-scheduler/internal/queue"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	q := queue.NewInMemoryQueue(nil)
	assert.Error(t, q.Publish(queue.TopicDispatched, "x"))
}

func TestPublishFansOut(t *testing.T) {
	q := queue.NewInMemoryQueue(nil)
	var calls int32
	for i := 0; i < 2; i++ {
		require.NoError(t, q.Subscribe("t", func(payload any) error {
			assert.Equal(t, 5, payload)
			atomic.AddInt32(&calls, 1)
			return nil
		}))
	}

	require.NoError(t, q.Publish("t", 5))
	q.Drain()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFailingHandlerIsRetried(t *testing.T) {
	q := queue.NewInMemoryQueue(nil)
	q.Backoff = time.Millisecond
	q.MaxRetries = 2

	var calls int32
	require.NoError(t, q.Subscribe("t", func(payload any) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("boom")
		}
		return nil
	}))

	require.NoError(t, q.Publish("t", nil))
	q.Drain()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetriesAreBounded(t *testing.T) {
	q := queue.NewInMemoryQueue(nil)
	q.Backoff = time.Millisecond
	q.MaxRetries = 1

	var calls int32
	require.NoError(t, q.Subscribe("t", func(payload any) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("always")
	}))

	require.NoError(t, q.Publish("t", nil))
	q.Drain()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDispatchLogSubscriberAcceptsEvents(t *testing.T) {
	q := queue.NewInMemoryQueue(nil)
	require.NoError(t, queue.StartDispatchLogSubscriber(q, nil))

	require.NoError(t, q.Publish(queue.TopicDispatched, model.DispatchEvent{MessageID: "m1", Status: model.StatusSent}))
	require.NoError(t, q.Publish(queue.TopicDispatched, "not an event"))
	q.Drain()
}
