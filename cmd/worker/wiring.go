package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unclebandit/message-scheduler/internal/attachment"
	"github.com/unclebandit/message-scheduler/internal/chatwoot"
	"github.com/unclebandit/message-scheduler/internal/config"
	"github.com/unclebandit/message-scheduler/internal/lock"
	"github.com/unclebandit/message-scheduler/internal/queue"
	"github.com/unclebandit/message-scheduler/internal/repository"
	"github.com/unclebandit/message-scheduler/internal/service"
)

type worker struct {
	Dispatcher *service.Dispatcher
	Scheduler  *service.Scheduler
	closers    []func() error
}

func (w *worker) Close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		_ = w.closers[i]()
	}
}

// buildWorker assembles the dispatcher and its scheduler from config. conn
// may be nil in tests that never run a cycle against a database.
func buildWorker(cfg config.Config, conn *sqlx.DB, logger *zap.Logger) (*worker, error) {
	w := &worker{}

	httpClient := &http.Client{Timeout: cfg.DispatchTimeout}
	d := service.NewDispatcher(
		&repository.ScheduledMessageRepository{DB: conn},
		&repository.TenantRepository{DB: conn},
		attachment.NewFetcher(httpClient, cfg.AttachmentMaxBytes),
		chatwoot.NewClient(httpClient),
		logger,
	)
	d.MaxErrorLength = cfg.ErrorLogMaxLength

	events, closeEvents, err := buildPublisher(cfg, logger)
	if err != nil {
		w.Close()
		return nil, err
	}
	if closeEvents != nil {
		w.closers = append(w.closers, closeEvents)
	}
	d.Events = events

	s := service.NewScheduler(d, cfg.PollInterval, logger)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			w.Close()
			return nil, errors.Wrapf(err, "redis at %s", cfg.RedisAddr)
		}
		w.closers = append(w.closers, rdb.Close)
		s.Guard = lock.NewRedisGuard(rdb, cfg.CycleLockKey, cfg.CycleLockTTL)
		logger.Info("using redis cycle guard", zap.String("key", cfg.CycleLockKey))
	}

	w.Dispatcher = d
	w.Scheduler = s
	return w, nil
}

// buildPublisher returns RabbitMQ when AMQP_URL is set, otherwise an
// in-process queue whose only subscriber logs each event.
func buildPublisher(cfg config.Config, logger *zap.Logger) (queue.Publisher, func() error, error) {
	if cfg.AMQPURL != "" {
		q, err := queue.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue, logger)
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	}
	q := queue.NewInMemoryQueue(logger)
	if err := queue.StartDispatchLogSubscriber(q, logger); err != nil {
		return nil, nil, err
	}
	return q, func() error { q.Drain(); return nil }, nil
}
