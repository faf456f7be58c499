package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/message-scheduler/internal/config"
	"github.com/unclebandit/message-scheduler/internal/db"
	"github.com/unclebandit/message-scheduler/internal/logging"
)

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	if !dotenv {
		logger.Info("no .env file found, relying on OS environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DSN())
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer conn.Close()

	w, err := buildWorker(cfg, conn, logger)
	if err != nil {
		logger.Fatal("failed to build worker", zap.Error(err))
	}
	defer w.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.Scheduler.Start(gctx); err != nil {
			return err
		}
		logger.Info("worker running", zap.Duration("poll_interval", cfg.PollInterval))
		<-gctx.Done()
		logger.Info("shutdown requested, waiting for in-flight cycle")
		w.Scheduler.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
		w.Close()
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
