// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/message-scheduler/internal/config"
	"github.com/unclebandit/message-scheduler/internal/controller"
	"github.com/unclebandit/message-scheduler/internal/db"
	"github.com/unclebandit/message-scheduler/internal/handler"
	"github.com/unclebandit/message-scheduler/internal/logging"
	"github.com/unclebandit/message-scheduler/internal/repository"
	"github.com/unclebandit/message-scheduler/internal/service"
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
	logger.Info("✅ Connected to database")

	scheduleService := &service.ScheduleService{
		TenantRepo:  &repository.TenantRepository{DB: conn},
		MessageRepo: &repository.ScheduledMessageRepository{DB: conn},
		Logger:      logger,
	}
	scheduleController := &controller.ScheduleController{ScheduleService: scheduleService, Logger: logger}
	statsHandler := &handler.StatsHandler{Stats: scheduleService, DB: conn, Logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", statsHandler.Healthz)
	r.Get("/api/schedule/stats", statsHandler.GetStats)
	scheduleController.Register(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("🚀 Server running", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
