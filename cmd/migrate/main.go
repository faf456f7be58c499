// cmd/migrate/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pressly/goose"
	"go.uber.org/zap"

	"github.com/unclebandit/message-scheduler/internal/config"
	"github.com/unclebandit/message-scheduler/internal/db"
	"github.com/unclebandit/message-scheduler/internal/logging"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down|status|version]")
	}
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, _, err := config.Load()
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

	conn, err := db.Open(context.Background(), cfg.DSN())
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer conn.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal("set dialect", zap.Error(err))
	}
	if err := goose.Run(command, conn.DB, cfg.MigrationsDir, flag.Args()[min(1, flag.NArg()):]...); err != nil {
		logger.Fatal("migration failed", zap.String("command", command), zap.Error(err))
	}
	logger.Info("migrations completed", zap.String("command", command), zap.String("dir", cfg.MigrationsDir))
}
