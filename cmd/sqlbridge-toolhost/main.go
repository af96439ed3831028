package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sqlbridge/sqlbridge/internal/config"
	"github.com/sqlbridge/sqlbridge/internal/dbexec"
	"github.com/sqlbridge/sqlbridge/internal/observability"
	"github.com/sqlbridge/sqlbridge/internal/toolhost"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlbridge-toolhost")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// stdout carries the tool protocol; everything else goes to stderr.
	logger := observability.NewLogger(cfg, os.Stderr)

	db, err := dbexec.Open(context.Background(), cfg.Database)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	engine := dbexec.NewEngine(db, cfg.Database.Driver, cfg.Database.StatementWait)
	srv := toolhost.NewServer(engine, logger)

	logger.Info("tool host ready", slog.String("driver", cfg.Database.Driver))
	if err := toolhost.ServeStdio(srv); err != nil {
		logger.Error("tool host terminated", slog.Any("error", err))
		os.Exit(1)
	}
}
