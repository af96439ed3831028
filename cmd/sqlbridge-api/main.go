package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlbridge/sqlbridge/internal/api"
	"github.com/sqlbridge/sqlbridge/internal/auth"
	"github.com/sqlbridge/sqlbridge/internal/config"
	"github.com/sqlbridge/sqlbridge/internal/llm"
	"github.com/sqlbridge/sqlbridge/internal/observability"
	"github.com/sqlbridge/sqlbridge/internal/pipeline"
	"github.com/sqlbridge/sqlbridge/internal/session"
	"github.com/sqlbridge/sqlbridge/internal/sqlguard"
	"github.com/sqlbridge/sqlbridge/internal/summarize"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlbridge-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	dial := session.StdioDialer(cfg.ToolHost.Command, os.Environ(), cfg.ToolHost.ToolHostArgs()...)
	channel := session.NewChannel(dial, session.Options{
		HandshakeAttempts: cfg.ToolHost.HandshakeAttempts,
		CallTimeout:       cfg.ToolHost.CallTimeout,
		Logger:            logger,
	})
	defer func() { _ = channel.Close() }()

	generator, err := llm.NewFromConfig(cfg.AI)
	if err != nil {
		logger.Error("failed to initialize generator", slog.Any("error", err))
		os.Exit(1)
	}

	orchestrator := pipeline.NewOrchestrator(
		channel,
		generator,
		summarize.NewSummarizer(generator, cfg.Pipeline.MaxSummaryRows),
		pipeline.Config{
			Dialect:     cfg.Database.Driver,
			Mode:        sqlguard.ModeFor(cfg.Pipeline.AllowWrites),
			RetryBudget: cfg.Pipeline.RetryBudget,
		},
		logger,
	)

	deps := api.Dependencies{
		Logger:            logger,
		Pipeline:          orchestrator,
		Readiness:         api.CheckSession(channel.Ready),
		SessionLive:       channel.Attached,
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
