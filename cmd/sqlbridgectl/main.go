package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sqlbridge/sqlbridge/internal/cli/bridgectl"
	"github.com/sqlbridge/sqlbridge/internal/config"
	"github.com/sqlbridge/sqlbridge/internal/llm"
	"github.com/sqlbridge/sqlbridge/internal/observability"
	"github.com/sqlbridge/sqlbridge/internal/pipeline"
	"github.com/sqlbridge/sqlbridge/internal/session"
	"github.com/sqlbridge/sqlbridge/internal/sqlguard"
	"github.com/sqlbridge/sqlbridge/internal/summarize"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlbridgectl")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// The CLI is interactive; structured logs go to stderr so stdout stays
	// clean for command output.
	logger := observability.NewLogger(cfg, os.Stderr)

	dial := session.StdioDialer(cfg.ToolHost.Command, os.Environ(), cfg.ToolHost.ToolHostArgs()...)
	channel := session.NewChannel(dial, session.Options{
		HandshakeAttempts: cfg.ToolHost.HandshakeAttempts,
		CallTimeout:       cfg.ToolHost.CallTimeout,
		Logger:            logger,
	})
	defer func() { _ = channel.Close() }()

	generator, err := llm.NewFromConfig(cfg.AI)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to initialize generator: %v\n", err)
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

	code := bridgectl.Run(context.Background(), os.Args[1:], bridgectl.Options{
		Service: orchestrator,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
	os.Exit(code)
}
