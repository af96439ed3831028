// Package pipeline orchestrates one question end to end: prompt building,
// SQL generation, validation, execution through the tool session, and
// summarization. The orchestrator itself is stateless; each Run carries
// its own ephemeral record and the only shared resource is the channel.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sqlbridge/sqlbridge/internal/llm"
	"github.com/sqlbridge/sqlbridge/internal/nlsql"
	"github.com/sqlbridge/sqlbridge/internal/observability"
	"github.com/sqlbridge/sqlbridge/internal/sqlguard"
	"github.com/sqlbridge/sqlbridge/internal/summarize"
	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

// State names one phase of a run. Errored absorbs failures from any phase.
type State string

const (
	StateBuildingPrompt State = "building_prompt"
	StateGenerating     State = "generating"
	StateValidating     State = "validating"
	StateExecuting      State = "executing"
	StateSummarizing    State = "summarizing"
	StateDone           State = "done"
	StateErrored        State = "errored"
)

// Channel is the tool session surface the orchestrator drives.
type Channel interface {
	DescribeSchema(ctx context.Context) (toolproto.SchemaSnapshot, error)
	ExecuteSQL(ctx context.Context, statement string) (toolproto.ResultSet, error)
}

type Config struct {
	Dialect     string
	Mode        sqlguard.Mode
	RetryBudget int
}

// Orchestrator wires the collaborators for the question pipeline. One
// instance serves all requests; per-run state lives in RunResult.
type Orchestrator struct {
	channel    Channel
	generator  llm.Generator
	summarizer *summarize.Summarizer
	builder    *nlsql.Builder
	mode       sqlguard.Mode
	budget     int
	logger     *slog.Logger
}

func NewOrchestrator(channel Channel, generator llm.Generator, summarizer *summarize.Summarizer, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.RetryBudget < 0 {
		cfg.RetryBudget = 0
	}
	if cfg.Mode == "" {
		cfg.Mode = sqlguard.ModeReadOnly
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		channel:    channel,
		generator:  generator,
		summarizer: summarizer,
		builder:    nlsql.NewBuilder(cfg.Dialect),
		mode:       cfg.Mode,
		budget:     cfg.RetryBudget,
		logger:     logger,
	}
}

// RunResult is the ephemeral record of one end-to-end invocation.
type RunResult struct {
	RunID    string
	Question string
	SQL      string
	Attempts int
	Result   *toolproto.ResultSet
	ExecErr  *toolproto.ErrorDescriptor
	Answer   string
	State    State
	Elapsed  time.Duration
}

// Schema fetches the current schema snapshot through the session.
func (o *Orchestrator) Schema(ctx context.Context) (toolproto.SchemaSnapshot, error) {
	return o.channel.DescribeSchema(ctx)
}

// Execute validates and runs a caller-supplied statement, bypassing
// generation. Validation failures surface before anything touches the wire.
func (o *Orchestrator) Execute(ctx context.Context, statement string) (toolproto.ResultSet, error) {
	validated, err := sqlguard.Validate(statement, o.mode)
	if err != nil {
		var verr *sqlguard.ValidationError
		if errors.As(err, &verr) {
			return toolproto.ResultSet{}, toolproto.Errf(toolproto.KindValidation, "%s", verr.Reason)
		}
		return toolproto.ResultSet{}, err
	}
	return o.channel.ExecuteSQL(ctx, validated.Text)
}

// Translate runs only the generation half: question in, validated SQL out.
func (o *Orchestrator) Translate(ctx context.Context, question string) (string, int, error) {
	schema, err := o.channel.DescribeSchema(ctx)
	if err != nil {
		return "", 0, err
	}
	return o.generateSQL(ctx, question, schema)
}

// Run drives the full state machine for one question.
func (o *Orchestrator) Run(ctx context.Context, question string) (RunResult, error) {
	started := time.Now()
	run := RunResult{
		RunID:    uuid.NewString(),
		Question: question,
		State:    StateBuildingPrompt,
	}
	logger := o.logger.With("run_id", run.RunID)

	finish := func(state State) RunResult {
		run.State = state
		run.Elapsed = time.Since(started)
		observability.ObservePipelineRun(string(state), run.Elapsed)
		return run
	}

	schema, err := o.channel.DescribeSchema(ctx)
	if err != nil {
		logger.Error("schema fetch failed", "error", err)
		return finish(StateErrored), err
	}

	run.State = StateGenerating
	statement, attempts, err := o.generateSQL(ctx, question, schema)
	run.Attempts = attempts
	if err != nil {
		logger.Error("generation failed", "attempts", attempts, "error", err)
		return finish(StateErrored), err
	}
	run.SQL = statement
	logger.Info("statement generated", "attempts", attempts, "sql", statement)

	run.State = StateExecuting
	result, execErr := o.channel.ExecuteSQL(ctx, statement)

	// Session loss means the statement may never have reached the
	// database; that is a caller-level failure, not a summarizable one.
	if execErr != nil && toolproto.KindOf(execErr) == toolproto.KindSessionUnavailable {
		logger.Error("session lost during execution", "error", execErr)
		return finish(StateErrored), execErr
	}

	run.State = StateSummarizing
	if execErr != nil {
		var desc *toolproto.ErrorDescriptor
		if !errors.As(execErr, &desc) {
			desc = toolproto.Errf(toolproto.KindInternal, "%v", execErr)
		}
		run.ExecErr = desc
		run.Answer = summarize.SummarizeFailure(question, desc)
		logger.Warn("execution failed, answer summarizes the failure", "error_kind", desc.Kind)
		return finish(StateDone), nil
	}

	run.Result = &result
	answer, err := o.summarizer.SummarizeResult(ctx, question, result)
	if err != nil {
		logger.Error("summarization failed", "error", err)
		return finish(StateErrored), wrapGenerationFailure(err)
	}
	run.Answer = answer
	logger.Info("run complete", "rows", len(result.Rows))
	return finish(StateDone), nil
}

// generateSQL loops generation and validation within the retry budget. A
// budget of n allows n+1 generation attempts; each retry feeds the
// rejection reason back into the prompt.
func (o *Orchestrator) generateSQL(ctx context.Context, question string, schema toolproto.SchemaSnapshot) (string, int, error) {
	feedback := ""
	attempts := 0
	for attempts <= o.budget {
		attempts++
		observability.ObserveGenerationAttempt(attempts > 1)

		prompt := o.builder.Build(question, schema, feedback)
		raw, err := o.generator.Generate(ctx, prompt)
		if err != nil {
			return "", attempts, wrapGenerationFailure(err)
		}

		candidate := nlsql.StripFences(raw)
		if candidate == "" {
			feedback = "the response was empty; respond with a single SQL statement"
			continue
		}

		validated, err := sqlguard.Validate(candidate, o.mode)
		if err != nil {
			var verr *sqlguard.ValidationError
			if errors.As(err, &verr) {
				feedback = verr.Reason
				continue
			}
			return "", attempts, err
		}
		return validated.Text, attempts, nil
	}
	return "", attempts, toolproto.Errf(toolproto.KindGenerationPolicy,
		"no valid statement after %d attempts; last rejection: %s", attempts, feedback)
}

// wrapGenerationFailure collapses all generative-service failures into the
// single generation_service kind. The pipeline does not distinguish quota,
// auth and network causes.
func wrapGenerationFailure(err error) error {
	var desc *toolproto.ErrorDescriptor
	if errors.As(err, &desc) {
		return err
	}
	return toolproto.Errf(toolproto.KindGenerationService, "generation failed: %v", err)
}
