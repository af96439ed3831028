// Package session maintains the channel between the orchestrator and the
// tool host process. The channel owns session lifecycle: spawning the host,
// the initialize handshake, liveness checks, serialization of calls, and
// transparent re-acquisition after the host dies.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sqlbridge/sqlbridge/internal/observability"
	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

// ErrUnavailable reports that no usable tool session could be established.
// It carries the session_unavailable kind so HTTP and pipeline layers can
// classify it without a dedicated check.
var ErrUnavailable = &toolproto.ErrorDescriptor{
	Kind:    toolproto.KindSessionUnavailable,
	Message: "tool session is unavailable",
}

const (
	clientName    = "sqlbridge"
	clientVersion = "1.0.0"

	pingTimeout = 2 * time.Second
)

// ToolClient is the transport surface the channel drives. The stdio client
// and the in-process client used by tests both satisfy it.
type ToolClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// DialFunc produces a started, not-yet-initialized client.
type DialFunc func(ctx context.Context) (ToolClient, error)

// StdioDialer spawns the tool host command as a child process and connects
// over its stdin/stdout.
func StdioDialer(command string, env []string, args ...string) DialFunc {
	return func(ctx context.Context) (ToolClient, error) {
		c, err := client.NewStdioMCPClient(command, env, args...)
		if err != nil {
			return nil, fmt.Errorf("spawn tool host: %w", err)
		}
		return c, nil
	}
}

type Options struct {
	HandshakeAttempts int
	CallTimeout       time.Duration
	Logger            *slog.Logger
}

// Channel serializes tool calls over a single session. The host owns one
// database connection, so concurrent requests queue on a single-slot
// semaphore rather than interleaving on the wire. Waiting honors the
// caller's context, so a short-deadline caller gives up instead of sitting
// behind a slow in-flight call.
type Channel struct {
	sem      chan struct{}
	dial     DialFunc
	client   ToolClient
	attached atomic.Bool

	handshakeAttempts int
	callTimeout       time.Duration
	logger            *slog.Logger
}

func NewChannel(dial DialFunc, opts Options) *Channel {
	attempts := opts.HandshakeAttempts
	if attempts <= 0 {
		attempts = 3
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		sem:               make(chan struct{}, 1),
		dial:              dial,
		handshakeAttempts: attempts,
		callTimeout:       timeout,
		logger:            logger,
	}
}

// Acquire ensures a live session exists, spawning and handshaking with the
// host if needed. It is idempotent: a healthy session is reused as is.
func (c *Channel) Acquire(ctx context.Context) error {
	if err := c.lock(ctx); err != nil {
		return err
	}
	defer c.unlock()
	return c.acquireLocked(ctx)
}

// Ready reports whether the channel can serve calls. A session that is busy
// with an in-flight call counts as ready; only a channel holding no live
// session attempts an acquire, bounded by ctx.
func (c *Channel) Ready(ctx context.Context) error {
	if c.attached.Load() {
		return nil
	}
	return c.Acquire(ctx)
}

// Attached reports whether a handshaken session is currently held. It is a
// snapshot and never blocks on in-flight calls.
func (c *Channel) Attached() bool {
	return c.attached.Load()
}

func (c *Channel) lock(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return toolproto.Errf(toolproto.KindTimeout, "timed out waiting for the tool session")
		}
		return fmt.Errorf("waiting for tool session: %w", ctx.Err())
	}
}

func (c *Channel) unlock() {
	<-c.sem
}

func (c *Channel) acquireLocked(ctx context.Context) error {
	if c.client != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := c.client.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		c.logger.Warn("tool session failed liveness check, re-acquiring", "error", err)
		c.teardownLocked()
		observability.ObserveSessionReacquire()
	}

	var lastErr error
	for attempt := 1; attempt <= c.handshakeAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		toolClient, err := c.dial(ctx)
		if err != nil {
			lastErr = err
			c.logger.Warn("tool host dial failed", "attempt", attempt, "error", err)
			continue
		}

		initReq := mcp.InitializeRequest{}
		initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}

		initCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		_, err = toolClient.Initialize(initCtx, initReq)
		cancel()
		if err != nil {
			lastErr = err
			_ = toolClient.Close()
			c.logger.Warn("tool host handshake failed", "attempt", attempt, "error", err)
			continue
		}

		c.client = toolClient
		c.attached.Store(true)
		c.logger.Info("tool session established", "attempt", attempt)
		return nil
	}
	return fmt.Errorf("%w: handshake failed after %d attempts: %v", ErrUnavailable, c.handshakeAttempts, lastErr)
}

func (c *Channel) teardownLocked() {
	if c.client != nil {
		_ = c.client.Close()
		c.client = nil
	}
	c.attached.Store(false)
}

// Close shuts down the session. The channel remains usable: the next call
// acquires a fresh session.
func (c *Channel) Close() error {
	if err := c.lock(context.Background()); err != nil {
		return err
	}
	defer c.unlock()
	c.teardownLocked()
	return nil
}

// DescribeSchema fetches the current schema snapshot from the host.
func (c *Channel) DescribeSchema(ctx context.Context) (toolproto.SchemaSnapshot, error) {
	resp, err := c.call(ctx, toolproto.ToolDescribeSchema, nil)
	if err != nil {
		return toolproto.SchemaSnapshot{}, err
	}
	if resp.Err != nil {
		return toolproto.SchemaSnapshot{}, resp.Err
	}
	if resp.Schema == nil {
		return toolproto.SchemaSnapshot{}, toolproto.Errf(toolproto.KindInternal, "tool host returned no schema payload")
	}
	return *resp.Schema, nil
}

// ExecuteSQL runs a single validated statement on the host.
func (c *Channel) ExecuteSQL(ctx context.Context, statement string) (toolproto.ResultSet, error) {
	resp, err := c.call(ctx, toolproto.ToolExecuteSQL, map[string]any{
		toolproto.ArgStatement: statement,
	})
	if err != nil {
		return toolproto.ResultSet{}, err
	}
	if resp.Err != nil {
		return toolproto.ResultSet{}, resp.Err
	}
	if resp.Result == nil {
		return toolproto.ResultSet{}, toolproto.Errf(toolproto.KindInternal, "tool host returned no result payload")
	}
	return *resp.Result, nil
}

func (c *Channel) call(ctx context.Context, tool string, args map[string]any) (toolproto.Response, error) {
	if err := c.lock(ctx); err != nil {
		return toolproto.Response{}, err
	}
	defer c.unlock()

	if err := c.acquireLocked(ctx); err != nil {
		return toolproto.Response{}, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	started := time.Now()
	result, err := c.client.CallTool(callCtx, req)
	observability.ObserveToolCall(tool, time.Since(started))
	if err != nil {
		// A canceled parent context is the caller's doing; the session is
		// presumed healthy. Anything else is a transport failure and the
		// session is torn down so the next call re-acquires.
		if ctx.Err() != nil {
			return toolproto.Response{}, fmt.Errorf("call %s: %w", tool, ctx.Err())
		}
		c.teardownLocked()
		return toolproto.Response{}, fmt.Errorf("%w: call %s failed: %v", ErrUnavailable, tool, err)
	}

	text, err := toolText(result)
	if err != nil {
		return toolproto.Response{}, err
	}
	resp, err := toolproto.Decode(text)
	if err != nil {
		return toolproto.Response{}, toolproto.Errf(toolproto.KindInternal, "malformed tool payload: %v", err)
	}
	return resp, nil
}

func toolText(result *mcp.CallToolResult) (string, error) {
	for _, content := range result.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			return text.Text, nil
		}
	}
	return "", toolproto.Errf(toolproto.KindInternal, "tool result carried no text content")
}
