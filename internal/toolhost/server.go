// Package toolhost exposes the database engine over MCP. The server is
// meant to run as a child process speaking the stdio transport: stdout is
// reserved for protocol frames, so all logging goes to stderr.
package toolhost

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sqlbridge/sqlbridge/internal/observability"
	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

const (
	serverName    = "sqlbridge-toolhost"
	serverVersion = "1.0.0"
)

// SchemaExecutor is the slice of the database engine the tool host needs.
type SchemaExecutor interface {
	DescribeSchema(ctx context.Context) (toolproto.SchemaSnapshot, error)
	Execute(ctx context.Context, statement string) (toolproto.ResultSet, error)
}

// NewServer builds an MCP server with the two database tools registered.
// Tool failures are carried inside the result payload, never as protocol
// errors, so the channel on the other side can classify them.
func NewServer(engine SchemaExecutor, logger *slog.Logger) *server.MCPServer {
	srv := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)

	describeTool := mcp.NewTool(toolproto.ToolDescribeSchema,
		mcp.WithDescription("Enumerate the tables and columns of the connected database."),
	)
	srv.AddTool(describeTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		started := time.Now()
		snapshot, err := engine.DescribeSchema(ctx)
		observability.ObserveToolCall(toolproto.ToolDescribeSchema, time.Since(started))
		if err != nil {
			logger.Error("schema introspection failed", "error", err)
			return errorResult(err)
		}
		logger.Info("schema described", "tables", len(snapshot.Tables), "duration_ms", time.Since(started).Milliseconds())
		return textResult(toolproto.EncodeSchema(snapshot))
	})

	executeTool := mcp.NewTool(toolproto.ToolExecuteSQL,
		mcp.WithDescription("Execute a single SQL statement against the connected database."),
		mcp.WithString(toolproto.ArgStatement, mcp.Required(),
			mcp.Description("The SQL statement to execute. Exactly one statement, no trailing commands."),
		),
	)
	srv.AddTool(executeTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		statement, err := req.RequireString(toolproto.ArgStatement)
		if err != nil {
			return errorResult(toolproto.Errf(toolproto.KindValidation, "statement argument is required"))
		}
		started := time.Now()
		result, execErr := engine.Execute(ctx, statement)
		observability.ObserveToolCall(toolproto.ToolExecuteSQL, time.Since(started))
		if execErr != nil {
			logger.Error("statement failed", "error", execErr, "duration_ms", time.Since(started).Milliseconds())
			return errorResult(execErr)
		}
		logger.Info("statement executed", "columns", len(result.Columns), "rows", len(result.Rows), "duration_ms", time.Since(started).Milliseconds())
		return textResult(toolproto.EncodeResult(result))
	})

	return srv
}

// ServeStdio runs the server over stdin/stdout until the client hangs up.
func ServeStdio(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}

func textResult(payload string, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(payload), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	var desc *toolproto.ErrorDescriptor
	if !errors.As(err, &desc) {
		desc = toolproto.Errf(toolproto.KindInternal, "%v", err)
	}
	payload, encodeErr := toolproto.EncodeError(desc)
	if encodeErr != nil {
		return nil, encodeErr
	}
	return mcp.NewToolResultText(payload), nil
}
