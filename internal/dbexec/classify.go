package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

// Classify maps a driver error onto a stable error kind. Driver-specific
// codes are checked first; the string heuristics at the end catch drivers
// that expose no structured error type.
func Classify(err error) *toolproto.ErrorDescriptor {
	if err == nil {
		return nil
	}

	var desc *toolproto.ErrorDescriptor
	if errors.As(err, &desc) {
		return desc
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return toolproto.Errf(toolproto.KindTimeout, "statement exceeded the execution deadline")
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return toolproto.Errf(toolproto.KindConnection, "database connection is no longer usable: %v", err)
	}

	var sqlServerErr mssql.Error
	if errors.As(err, &sqlServerErr) {
		return toolproto.Errf(classifySQLServer(sqlServerErr.Number), "%s", sqlServerErr.Message)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return toolproto.Errf(classifyPostgres(pgErr.Code), "%s", pgErr.Message)
	}

	return toolproto.Errf(classifyByMessage(err.Error()), "%v", err)
}

func classifySQLServer(number int32) string {
	switch number {
	case 102, 105, 156, 207, 208, 2812, 4145:
		// incorrect syntax, unclosed quote, bad keyword, invalid column,
		// invalid object, missing procedure, non-boolean condition
		return toolproto.KindSyntax
	case 229, 230, 262, 300, 297, 18456:
		// object/column/statement permission denied, login failed
		return toolproto.KindPermission
	case -2:
		return toolproto.KindTimeout
	default:
		return toolproto.KindConnection
	}
}

func classifyPostgres(code string) string {
	switch {
	case code == "57014":
		return toolproto.KindTimeout
	case code == "42501" || strings.HasPrefix(code, "28"):
		return toolproto.KindPermission
	case strings.HasPrefix(code, "42"):
		return toolproto.KindSyntax
	case strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57"):
		return toolproto.KindConnection
	default:
		return toolproto.KindConnection
	}
}

func classifyByMessage(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "syntax") ||
		strings.Contains(lower, "no such table") ||
		strings.Contains(lower, "no such column") ||
		strings.Contains(lower, "does not exist") ||
		strings.Contains(lower, "parser error") ||
		strings.Contains(lower, "binder error"):
		return toolproto.KindSyntax
	case strings.Contains(lower, "permission") ||
		strings.Contains(lower, "denied") ||
		strings.Contains(lower, "authentication") ||
		strings.Contains(lower, "readonly") ||
		strings.Contains(lower, "read-only"):
		return toolproto.KindPermission
	case strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline") ||
		strings.Contains(lower, "canceled"):
		return toolproto.KindTimeout
	default:
		return toolproto.KindConnection
	}
}
