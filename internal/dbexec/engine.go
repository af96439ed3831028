package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

// Engine executes statements and introspects schema on a single database
// handle. It assumes statements have already been validated; the only
// structural check it repeats is the single-statement guard, because the
// engine is the last line before the driver.
type Engine struct {
	db            *sql.DB
	driver        string
	statementWait time.Duration
}

func NewEngine(db *sql.DB, driver string, statementWait time.Duration) *Engine {
	if statementWait <= 0 {
		statementWait = 30 * time.Second
	}
	return &Engine{db: db, driver: driver, statementWait: statementWait}
}

const introspectQuery = `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema NOT IN ('information_schema', 'pg_catalog', 'sys')
ORDER BY table_name, ordinal_position`

const sqliteTablesQuery = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`

// DescribeSchema enumerates user tables and their columns in a stable
// order. The snapshot reflects a single point in time; callers refresh by
// calling again, never by patching a previous snapshot.
func (e *Engine) DescribeSchema(ctx context.Context) (toolproto.SchemaSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, e.statementWait)
	defer cancel()

	if e.driver == "sqlite" {
		return e.describeSQLite(ctx)
	}

	rows, err := e.db.QueryContext(ctx, introspectQuery)
	if err != nil {
		return toolproto.SchemaSnapshot{}, Classify(err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot toolproto.SchemaSnapshot
	var current *toolproto.TableDef
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return toolproto.SchemaSnapshot{}, Classify(err)
		}
		if current == nil || current.Name != table {
			snapshot.Tables = append(snapshot.Tables, toolproto.TableDef{Name: table})
			current = &snapshot.Tables[len(snapshot.Tables)-1]
		}
		current.Columns = append(current.Columns, toolproto.ColumnDef{Name: column, Type: dataType})
	}
	if err := rows.Err(); err != nil {
		return toolproto.SchemaSnapshot{}, Classify(err)
	}
	return snapshot, nil
}

// sqlite has no information_schema; table_info is queried per table.
func (e *Engine) describeSQLite(ctx context.Context) (toolproto.SchemaSnapshot, error) {
	rows, err := e.db.QueryContext(ctx, sqliteTablesQuery)
	if err != nil {
		return toolproto.SchemaSnapshot{}, Classify(err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return toolproto.SchemaSnapshot{}, Classify(err)
		}
		names = append(names, name)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return toolproto.SchemaSnapshot{}, Classify(err)
	}

	var snapshot toolproto.SchemaSnapshot
	for _, name := range names {
		cols, err := e.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
		if err != nil {
			return toolproto.SchemaSnapshot{}, Classify(err)
		}
		table := toolproto.TableDef{Name: name}
		for cols.Next() {
			var cid int
			var colName, colType string
			var notNull, pk int
			var dflt sql.NullString
			if err := cols.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
				_ = cols.Close()
				return toolproto.SchemaSnapshot{}, Classify(err)
			}
			table.Columns = append(table.Columns, toolproto.ColumnDef{Name: colName, Type: colType})
		}
		_ = cols.Close()
		if err := cols.Err(); err != nil {
			return toolproto.SchemaSnapshot{}, Classify(err)
		}
		snapshot.Tables = append(snapshot.Tables, table)
	}
	return snapshot, nil
}

// Execute runs exactly one statement. Row-returning statements produce a
// positional result set; everything else reports rows_affected. Values are
// normalized so the result survives a JSON round trip unchanged in shape.
func (e *Engine) Execute(ctx context.Context, statement string) (toolproto.ResultSet, error) {
	trimmed := strings.TrimSpace(statement)
	trimmed = strings.TrimRight(trimmed, ";")
	if trimmed == "" {
		return toolproto.ResultSet{}, toolproto.Errf(toolproto.KindSyntax, "empty statement")
	}
	if strings.Contains(trimmed, ";") {
		return toolproto.ResultSet{}, toolproto.Errf(toolproto.KindSyntax, "multiple statements are not allowed")
	}

	ctx, cancel := context.WithTimeout(ctx, e.statementWait)
	defer cancel()

	if returnsRows(trimmed) {
		return e.query(ctx, trimmed)
	}
	return e.exec(ctx, trimmed)
}

func returnsRows(statement string) bool {
	first := strings.ToUpper(firstToken(statement))
	return first == "SELECT" || first == "WITH" || first == "SHOW" || first == "EXPLAIN" || first == "PRAGMA"
}

func firstToken(s string) string {
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' {
			return s[:i]
		}
	}
	return s
}

func (e *Engine) query(ctx context.Context, statement string) (toolproto.ResultSet, error) {
	rows, err := e.db.QueryContext(ctx, statement)
	if err != nil {
		return toolproto.ResultSet{}, Classify(err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return toolproto.ResultSet{}, Classify(err)
	}

	result := toolproto.ResultSet{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return toolproto.ResultSet{}, Classify(err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return toolproto.ResultSet{}, Classify(err)
	}
	return result, nil
}

func (e *Engine) exec(ctx context.Context, statement string) (toolproto.ResultSet, error) {
	res, err := e.db.ExecContext(ctx, statement)
	if err != nil {
		return toolproto.ResultSet{}, Classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return toolproto.ResultSet{
		Columns: []string{"rows_affected"},
		Rows:    [][]any{{affected}},
	}, nil
}

func normalizeValue(v any) any {
	switch value := v.(type) {
	case []byte:
		return string(value)
	case time.Time:
		return value.Format(time.RFC3339Nano)
	default:
		return v
	}
}
