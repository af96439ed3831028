// Package nlsql assembles the prompts that turn a user question into a
// single SQL statement, and cleans up what the model sends back. It never
// calls the generative service itself.
package nlsql

import (
	"fmt"
	"strings"

	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

// Builder produces deterministic generation prompts for one SQL dialect.
type Builder struct {
	dialect string
}

func NewBuilder(dialect string) *Builder {
	return &Builder{dialect: strings.ToLower(strings.TrimSpace(dialect))}
}

// Build renders the NL→SQL prompt from the question and the schema snapshot.
// feedback, when non-empty, is a prior validator rejection echoed back so the
// next attempt is informed.
func (b *Builder) Build(question string, schema toolproto.SchemaSnapshot, feedback string) string {
	var sb strings.Builder
	sb.WriteString("Convert the user's request into a single valid ")
	sb.WriteString(b.dialectName())
	sb.WriteString(" SQL statement.\n")
	sb.WriteString("Return ONLY the SQL statement: no markdown fences, no explanations, no comments.\n\n")
	sb.WriteString("Schema:\n")
	sb.WriteString(RenderSchema(schema))
	sb.WriteString("\nRules:\n")
	sb.WriteString("- Output exactly one statement, nothing else.\n")
	sb.WriteString("- Use only the tables and columns listed above.\n")
	for _, rule := range b.dialectRules() {
		sb.WriteString("- ")
		sb.WriteString(rule)
		sb.WriteString("\n")
	}
	if feedback != "" {
		sb.WriteString("\nYour previous attempt was rejected: ")
		sb.WriteString(feedback)
		sb.WriteString("\nProduce a corrected statement.\n")
	}
	sb.WriteString("\nUser request: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n")
	return sb.String()
}

// RenderSchema writes the snapshot as one "Table(col type, ...)" line per
// table, preserving introspection order.
func RenderSchema(schema toolproto.SchemaSnapshot) string {
	if len(schema.Tables) == 0 {
		return "(no tables visible)\n"
	}
	var sb strings.Builder
	for _, table := range schema.Tables {
		cols := make([]string, 0, len(table.Columns))
		for _, col := range table.Columns {
			cols = append(cols, fmt.Sprintf("%s %s", col.Name, col.Type))
		}
		sb.WriteString(table.Name)
		sb.WriteString("(")
		sb.WriteString(strings.Join(cols, ", "))
		sb.WriteString(")\n")
	}
	return sb.String()
}

func (b *Builder) dialectName() string {
	switch b.dialect {
	case "sqlserver":
		return "Microsoft SQL Server (T-SQL)"
	case "pgx", "postgres":
		return "PostgreSQL"
	case "sqlite":
		return "SQLite"
	case "duckdb":
		return "DuckDB"
	default:
		return "ANSI"
	}
}

func (b *Builder) dialectRules() []string {
	switch b.dialect {
	case "sqlserver":
		return []string{
			"Use SELECT TOP N instead of LIMIT N.",
			"Do not use SHOW TABLES; query INFORMATION_SCHEMA.TABLES instead.",
		}
	case "duckdb", "pgx", "postgres":
		return []string{"PostgreSQL-like syntax applies; LIMIT is available."}
	default:
		return nil
	}
}

// StripFences removes a surrounding markdown code block from model output.
func StripFences(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
