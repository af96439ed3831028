// Package toolproto defines the request/response contract between the
// orchestrator side of sqlbridge and the tool host process. Payloads are
// carried as a JSON envelope inside MCP tool results.
package toolproto

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	ToolDescribeSchema = "describe_schema"
	ToolExecuteSQL     = "execute_sql"

	ArgStatement = "statement"
)

// Error kinds, stable across the wire and the HTTP surface.
const (
	KindConnection         = "connection"
	KindPermission         = "permission"
	KindSyntax             = "syntax"
	KindTimeout            = "timeout"
	KindSessionUnavailable = "session_unavailable"
	KindValidation         = "validation"
	KindGenerationPolicy   = "generation_policy"
	KindGenerationService  = "generation_service"
	KindInternal           = "internal"
)

type ColumnDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type TableDef struct {
	Name    string      `json:"name"`
	Columns []ColumnDef `json:"columns"`
}

// SchemaSnapshot is a point-in-time enumeration of tables and columns.
// Order matters: tables and columns appear in introspection order and are
// never mutated in place, only replaced wholesale on refresh.
type SchemaSnapshot struct {
	Tables []TableDef `json:"tables"`
}

// ResultSet holds one statement's full result. Columns preserves the
// select-list order; Rows[i] is positionally aligned with Columns.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Row returns row i as a column-name keyed mapping.
func (r ResultSet) Row(i int) map[string]any {
	row := make(map[string]any, len(r.Columns))
	for j, name := range r.Columns {
		if j < len(r.Rows[i]) {
			row[name] = r.Rows[i][j]
		}
	}
	return row
}

// ErrorDescriptor is the machine-readable failure half of a tool response.
// It satisfies error so callers can wrap and classify with errors.As.
type ErrorDescriptor struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *ErrorDescriptor) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func Errf(kind, format string, args ...any) *ErrorDescriptor {
	return &ErrorDescriptor{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind from err, or KindInternal when err carries
// no descriptor.
func KindOf(err error) string {
	var desc *ErrorDescriptor
	if errors.As(err, &desc) {
		return desc.Kind
	}
	return KindInternal
}

// Response is the envelope serialized into an MCP tool result. A response
// carries exactly one of Schema, Result or Err: execution never returns a
// schema and introspection never returns rows.
type Response struct {
	Schema *SchemaSnapshot  `json:"schema,omitempty"`
	Result *ResultSet       `json:"result,omitempty"`
	Err    *ErrorDescriptor `json:"error,omitempty"`
}

func EncodeSchema(snapshot SchemaSnapshot) (string, error) {
	return encode(Response{Schema: &snapshot})
}

func EncodeResult(result ResultSet) (string, error) {
	return encode(Response{Result: &result})
}

func EncodeError(desc *ErrorDescriptor) (string, error) {
	return encode(Response{Err: desc})
}

func encode(resp Response) (string, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("encode tool response: %w", err)
	}
	return string(raw), nil
}

func Decode(text string) (Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return Response{}, fmt.Errorf("decode tool response: %w", err)
	}
	return resp, nil
}
