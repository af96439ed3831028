package nlsql

import (
	"strings"
	"testing"

	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

func ordersSchema() toolproto.SchemaSnapshot {
	return toolproto.SchemaSnapshot{Tables: []toolproto.TableDef{
		{Name: "Orders", Columns: []toolproto.ColumnDef{
			{Name: "id", Type: "int"},
			{Name: "total", Type: "float"},
		}},
		{Name: "Customers", Columns: []toolproto.ColumnDef{
			{Name: "id", Type: "int"},
			{Name: "name", Type: "varchar"},
		}},
	}}
}

func TestRenderSchemaPreservesOrder(t *testing.T) {
	got := RenderSchema(ordersSchema())
	want := "Orders(id int, total float)\nCustomers(id int, name varchar)\n"
	if got != want {
		t.Fatalf("RenderSchema() = %q, want %q", got, want)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	b := NewBuilder("sqlserver")
	first := b.Build("how many rows are in Orders?", ordersSchema(), "")
	second := b.Build("how many rows are in Orders?", ordersSchema(), "")
	if first != second {
		t.Fatal("Build() should be deterministic for identical inputs")
	}
}

func TestBuildIncludesSchemaAndQuestion(t *testing.T) {
	prompt := NewBuilder("sqlserver").Build("how many rows are in Orders?", ordersSchema(), "")
	if !strings.Contains(prompt, "Orders(id int, total float)") {
		t.Fatalf("prompt missing schema: %q", prompt)
	}
	if !strings.Contains(prompt, "how many rows are in Orders?") {
		t.Fatalf("prompt missing question: %q", prompt)
	}
	if !strings.Contains(prompt, "SELECT TOP N") {
		t.Fatalf("prompt missing sqlserver dialect rule: %q", prompt)
	}
}

func TestBuildAppendsFeedbackOnRetry(t *testing.T) {
	b := NewBuilder("pgx")
	plain := b.Build("q", ordersSchema(), "")
	retried := b.Build("q", ordersSchema(), "statement type DROP is not allowed")
	if strings.Contains(plain, "rejected") {
		t.Fatal("feedback should be absent on first attempt")
	}
	if !strings.Contains(retried, "statement type DROP is not allowed") {
		t.Fatalf("retry prompt missing feedback: %q", retried)
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"```sql\nSELECT 1;\n```", "SELECT 1;"},
		{"```\nSELECT 1\n```", "SELECT 1"},
		{"SELECT 1", "SELECT 1"},
		{"  SELECT 1  ", "SELECT 1"},
	}
	for _, tc := range cases {
		if got := StripFences(tc.input); got != tc.want {
			t.Fatalf("StripFences(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
