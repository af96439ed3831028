package bridgectl

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sqlbridge/sqlbridge/internal/pipeline"
	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

type fakeService struct {
	schema    toolproto.SchemaSnapshot
	schemaErr error

	result  toolproto.ResultSet
	execErr error

	run       pipeline.RunResult
	runErr    error
	questions []string
}

func (f *fakeService) Schema(_ context.Context) (toolproto.SchemaSnapshot, error) {
	return f.schema, f.schemaErr
}

func (f *fakeService) Execute(_ context.Context, _ string) (toolproto.ResultSet, error) {
	return f.result, f.execErr
}

func (f *fakeService) Run(_ context.Context, question string) (pipeline.RunResult, error) {
	f.questions = append(f.questions, question)
	return f.run, f.runErr
}

func ordersSchema() toolproto.SchemaSnapshot {
	return toolproto.SchemaSnapshot{Tables: []toolproto.TableDef{{
		Name: "Orders",
		Columns: []toolproto.ColumnDef{
			{Name: "id", Type: "int"},
			{Name: "total", Type: "float"},
		},
	}}}
}

func TestSchemaCommand(t *testing.T) {
	svc := &fakeService{schema: ordersSchema()}
	var stdout, stderr bytes.Buffer

	code := Run(context.Background(), []string{"schema"}, Options{
		Service: svc,
		Stdout:  &stdout,
		Stderr:  &stderr,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Orders(id int, total float)") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestExecCommand(t *testing.T) {
	svc := &fakeService{result: toolproto.ResultSet{
		Columns: []string{"count"},
		Rows:    [][]any{{int64(42)}},
	}}
	var stdout bytes.Buffer

	code := Run(context.Background(), []string{"exec", "SELECT COUNT(*) FROM Orders"}, Options{
		Service: svc,
		Stdout:  &stdout,
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "count") || !strings.Contains(stdout.String(), "42") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestExecCommandReportsErrorKind(t *testing.T) {
	svc := &fakeService{execErr: toolproto.Errf(toolproto.KindValidation, "DROP is not allowed")}
	var stderr bytes.Buffer

	code := Run(context.Background(), []string{"exec", "DROP TABLE Orders"}, Options{
		Service: svc,
		Stderr:  &stderr,
	})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "validation") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestAskCommand(t *testing.T) {
	svc := &fakeService{run: pipeline.RunResult{
		SQL:    "SELECT COUNT(*) FROM Orders",
		Answer: "There are 42 orders.",
	}}
	var stdout bytes.Buffer

	code := Run(context.Background(), []string{"ask", "how", "many", "orders?"}, Options{
		Service: svc,
		Stdout:  &stdout,
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if len(svc.questions) != 1 || svc.questions[0] != "how many orders?" {
		t.Fatalf("questions = %v", svc.questions)
	}
	if !strings.Contains(stdout.String(), "There are 42 orders.") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestAskCommandReportsRowCount(t *testing.T) {
	svc := &fakeService{run: pipeline.RunResult{
		SQL: "SELECT id, total FROM Orders",
		Result: &toolproto.ResultSet{
			Columns: []string{"id", "total"},
			Rows:    [][]any{{1, 9.5}, {2, 12.0}, {3, 3.25}},
		},
		Answer: "Three orders were returned.",
	}}
	var stdout bytes.Buffer

	code := Run(context.Background(), []string{"ask", "list", "the", "orders"}, Options{
		Service: svc,
		Stdout:  &stdout,
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "total rows: 3") {
		t.Fatalf("stdout missing row count: %q", stdout.String())
	}
}

func TestAskCommandPrintsSingleRowValues(t *testing.T) {
	svc := &fakeService{run: pipeline.RunResult{
		SQL: "SELECT COUNT(*) AS count FROM Orders",
		Result: &toolproto.ResultSet{
			Columns: []string{"count"},
			Rows:    [][]any{{int64(42)}},
		},
		Answer: "There are 42 orders.",
	}}
	var stdout bytes.Buffer

	code := Run(context.Background(), []string{"ask", "how", "many", "orders?"}, Options{
		Service: svc,
		Stdout:  &stdout,
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	out := stdout.String()
	if !strings.Contains(out, "total rows: 1") {
		t.Fatalf("stdout missing row count: %q", out)
	}
	if !strings.Contains(out, "count = 42") {
		t.Fatalf("stdout missing single-row values: %q", out)
	}
}

func TestREPLAsksQuestionsAndExits(t *testing.T) {
	svc := &fakeService{
		schema: ordersSchema(),
		run: pipeline.RunResult{
			SQL:    "SELECT COUNT(*) FROM Orders",
			Answer: "There are 42 orders.",
		},
	}
	var stdout, stderr bytes.Buffer

	code := Run(context.Background(), nil, Options{
		Service: svc,
		Stdin:   strings.NewReader("how many orders?\n\nexit\nnever reached\n"),
		Stdout:  &stdout,
		Stderr:  &stderr,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if len(svc.questions) != 1 || svc.questions[0] != "how many orders?" {
		t.Fatalf("questions = %v", svc.questions)
	}
	if !strings.Contains(stdout.String(), "Orders(id int, total float)") {
		t.Fatalf("schema missing from banner: %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), "There are 42 orders.") {
		t.Fatalf("answer missing: %q", stdout.String())
	}
}

func TestREPLSurvivesRunFailure(t *testing.T) {
	svc := &fakeService{
		schema: ordersSchema(),
		runErr: toolproto.Errf(toolproto.KindGenerationService, "quota exceeded"),
	}
	var stdout, stderr bytes.Buffer

	code := Run(context.Background(), []string{"repl"}, Options{
		Service: svc,
		Stdin:   strings.NewReader("first question\nsecond question\nquit\n"),
		Stdout:  &stdout,
		Stderr:  &stderr,
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if len(svc.questions) != 2 {
		t.Fatalf("questions = %v, want both despite failures", svc.questions)
	}
	if !strings.Contains(stderr.String(), "generation_service") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"bogus"}, Options{
		Service: &fakeService{},
		Stderr:  &stderr,
	})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "usage:") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}
