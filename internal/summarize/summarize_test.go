package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

type fakeGenerator struct {
	lastPrompt string
	text       string
	err        error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.text, f.err
}

func TestSummarizeResultIncludesHeaderAndRows(t *testing.T) {
	gen := &fakeGenerator{text: "There are 42 orders."}
	s := NewSummarizer(gen, 10)

	result := toolproto.ResultSet{
		Columns: []string{"count"},
		Rows:    [][]any{{int64(42)}},
	}
	answer, err := s.SummarizeResult(context.Background(), "how many rows are in Orders?", result)
	if err != nil {
		t.Fatalf("SummarizeResult() error = %v", err)
	}
	if answer != "There are 42 orders." {
		t.Fatalf("answer = %q", answer)
	}
	if !strings.Contains(gen.lastPrompt, "how many rows are in Orders?") {
		t.Fatalf("prompt missing question: %q", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, "count") || !strings.Contains(gen.lastPrompt, "42") {
		t.Fatalf("prompt missing result data: %q", gen.lastPrompt)
	}
}

func TestSummarizeResultPropagatesGeneratorFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	s := NewSummarizer(gen, 10)

	_, err := s.SummarizeResult(context.Background(), "q", toolproto.ResultSet{Columns: []string{"a"}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFormatRowsTruncates(t *testing.T) {
	result := toolproto.ResultSet{Columns: []string{"id"}}
	for i := 0; i < 25; i++ {
		result.Rows = append(result.Rows, []any{i})
	}

	text := FormatRows(result, 10)
	if !strings.Contains(text, "(15 more rows not shown)") {
		t.Fatalf("missing truncation marker:\n%s", text)
	}
	if strings.Contains(text, "\n14\n") {
		t.Fatalf("row beyond the limit leaked:\n%s", text)
	}
}

func TestFormatRowsEmptyResult(t *testing.T) {
	text := FormatRows(toolproto.ResultSet{Columns: []string{"id", "name"}}, 10)
	if !strings.HasPrefix(text, "id | name\n") {
		t.Fatalf("header missing:\n%s", text)
	}
	if !strings.Contains(text, "(no rows)") {
		t.Fatalf("empty marker missing:\n%s", text)
	}
}

func TestSummarizeFailureNeverLeaksRawMessage(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{toolproto.KindSyntax, "not valid"},
		{toolproto.KindPermission, "permission"},
		{toolproto.KindTimeout, "too long"},
		{toolproto.KindConnection, "could not be reached"},
		{toolproto.KindValidation, "not allowed"},
		{toolproto.KindInternal, "internal problem"},
	}
	const secret = "Server=db.internal;Password=hunter2"

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			desc := toolproto.Errf(tt.kind, "failure at %s", secret)
			answer := SummarizeFailure("q", desc)
			if strings.Contains(answer, secret) || strings.Contains(answer, "hunter2") {
				t.Fatalf("raw message leaked: %q", answer)
			}
			if !strings.Contains(strings.ToLower(answer), tt.want) {
				t.Fatalf("answer = %q, want substring %q", answer, tt.want)
			}
		})
	}

	if answer := SummarizeFailure("q", nil); answer == "" {
		t.Fatal("nil descriptor produced empty answer")
	}
}
