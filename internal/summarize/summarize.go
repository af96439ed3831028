// Package summarize turns a statement outcome into a natural-language
// answer. Successful result sets are compacted and handed to the generative
// service; failures are paraphrased by kind so raw driver text never
// reaches the user.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/sqlbridge/sqlbridge/internal/llm"
	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

type Summarizer struct {
	generator llm.Generator
	maxRows   int
}

func NewSummarizer(generator llm.Generator, maxRows int) *Summarizer {
	if maxRows <= 0 {
		maxRows = 10
	}
	return &Summarizer{generator: generator, maxRows: maxRows}
}

// SummarizeResult phrases a result set as a direct answer to the question.
func (s *Summarizer) SummarizeResult(ctx context.Context, question string, result toolproto.ResultSet) (string, error) {
	prompt := s.buildPrompt(question, result)
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summarize result: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func (s *Summarizer) buildPrompt(question string, result toolproto.ResultSet) string {
	var b strings.Builder
	b.WriteString("You are given the result of a database query. Answer the user's question directly and concisely using only this data.\n\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nQuery result:\n")
	b.WriteString(FormatRows(result, s.maxRows))
	b.WriteString("\nAnswer in one or two sentences. Include the relevant values from the result.")
	return b.String()
}

// FormatRows renders a compact pipe-separated table, truncated to maxRows.
func FormatRows(result toolproto.ResultSet, maxRows int) string {
	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteString("\n")

	shown := len(result.Rows)
	if maxRows > 0 && shown > maxRows {
		shown = maxRows
	}
	for _, row := range result.Rows[:shown] {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%v", v)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	if remaining := len(result.Rows) - shown; remaining > 0 {
		fmt.Fprintf(&b, "(%d more rows not shown)\n", remaining)
	}
	if len(result.Rows) == 0 {
		b.WriteString("(no rows)\n")
	}
	return b.String()
}

// SummarizeFailure produces a user-facing explanation of an execution
// failure. The text is keyed on the error kind only; the original message
// may carry connection strings or object names and is never echoed.
func SummarizeFailure(question string, desc *toolproto.ErrorDescriptor) string {
	kind := toolproto.KindInternal
	if desc != nil {
		kind = desc.Kind
	}
	switch kind {
	case toolproto.KindSyntax:
		return "I could not run a query for that question: the generated SQL was not valid for this database. Rephrasing the question may help."
	case toolproto.KindPermission:
		return "The database refused the query: the connected account does not have permission for that operation."
	case toolproto.KindTimeout:
		return "The query took too long and was stopped before it finished. A narrower question may complete in time."
	case toolproto.KindConnection:
		return "The database could not be reached while running the query. Please try again in a moment."
	case toolproto.KindValidation:
		return "That statement is not allowed under the current execution policy."
	default:
		return "The query could not be completed due to an internal problem."
	}
}
