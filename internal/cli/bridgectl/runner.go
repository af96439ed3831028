// Package bridgectl implements the sqlbridgectl command. Unlike the HTTP
// front end, the CLI owns its own tool session: each invocation connects
// directly to the pipeline rather than going through the API server.
package bridgectl

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/sqlbridge/sqlbridge/internal/pipeline"
	"github.com/sqlbridge/sqlbridge/internal/summarize"
	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

// Service is the pipeline surface the CLI consumes.
type Service interface {
	Schema(ctx context.Context) (toolproto.SchemaSnapshot, error)
	Execute(ctx context.Context, statement string) (toolproto.ResultSet, error)
	Run(ctx context.Context, question string) (pipeline.RunResult, error)
}

type Options struct {
	Service Service
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

func Run(ctx context.Context, args []string, opts Options) int {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	stdin := opts.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	fs := flag.NewFlagSet("sqlbridgectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if opts.Service == nil {
		_, _ = fmt.Fprintln(stderr, "no pipeline service configured")
		return 1
	}

	command := "repl"
	if fs.NArg() > 0 {
		command = strings.TrimSpace(fs.Arg(0))
	}

	switch command {
	case "repl":
		return runREPL(ctx, opts.Service, stdin, stdout, stderr)
	case "schema":
		return runSchema(ctx, opts.Service, stdout, stderr)
	case "exec":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintln(stderr, "usage: sqlbridgectl exec <sql>")
			return 2
		}
		return runExec(ctx, opts.Service, strings.Join(fs.Args()[1:], " "), stdout, stderr)
	case "ask":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintln(stderr, "usage: sqlbridgectl ask <question>")
			return 2
		}
		return runAsk(ctx, opts.Service, strings.Join(fs.Args()[1:], " "), stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

func runSchema(ctx context.Context, svc Service, stdout, stderr io.Writer) int {
	snapshot, err := svc.Schema(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "schema fetch failed (%s): %v\n", toolproto.KindOf(err), err)
		return 1
	}
	printSchema(stdout, snapshot)
	return 0
}

func runExec(ctx context.Context, svc Service, statement string, stdout, stderr io.Writer) int {
	result, err := svc.Execute(ctx, statement)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "execution failed (%s): %v\n", toolproto.KindOf(err), err)
		return 1
	}
	_, _ = fmt.Fprint(stdout, summarize.FormatRows(result, 0))
	return 0
}

func runAsk(ctx context.Context, svc Service, question string, stdout, stderr io.Writer) int {
	run, err := svc.Run(ctx, question)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "run failed (%s): %v\n", toolproto.KindOf(err), err)
		return 1
	}
	printRun(stdout, run)
	return 0
}

// runREPL reads questions line by line. The schema is fetched once up
// front so the user sees what can be asked about; the pipeline re-fetches
// its own snapshot per run.
func runREPL(ctx context.Context, svc Service, stdin io.Reader, stdout, stderr io.Writer) int {
	snapshot, err := svc.Schema(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "schema fetch failed (%s): %v\n", toolproto.KindOf(err), err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "connected. Tables:")
	printSchema(stdout, snapshot)
	_, _ = fmt.Fprintln(stdout, "\nAsk a question, or type exit to quit.")

	scanner := bufio.NewScanner(stdin)
	for {
		_, _ = fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" || line == "q" {
			break
		}

		run, err := svc.Run(ctx, line)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "run failed (%s): %v\n", toolproto.KindOf(err), err)
			continue
		}
		printRun(stdout, run)
	}
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintf(stderr, "read input: %v\n", err)
		return 1
	}
	return 0
}

func printSchema(w io.Writer, snapshot toolproto.SchemaSnapshot) {
	for _, table := range snapshot.Tables {
		cols := make([]string, len(table.Columns))
		for i, col := range table.Columns {
			cols[i] = col.Name + " " + col.Type
		}
		_, _ = fmt.Fprintf(w, "  %s(%s)\n", table.Name, strings.Join(cols, ", "))
	}
}

func printRun(w io.Writer, run pipeline.RunResult) {
	_, _ = fmt.Fprintf(w, "sql: %s\n", run.SQL)
	if run.ExecErr != nil {
		_, _ = fmt.Fprintf(w, "error kind: %s\n", run.ExecErr.Kind)
	}
	if run.Result != nil {
		_, _ = fmt.Fprintf(w, "total rows: %d\n", len(run.Result.Rows))
		if len(run.Result.Rows) == 1 {
			row := run.Result.Row(0)
			for _, col := range run.Result.Columns {
				_, _ = fmt.Fprintf(w, "  %s = %v\n", col, row[col])
			}
		}
	}
	_, _ = fmt.Fprintf(w, "%s\n", run.Answer)
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: sqlbridgectl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  repl             interactive question loop (default)")
	_, _ = fmt.Fprintln(w, "  schema           print tables and columns")
	_, _ = fmt.Fprintln(w, "  exec <sql>       validate and execute one statement")
	_, _ = fmt.Fprintln(w, "  ask <question>   run the full question pipeline once")
}
