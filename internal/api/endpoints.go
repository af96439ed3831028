package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

type translateRequest struct {
	Question string `json:"question"`
}

type translateResponse struct {
	SQL      string `json:"sql"`
	Attempts int    `json:"attempts"`
}

type executeRequest struct {
	SQL string `json:"sql"`
}

type executeResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	RunID     string   `json:"run_id"`
	SQL       string   `json:"sql"`
	Answer    string   `json:"answer"`
	Attempts  int      `json:"attempts"`
	Columns   []string `json:"columns,omitempty"`
	Rows      [][]any  `json:"rows,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
	ElapsedMs int64    `json:"elapsed_ms"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	snapshot, err := deps.Pipeline.Schema(r.Context())
	if err != nil {
		writeKindError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var request translateRequest
	if !decodeBody(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, toolproto.KindValidation, "question is required", false)
		return
	}

	sql, attempts, err := deps.Pipeline.Translate(r.Context(), request.Question)
	if err != nil {
		writeKindError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{SQL: sql, Attempts: attempts})
}

func handleExecute(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var request executeRequest
	if !decodeBody(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, toolproto.KindValidation, "sql is required", false)
		return
	}

	result, err := deps.Pipeline.Execute(r.Context(), request.SQL)
	if err != nil {
		writeKindError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{Columns: result.Columns, Rows: result.Rows})
}

func handleRun(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var request queryRequest
	if !decodeBody(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, toolproto.KindValidation, "question is required", false)
		return
	}

	run, err := deps.Pipeline.Run(r.Context(), request.Question)
	if err != nil {
		writeKindError(r.Context(), w, err)
		return
	}

	if deps.Logger != nil {
		deps.Logger.InfoContext(r.Context(), "pipeline_run",
			slog.String("run_id", run.RunID),
			slog.String("state", string(run.State)),
			slog.Int("attempts", run.Attempts),
			slog.Duration("elapsed", run.Elapsed),
		)
	}

	response := queryResponse{
		RunID:     run.RunID,
		SQL:       run.SQL,
		Answer:    run.Answer,
		Attempts:  run.Attempts,
		ElapsedMs: run.Elapsed.Milliseconds(),
	}
	if run.Result != nil {
		response.Columns = run.Result.Columns
		response.Rows = run.Result.Rows
	}
	if run.ExecErr != nil {
		response.ErrorKind = run.ExecErr.Kind
	}
	writeJSON(w, http.StatusOK, response)
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, toolproto.KindValidation, "invalid request body", false)
		return false
	}
	return true
}
