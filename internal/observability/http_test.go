package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sqlbridge/sqlbridge/internal/config"
)

func instrumentedMux(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		if TraceIDFromContext(r.Context()) == "" {
			t.Error("request context carries no trace id")
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return Instrument(nil)(mux)
}

func TestInstrumentPreservesIncomingTraceID(t *testing.T) {
	h := instrumentedMux(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/widgets/7", nil)
	req.Header.Set(traceHeader, "trace-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(traceHeader); got != "trace-1" {
		t.Fatalf("trace header = %q", got)
	}
}

func TestInstrumentGeneratesTraceID(t *testing.T) {
	h := instrumentedMux(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/widgets/7", nil))

	if rr.Header().Get(traceHeader) == "" {
		t.Fatal("expected X-Trace-ID header")
	}
}

func TestInstrumentLabelsMetricsByRoutePattern(t *testing.T) {
	h := instrumentedMux(t)

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "GET /v1/widgets/{id}", "204")
	before := testutil.ToFloat64(counter)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/widgets/7", nil))

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("route-pattern counter = %v, want %v", got, before+1)
	}
}

func TestInstrumentLabelsUnmatchedRequests(t *testing.T) {
	h := Instrument(nil)(http.NewServeMux())

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before := testutil.ToFloat64(counter)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope/anything", nil))

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("unmatched counter = %v, want %v", got, before+1)
	}
}

func TestTraceIDContextHelpers(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc123")
	if got := TraceIDFromContext(ctx); got != "abc123" {
		t.Fatalf("TraceIDFromContext() = %q", got)
	}
}

func TestLoggerAddsTraceIDFromContext(t *testing.T) {
	cfg, err := config.Load("sqlbridge-api", func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	var buf bytes.Buffer
	logger := NewLogger(cfg, &buf)

	ctx := ContextWithTraceID(context.Background(), "trace-42")
	logger.InfoContext(ctx, "hello")

	if !strings.Contains(buf.String(), "trace-42") {
		t.Fatalf("log output missing trace id: %s", buf.String())
	}
}
