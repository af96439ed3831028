package observability

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const traceHeader = "X-Trace-ID"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlbridge_http_requests_total",
			Help: "Completed HTTP requests by matched route.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlbridge_http_request_duration_seconds",
			Help:    "HTTP request latency by matched route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDurationSeconds)
}

// Instrument wraps a handler with the request observability pass: it
// assigns or propagates the trace ID, measures the request once, and emits
// one log line plus one set of metric observations when it completes.
// Metrics are labelled with the mux route pattern rather than the raw URL
// path so stray request paths cannot inflate label cardinality.
func Instrument(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(traceHeader)
			if traceID == "" {
				traceID = uuid.NewString()
			}
			r = r.WithContext(ContextWithTraceID(r.Context(), traceID))
			w.Header().Set(traceHeader, traceID)

			meter := &responseMeter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(meter, r)
			elapsed := time.Since(start)

			// The mux fills in Pattern while routing; requests that never
			// matched a route share one label value.
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(meter.status)).Inc()
			httpRequestDurationSeconds.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

			if logger != nil {
				logger.LogAttrs(r.Context(), slog.LevelInfo, "http_request",
					slog.String("method", r.Method),
					slog.String("route", route),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					slog.Int("status", meter.status),
					slog.Int("bytes", meter.bytes),
					slog.Duration("elapsed", elapsed),
				)
			}
		})
	}
}

type responseMeter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeter) WriteHeader(status int) {
	m.status = status
	m.ResponseWriter.WriteHeader(status)
}

func (m *responseMeter) Write(body []byte) (int, error) {
	n, err := m.ResponseWriter.Write(body)
	m.bytes += n
	return n, err
}
