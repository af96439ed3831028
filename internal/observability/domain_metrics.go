package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlbridge_pipeline_runs_total",
			Help: "Total number of pipeline runs by terminal outcome.",
		},
		[]string{"outcome"},
	)
	pipelineRunDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlbridge_pipeline_run_duration_seconds",
			Help:    "End-to-end pipeline run latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	generationAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlbridge_generation_attempts_total",
			Help: "Total number of SQL generation attempts, including retries.",
		},
	)
	generationRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlbridge_generation_retries_total",
			Help: "Total number of generation retries after validator rejection.",
		},
	)
	toolCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlbridge_tool_call_duration_seconds",
			Help:    "Tool host call latency by tool name.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)
	sessionReacquireTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlbridge_session_reacquire_total",
			Help: "Total number of tool host session (re)acquisitions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		pipelineRunsTotal,
		pipelineRunDurationSeconds,
		generationAttemptsTotal,
		generationRetriesTotal,
		toolCallDurationSeconds,
		sessionReacquireTotal,
	)
}

func ObservePipelineRun(outcome string, elapsed time.Duration) {
	pipelineRunsTotal.WithLabelValues(outcome).Inc()
	pipelineRunDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveGenerationAttempt(retry bool) {
	generationAttemptsTotal.Inc()
	if retry {
		generationRetriesTotal.Inc()
	}
}

func ObserveToolCall(tool string, elapsed time.Duration) {
	toolCallDurationSeconds.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func ObserveSessionReacquire() {
	sessionReacquireTotal.Inc()
}
