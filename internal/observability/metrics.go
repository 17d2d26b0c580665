package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce       sync.Once
	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec
	runsTotal          *prometheus.CounterVec
	runTasksTotal      *prometheus.CounterVec
	runDurationSeconds *prometheus.HistogramVec
	assignmentWrites   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the run executor.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "judge_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_runs_total",
			Help: "Evaluation runs by terminal status.",
		}, []string{"status"})

		runTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_run_tasks_total",
			Help: "Scorer attempts by outcome.",
		}, []string{"outcome"})

		runDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "judge_run_duration_seconds",
			Help:    "Wall time of evaluation runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"status"})

		assignmentWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_assignment_writes_total",
			Help: "Assignment replace-all operations by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			runsTotal, runTasksTotal, runDurationSeconds, assignmentWrites,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Runs counts finished runs by status.
func Runs() *prometheus.CounterVec {
	RegisterMetrics()
	return runsTotal
}

// RunTasks counts scorer attempts by outcome.
func RunTasks() *prometheus.CounterVec {
	RegisterMetrics()
	return runTasksTotal
}

// RunDuration observes run wall time.
func RunDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return runDurationSeconds
}

// AssignmentWrites counts replace-all calls.
func AssignmentWrites() *prometheus.CounterVec {
	RegisterMetrics()
	return assignmentWrites
}
