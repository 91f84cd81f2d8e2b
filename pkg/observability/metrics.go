// Package observability provides Prometheus metrics, tracing helpers, and
// HTTP middleware for monitoring the model server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// InferenceBuckets defines histogram buckets suited for model inference
// latencies, ranging from 1ms to 10s.
var InferenceBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10}

var (
	// HTTPRequestsTotal counts HTTP requests by method and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelserve_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	// HTTPRequestDuration records HTTP request duration in seconds by method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelserve_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: InferenceBuckets,
		},
		[]string{"method"},
	)

	// CommandsTotal counts commands leaving the middleware pipeline by kind,
	// front end protocol, and outcome ("ok" or an error type).
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelserve_commands_total",
			Help: "Commands handled",
		},
		[]string{"kind", "protocol", "outcome"},
	)

	// CommandDuration records the time spent in the pipeline per command.
	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelserve_command_duration_seconds",
			Help:    "Command duration",
			Buckets: InferenceBuckets,
		},
		[]string{"kind", "protocol"},
	)

	// DispatchTotal counts bus dispatches by kind and outcome.
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelserve_bus_dispatch_total",
			Help: "Command bus dispatches",
		},
		[]string{"kind", "outcome"},
	)

	// CacheLookupsTotal counts prediction cache lookups by result
	// (hit, miss, expired, error).
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelserve_cache_lookups_total",
			Help: "Prediction cache lookups",
		},
		[]string{"result"},
	)

	// InferenceInFlight tracks estimator calls currently holding a worker.
	InferenceInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modelserve_inference_inflight",
			Help: "Inference calls in flight",
		},
	)

	// InferenceQueueWait records how long calls waited for a free worker.
	InferenceQueueWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modelserve_inference_queue_wait_seconds",
			Help:    "Time spent waiting for an inference worker",
			Buckets: InferenceBuckets,
		},
	)

	// BinaryConnections tracks open binary protocol connections.
	BinaryConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modelserve_binary_connections_active",
			Help: "Active binary protocol connections",
		},
	)

	// AuthRejectedTotal counts requests rejected before dispatch by reason
	// (unauthenticated, untrusted_client).
	AuthRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelserve_auth_rejected_total",
			Help: "Requests rejected by authentication or trust checks",
		},
		[]string{"reason"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelserve_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CommandsTotal,
		CommandDuration,
		DispatchTotal,
		CacheLookupsTotal,
		InferenceInFlight,
		InferenceQueueWait,
		BinaryConnections,
		AuthRejectedTotal,
		RateLimitRejectedTotal,
	)
}
