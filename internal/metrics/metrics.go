package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "camrent_ops"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Console API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend calls issued through the gateway by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	backendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend call latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	workflowOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_outcomes_total",
			Help:      "Workflow results at the dialog boundary by operation and error kind.",
		},
		[]string{"op", "kind"},
	)

	liveBlobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "preview_blobs_live",
			Help:      "Contract preview blobs currently allocated.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, backendRequests, backendLatency, workflowOutcomes, liveBlobs)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// ObserveBackend records one gateway call.
func ObserveBackend(op, outcome string, d time.Duration) {
	backendRequests.WithLabelValues(op, outcome).Inc()
	backendLatency.WithLabelValues(op).Observe(d.Seconds())
}

// IncWorkflow counts a workflow result; kind is "ok" on success.
func IncWorkflow(op, kind string) {
	workflowOutcomes.WithLabelValues(op, kind).Inc()
}

// SetLiveBlobs publishes the number of allocated preview blobs.
func SetLiveBlobs(n int) {
	liveBlobs.Set(float64(n))
}
