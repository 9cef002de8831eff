// Package metrics holds the Prometheus collectors for engine runs.
//
// Collectors live on a package registry rather than the global default so
// that embedding programs decide whether and where to expose them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeUser     = "user_error"
	OutcomeInternal = "internal_error"
)

// Registry collects every fsa metric.
var Registry = prometheus.NewRegistry()

var (
	runsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "fsa_runs_total",
		Help: "Engine runs by backend and outcome",
	}, []string{"backend", "outcome"})

	lanesTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "fsa_lanes_total",
		Help: "Lanes dispatched by successful runs",
	}, []string{"backend"})

	runDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fsa_run_duration_seconds",
		Help:    "End-to-end run latency, device selection through completion",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
	}, []string{"backend"})

	kernelCache = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "fsa_kernel_cache_total",
		Help: "Compiled kernel cache lookups by result",
	}, []string{"result"})
)

// ObserveRun records one finished run.
func ObserveRun(backend, outcome string, lanes int, d time.Duration) {
	runsTotal.WithLabelValues(backend, outcome).Inc()
	runDuration.WithLabelValues(backend).Observe(d.Seconds())
	if outcome == OutcomeOK {
		lanesTotal.WithLabelValues(backend).Add(float64(lanes))
	}
}

// ObserveKernelCache records a compiled-kernel cache hit or miss.
func ObserveKernelCache(hit bool) {
	if hit {
		kernelCache.WithLabelValues("hit").Inc()
		return
	}
	kernelCache.WithLabelValues("miss").Inc()
}

// WriteTextfile writes every metric to path in the text exposition format,
// for pickup by a textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
