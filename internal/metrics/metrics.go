package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register
// and no-op until then.
var (
	regOK atomic.Bool

	sidecarStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "davbridge",
			Subsystem: "sidecar",
			Name:      "starts_total",
			Help:      "Number of successful sidecar starts.",
		},
	)
	sidecarStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "davbridge",
			Subsystem: "sidecar",
			Name:      "stops_total",
			Help:      "Number of successful sidecar stops.",
		},
	)
	sidecarRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "davbridge",
			Subsystem: "sidecar",
			Name:      "restarts_total",
			Help:      "Number of sidecar restarts (port changes included).",
		},
	)
	sidecarTerminations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "davbridge",
			Subsystem: "sidecar",
			Name:      "terminations_total",
			Help:      "Number of observed sidecar terminations.",
		},
	)
	statusQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "davbridge",
			Subsystem: "status",
			Name:      "queries_total",
			Help:      "Status queries by outcome (ok, degraded).",
		}, []string{"outcome"},
	)
	statusQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "davbridge",
			Subsystem: "status",
			Name:      "query_duration_seconds",
			Help:      "Observed status query latency.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	mountOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "davbridge",
			Subsystem: "mount",
			Name:      "operations_total",
			Help:      "Mount/unmount operations by op (mount, unmount) and outcome (ok, failed, timeout).",
		}, []string{"op", "outcome"},
	)
)

// Register registers all collectors with r. Safe to call multiple
// times; duplicate registrations are ignored.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		sidecarStarts, sidecarStops, sidecarRestarts, sidecarTerminations,
		statusQueries, statusQueryDuration, mountOps,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers used by internal packages; no-ops before Register.

func IncStart() {
	if regOK.Load() {
		sidecarStarts.Inc()
	}
}

func IncStop() {
	if regOK.Load() {
		sidecarStops.Inc()
	}
}

func IncRestart() {
	if regOK.Load() {
		sidecarRestarts.Inc()
	}
}

func IncTermination() {
	if regOK.Load() {
		sidecarTerminations.Inc()
	}
}

func IncStatusQuery(outcome string) {
	if regOK.Load() {
		statusQueries.WithLabelValues(outcome).Inc()
	}
}

func ObserveStatusQuery(seconds float64) {
	if regOK.Load() {
		statusQueryDuration.Observe(seconds)
	}
}

func IncMountOp(op, outcome string) {
	if regOK.Load() {
		mountOps.WithLabelValues(op, outcome).Inc()
	}
}
