package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	pollTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timewarden",
			Subsystem: "poller",
			Name:      "ticks_total",
			Help:      "Number of poll ticks that ran to completion, by view.",
		}, []string{"view"},
	)
	pollFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timewarden",
			Subsystem: "poller",
			Name:      "tick_failures_total",
			Help:      "Number of abandoned poll ticks, by the remote call that failed.",
		}, []string{"call"},
	)
	pollSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "timewarden",
			Subsystem: "poller",
			Name:      "ticks_skipped_total",
			Help:      "Number of ticks skipped because the previous one was still in flight.",
		},
	)
	pollStale = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "timewarden",
			Subsystem: "poller",
			Name:      "stale_results_total",
			Help:      "Number of tick results discarded because a newer tick or view had already applied.",
		},
	)
	pollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "timewarden",
			Subsystem: "poller",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one poll tick including every remote call.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	scheduleMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timewarden",
			Subsystem: "schedules",
			Name:      "mutations_total",
			Help:      "Schedule mutations by operation and result.",
		}, []string{"op", "result"},
	)
	scheduleRollbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "timewarden",
			Subsystem: "schedules",
			Name:      "rollbacks_total",
			Help:      "Optimistic toggles restored after the remote call failed.",
		},
	)

	remoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timewarden",
			Subsystem: "gateway",
			Name:      "remote_calls_total",
			Help:      "Remote calls issued by the client, by call and result.",
		}, []string{"call", "result"},
	)
	remoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "timewarden",
			Subsystem: "gateway",
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of remote calls issued by the client.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call"},
	)

	serverCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timewarden",
			Subsystem: "server",
			Name:      "calls_total",
			Help:      "Calls served by the reference backend, by call and HTTP status.",
		}, []string{"call", "code"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		pollTicks, pollFailures, pollSkipped, pollStale, pollDuration,
		scheduleMutations, scheduleRollbacks,
		remoteCalls, remoteCallDuration,
		serverCalls,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
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

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncTick(view string) {
	if regOK.Load() {
		pollTicks.WithLabelValues(view).Inc()
	}
}

func IncTickFailure(call string) {
	if regOK.Load() {
		pollFailures.WithLabelValues(call).Inc()
	}
}

func IncTickSkipped() {
	if regOK.Load() {
		pollSkipped.Inc()
	}
}

func IncStaleResult() {
	if regOK.Load() {
		pollStale.Inc()
	}
}

func ObserveTickDuration(seconds float64) {
	if regOK.Load() {
		pollDuration.Observe(seconds)
	}
}

func IncMutation(op string, err error) {
	if regOK.Load() {
		scheduleMutations.WithLabelValues(op, result(err)).Inc()
	}
}

func IncRollback() {
	if regOK.Load() {
		scheduleRollbacks.Inc()
	}
}

func ObserveRemoteCall(call string, seconds float64, err error) {
	if regOK.Load() {
		remoteCalls.WithLabelValues(call, result(err)).Inc()
		remoteCallDuration.WithLabelValues(call).Observe(seconds)
	}
}

func IncServerCall(call string, code string) {
	if regOK.Load() {
		serverCalls.WithLabelValues(call, code).Inc()
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
