// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values for operation metrics.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultClosed  = "closed"
)

// OperationsTotal counts session operations by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var OperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "holosession_operations_total",
		Help: "Total number of session operations forwarded to the identity provider",
	},
	[]string{"operation", "status"},
)

// OperationDuration is the histogram for provider call latency.
// Use RegisterMetrics to register this with a Prometheus registry.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "holosession_operation_duration_seconds",
		Help:    "Identity provider call duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// StateTransitions counts auth-change notifications applied to a session.
var StateTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "holosession_state_transitions_total",
		Help: "Total number of session state transitions by resulting status",
	},
	[]string{"status"},
)

// WatchDropped counts state updates dropped because a watcher was not
// keeping up.
var WatchDropped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "holosession_watch_dropped_total",
		Help: "Total number of state updates dropped due to full watcher buffers",
	},
)

// RegisterMetrics registers session metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(OperationsTotal)
	reg.MustRegister(OperationDuration)
	reg.MustRegister(StateTransitions)
	reg.MustRegister(WatchDropped)
}

func recordOperation(op, status string, d time.Duration) {
	OperationsTotal.WithLabelValues(op, status).Inc()
	if status != ResultClosed {
		OperationDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

func recordTransition(s Status) {
	StateTransitions.WithLabelValues(string(s)).Inc()
}
