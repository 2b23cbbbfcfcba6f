// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation names used as metric labels.
const (
	OpRegister = "register"
	OpLogin    = "login"
	OpLogout   = "logout"
	OpValidate = "validate"
	OpPurge    = "purge"
)

// Status labels for operation metrics.
const (
	StatusSuccess   = "success"
	StatusRejected  = "rejected"
	StatusLockedOut = "locked_out"
	StatusError     = "error"
)

// OperationsTotal counts auth operations by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var OperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "labelhub_auth_operations_total",
		Help: "Total number of authentication operations by operation and status",
	},
	[]string{"operation", "status"},
)

// OperationDuration is the histogram for auth operation latency.
// Use RegisterMetrics to register this with a Prometheus registry.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "labelhub_auth_operation_duration_seconds",
		Help:    "Authentication operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// SessionsPurged counts sessions removed by the expiry janitor.
var SessionsPurged = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "labelhub_auth_sessions_purged_total",
		Help: "Total number of expired sessions removed",
	},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(OperationsTotal)
	reg.MustRegister(OperationDuration)
	reg.MustRegister(SessionsPurged)
}

// recordOperation records the outcome and latency of an operation started at start.
func recordOperation(operation, status string, start time.Time) {
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
