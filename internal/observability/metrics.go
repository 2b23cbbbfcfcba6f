// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// rejectedRequests counts requests refused before reaching a handler.
// Package-level so middleware can record rejections without a Server instance.
var rejectedRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "labelhub_http_rejected_requests_total",
		Help: "Total number of HTTP requests rejected by middleware, by reason",
	},
	[]string{"reason"},
)

// Rejection reasons.
const (
	ReasonThrottled = "throttled"
	ReasonOrigin    = "origin"
)

// RecordRejectedRequest increments the rejected request counter.
func RecordRejectedRequest(reason string) {
	rejectedRequests.WithLabelValues(reason).Inc()
}

// Metrics contains the HTTP metrics for labelhub.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the labelhub HTTP metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labelhub_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labelhub_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(rejectedRequests)

	return m
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
