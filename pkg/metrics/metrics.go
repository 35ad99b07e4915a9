// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for passkey ceremony
// servers. It exposes ceremony counters, latency histograms, error counters,
// and resource gauges. The ceremony library itself records nothing; the HTTP
// layer and the server binary feed these metrics.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all passkey metrics
	Namespace = "passkey"

	// Label names
	LabelCeremony   = "ceremony"
	LabelStatus     = "status"
	LabelReason     = "reason"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Ceremony names
	CeremonyRegistration = "registration"
	CeremonyLogin        = "login"
	CeremonyConditional  = "conditional"
	CeremonyVerification = "verification"
)

var (
	// CeremoniesTotal tracks the total number of ceremonies by kind and status.
	// Use RecordCeremony to increment this counter with the appropriate labels.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of passkey ceremonies by kind and status",
		},
		[]string{LabelCeremony, LabelStatus},
	)

	// CeremonyDuration tracks ceremony duration in seconds. Buckets cover
	// instant in-process completion up to a user deliberating at a browser
	// prompt.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of passkey ceremonies in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{LabelCeremony},
	)

	// ErrorsTotal tracks the total number of ceremony errors by kind and
	// reason. Reasons should be stable identifiers (e.g. "declined",
	// "verification_failed", "transport").
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of ceremony errors by kind and reason",
		},
		[]string{LabelCeremony, LabelReason},
	)

	// ActiveCeremonies tracks the number of ceremonies waiting on a browser
	// response.
	ActiveCeremonies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_ceremonies",
			Help:      "Number of ceremonies waiting on a browser response",
		},
	)

	// HTTPRequestsTotal tracks the total number of HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// Goroutines tracks the current number of goroutines in the server.
	// Updated periodically by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	// Updated periodically by the resource collector.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// MemorySysBytes tracks the total bytes of memory obtained from the OS.
	// Updated periodically by the resource collector.
	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Total bytes of memory obtained from the OS",
		},
	)

	// GCPauseTotalSeconds tracks the cumulative time spent in GC stop-the-world pauses.
	// Updated periodically by the resource collector.
	GCPauseTotalSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "gc_pause_total_seconds",
			Help:      "Cumulative time spent in GC stop-the-world pauses",
		},
	)

	// ServerUptime tracks the server uptime in seconds since startup.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordCeremony records a completed ceremony with its duration and status.
// This is the primary function for tracking ceremony metrics.
//
// Parameters:
//   - ceremony: The ceremony kind (use Ceremony* constants)
//   - status: The outcome (use Status* constants)
//   - duration: The ceremony duration in seconds
//
// Example:
//
//	start := time.Now()
//	registered, err := provider.CreatePasskey(ctx, userID, userName)
//	duration := time.Since(start).Seconds()
//	if err != nil {
//	    RecordCeremony(CeremonyRegistration, StatusError, duration)
//	} else {
//	    RecordCeremony(CeremonyRegistration, StatusSuccess, duration)
//	}
func RecordCeremony(ceremony, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	CeremoniesTotal.WithLabelValues(ceremony, status).Inc()
	CeremonyDuration.WithLabelValues(ceremony).Observe(duration)
}

// RecordCeremonyError records a ceremony error with its failure reason.
//
// Parameters:
//   - ceremony: The ceremony kind during which the error occurred
//   - reason: A stable failure identifier (e.g. "declined", "transport")
//
// Example:
//
//	if passkey.IsDeclined(err) {
//	    RecordCeremonyError(CeremonyRegistration, "declined")
//	}
func RecordCeremonyError(ceremony, reason string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(ceremony, reason).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status.
//
// Parameters:
//   - method: The HTTP method (GET, POST, etc.)
//   - statusCode: The HTTP status code as a string
//   - duration: The request duration in seconds
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}

// IncrementActiveCeremonies increments the pending ceremony gauge.
func IncrementActiveCeremonies() {
	if !enabled.Load() {
		return
	}
	ActiveCeremonies.Inc()
}

// DecrementActiveCeremonies decrements the pending ceremony gauge.
func DecrementActiveCeremonies() {
	if !enabled.Load() {
		return
	}
	ActiveCeremonies.Dec()
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
