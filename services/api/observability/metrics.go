// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the daemon API.
//
// # Description
//
// Exposes counters, histograms, and gauges for the session surface:
//   - Request counters and latency histograms per route
//   - Sign-in outcomes (signed_in, invalid_token, offline, ...)
//   - The current signed-in flag as a gauge
//   - Event stream subscriber and drop counters
//
// Metrics land on the default registry and are served from /metrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianConnect/services/session"
)

const (
	metricsNamespace = "aleutian"
	connectSubsystem = "connect"
)

// Metrics holds all Prometheus metrics for the daemon API.
type Metrics struct {
	// RequestsTotal counts HTTP requests by route template and status code.
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures request latency by route template.
	// Sign-in requests include the remote validation round trip.
	RequestDurationSeconds *prometheus.HistogramVec

	// SignInsTotal counts sign-in attempts by outcome.
	// Outcomes: signed_in, signed_out, invalid_token, offline, error,
	// superseded, rejected, failed.
	SignInsTotal *prometheus.CounterVec

	// SignedIn is 1 while a session is signed in, 0 otherwise.
	SignedIn prometheus.Gauge

	// StatusUpdatesTotal counts committed status changes.
	StatusUpdatesTotal prometheus.Counter

	// EventClients tracks connected event stream clients.
	EventClients prometheus.Gauge

	// EventDropsTotal counts status updates dropped because an event
	// stream client could not keep up.
	EventDropsTotal prometheus.Counter
}

var (
	initOnce sync.Once

	// DefaultMetrics is the singleton instance, set by InitMetrics.
	DefaultMetrics *Metrics
)

// InitMetrics initializes and registers the default metrics instance.
// Safe to call more than once; later calls return the first instance.
func InitMetrics() *Metrics {
	initOnce.Do(func() {
		DefaultMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: connectSubsystem,
					Name:      "requests_total",
					Help:      "Total HTTP requests by route and status code",
				},
				[]string{"route", "status"},
			),

			RequestDurationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: connectSubsystem,
					Name:      "request_duration_seconds",
					Help:      "HTTP request latency by route",
					Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
				},
				[]string{"route"},
			),

			SignInsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: connectSubsystem,
					Name:      "sign_ins_total",
					Help:      "Sign-in attempts by outcome",
				},
				[]string{"outcome"},
			),

			SignedIn: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: connectSubsystem,
					Name:      "signed_in",
					Help:      "1 while a session is signed in, 0 otherwise",
				},
			),

			StatusUpdatesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: connectSubsystem,
					Name:      "status_updates_total",
					Help:      "Committed session status changes",
				},
			),

			EventClients: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: connectSubsystem,
					Name:      "event_clients",
					Help:      "Connected event stream clients",
				},
			),

			EventDropsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: connectSubsystem,
					Name:      "event_drops_total",
					Help:      "Status updates dropped on slow event stream clients",
				},
			),
		}
	})
	return DefaultMetrics
}

// ObserveStatus records a committed status change. Suitable for passing to
// the session manager's Subscribe; it never blocks.
func (m *Metrics) ObserveStatus(status session.AuthStatus) {
	m.StatusUpdatesTotal.Inc()
	if status.SignedIn {
		m.SignedIn.Set(1)
	} else {
		m.SignedIn.Set(0)
	}
}

// SignInOutcome maps a committed status to its sign-in outcome label.
func SignInOutcome(status session.AuthStatus) string {
	switch {
	case status.SignedIn:
		return "signed_in"
	case status.InvalidToken:
		return "invalid_token"
	case status.Connectivity == session.ConnectivityOffline:
		return "offline"
	case status.Connectivity == session.ConnectivityError:
		return "error"
	default:
		return "signed_out"
	}
}
