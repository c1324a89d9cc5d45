// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the gating surface.
//
// # Description
//
// Metrics cover the three gates (message, document, response) plus the
// reporting pipeline:
//   - Request counters (by endpoint, status)
//   - Classification outcomes (by category, severity)
//   - Document verification verdicts
//   - Response filter actions
//   - Escalations (by priority)
//   - Gate latency histograms
//
// Label values are enum names only. No label ever carries message content
// or user identifiers.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "sentinel"

const gateSubsystem = "gate"

// GateMetrics holds all Prometheus metrics for the gating endpoints.
// Initialize once at startup via InitMetrics, or with NewMetrics and a
// private registry in tests.
type GateMetrics struct {
	// RequestsTotal counts gate requests by endpoint and status.
	// Labels: endpoint (ask_gate, ingest_gate, response_gate, report), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// ClassificationsTotal counts message classifications.
	// Labels: category (safe_operational, ... imminent_danger), severity (none..critical)
	ClassificationsTotal *prometheus.CounterVec

	// VerificationsTotal counts document verification verdicts.
	// Labels: verdict (clean, flagged, blocked)
	VerificationsTotal *prometheus.CounterVec

	// FilterActionsTotal counts response filter outcomes.
	// Labels: action (pass, modify, block)
	FilterActionsTotal *prometheus.CounterVec

	// EscalationsTotal counts confidential report escalations.
	// Labels: priority (MEDIUM, HIGH, CRITICAL, CRITICAL_IMMEDIATE)
	EscalationsTotal *prometheus.CounterVec

	// GateDurationSeconds measures end-to-end gate latency.
	// Labels: endpoint
	GateDurationSeconds *prometheus.HistogramVec
}

// DefaultMetrics is the singleton instance registered on the default
// Prometheus registry. Initialized by InitMetrics.
var DefaultMetrics *GateMetrics

// InitMetrics initializes the default metrics instance. Call once at
// application startup; calling twice panics on duplicate registration.
func InitMetrics() *GateMetrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates and registers the gate metrics on the given
// registerer. Tests pass a private registry so packages can register
// independently.
func NewMetrics(reg prometheus.Registerer) *GateMetrics {
	factory := promauto.With(reg)

	return &GateMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gateSubsystem,
				Name:      "requests_total",
				Help:      "Total gate requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		ClassificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gateSubsystem,
				Name:      "classifications_total",
				Help:      "Message classifications by category and severity",
			},
			[]string{"category", "severity"},
		),

		VerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gateSubsystem,
				Name:      "document_verifications_total",
				Help:      "Document verification verdicts",
			},
			[]string{"verdict"},
		),

		FilterActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gateSubsystem,
				Name:      "response_filter_actions_total",
				Help:      "Response filter outcomes",
			},
			[]string{"action"},
		),

		EscalationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gateSubsystem,
				Name:      "escalations_total",
				Help:      "Confidential report escalations by priority",
			},
			[]string{"priority"},
		),

		GateDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gateSubsystem,
				Name:      "duration_seconds",
				Help:      "End-to-end gate latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"endpoint"},
		),
	}
}

// Endpoint names used as metric label values.
type Endpoint string

const (
	EndpointAskGate      Endpoint = "ask_gate"
	EndpointIngestGate   Endpoint = "ingest_gate"
	EndpointResponseGate Endpoint = "response_gate"
	EndpointReport       Endpoint = "report"
)

// RecordRequest records a completed gate request.
func (m *GateMetrics) RecordRequest(endpoint Endpoint, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

// RecordClassification records a classification outcome.
func (m *GateMetrics) RecordClassification(category, severity string) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(category, severity).Inc()
}

// RecordVerification records a document verification verdict.
func (m *GateMetrics) RecordVerification(verdict string) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(verdict).Inc()
}

// RecordFilterAction records a response filter outcome.
func (m *GateMetrics) RecordFilterAction(action string) {
	if m == nil {
		return
	}
	m.FilterActionsTotal.WithLabelValues(action).Inc()
}

// RecordEscalation records a published escalation.
func (m *GateMetrics) RecordEscalation(priority string) {
	if m == nil {
		return
	}
	m.EscalationsTotal.WithLabelValues(priority).Inc()
}

// RecordDuration records the end-to-end latency of a gate request.
func (m *GateMetrics) RecordDuration(endpoint Endpoint, seconds float64) {
	if m == nil {
		return
	}
	m.GateDurationSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}
