// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability wires Prometheus metrics and OpenTelemetry tracing
// for the gateway and pipeline, adapted from the teacher's
// observability/metrics.go into the turn/stage/error vocabulary this
// service needs.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrorCode mirrors the client-visible taxonomy from spec §7, used only for
// metric label cardinality control (not re-exported to clients — gateway
// package owns the wire-level type).
type ErrorCode string

const (
	ErrUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrForbidden       ErrorCode = "FORBIDDEN"
	ErrNotFound        ErrorCode = "NOT_FOUND"
	ErrRateLimit       ErrorCode = "RATE_LIMIT"
	ErrInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrConversationBusy ErrorCode = "CONVERSATION_BUSY"
	ErrExternalAPI     ErrorCode = "EXTERNAL_API_ERROR"
	ErrInternal        ErrorCode = "INTERNAL"
)

// Stage names the pipeline nodes, used as a metric label.
type Stage string

const (
	StageRouting    Stage = "routing"
	StageRetrieving Stage = "retrieving"
	StageGrading    Stage = "grading"
	StageGenerating Stage = "generating"
	StageIngesting  Stage = "ingesting"
)

// Metrics bundles every Prometheus collector the gateway and pipeline touch.
type Metrics struct {
	TurnsTotal          *prometheus.CounterVec
	ErrorsTotal         *prometheus.CounterVec
	StageLatency        *prometheus.HistogramVec
	ActiveConnections   prometheus.Gauge
	GraderCallsTotal    prometheus.Counter
	RetrieverCallsTotal prometheus.Counter
	RateLimitDenials    prometheus.Counter
}

var (
	defaultOnce sync.Once
	defaultM    *Metrics
)

// NewMetrics registers a fresh set of collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the process
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tubechat_turns_total",
			Help: "Completed turns by outcome.",
		}, []string{"outcome"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tubechat_errors_total",
			Help: "Turn-terminal errors by code.",
		}, []string{"code"}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tubechat_stage_latency_seconds",
			Help:    "Per-pipeline-stage latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tubechat_active_connections",
			Help: "Currently open gateway channels.",
		}),
		GraderCallsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tubechat_grader_calls_total",
			Help: "Per-chunk grader LLM calls issued.",
		}),
		RetrieverCallsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tubechat_retriever_calls_total",
			Help: "Retrieval operations issued.",
		}),
		RateLimitDenials: factory.NewCounter(prometheus.CounterOpts{
			Name: "tubechat_rate_limit_denials_total",
			Help: "Submissions denied by the per-user sliding window.",
		}),
	}
}

// Default lazily initializes and returns a process-wide Metrics registered
// against the default Prometheus registerer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultM = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultM
}

// RecordTurn records a completed turn's outcome ("success" or "failure").
func (m *Metrics) RecordTurn(outcome string) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
}

// RecordError records a turn-terminal error by its client-visible code.
func (m *Metrics) RecordError(code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(code)).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage Stage, seconds float64) {
	m.StageLatency.WithLabelValues(string(stage)).Observe(seconds)
}
