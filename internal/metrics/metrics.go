// Package metrics holds the Prometheus instruments shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider fallback chain
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Provider invocations by category, provider and outcome",
		},
		[]string{"category", "provider", "outcome"}, // "success", "timeout", "rate_limited", "circuit_open", "empty", "malformed", "failed"
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_duration_seconds",
			Help:    "Duration of provider invocations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category", "provider"},
	)

	ChainExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_chain_exhausted_total",
			Help: "Fallback chains that ran out of providers without a success",
		},
		[]string{"category"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "provider_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// Briefing generation
	Generations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "briefing_generations_total",
			Help: "Briefing requests by outcome",
		},
		[]string{"outcome"}, // "generated", "cached", "shared", "in_progress", "precondition", "persist_failed", "failed"
	)

	CategoryDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "briefing_category_decisions_total",
			Help: "Staleness decisions per category",
		},
		[]string{"category", "decision"},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "briefing_generation_duration_seconds",
			Help:    "Wall time of a briefing generation",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	// Event pipeline
	EventsPipeline = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_pipeline_total",
			Help: "Events passing through each pipeline stage",
		},
		[]string{"stage"}, // "received", "invalid", "duplicate", "stored"
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_rejected_total",
			Help: "Events rejected by validation, by reason",
		},
		[]string{"reason"},
	)

	// Ready notifications
	ReadyPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "briefing_ready_published_total",
			Help: "Ready notifications published",
		},
		[]string{"result"}, // "ok", "error"
	)
)
