// Package metrics exposes the Prometheus collectors of the message turn.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tabletop"

// Metrics groups the collectors registered on one registry. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	personaOutcomes    *prometheus.CounterVec
	turns              *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	broadcastDropped   prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		personaOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persona_outcomes_total",
			Help:      "Persona generations by mode and outcome (reacted, skipped, failed).",
		}, []string{"mode", "outcome"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Inbound messages processed, by channel.",
		}, []string{"channel"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of a single persona generation.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 45, 90, 180},
		}, []string{"mode"}),
		broadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Broadcast events dropped because a client or the hub was saturated.",
		}),
	}

	reg.MustRegister(m.personaOutcomes, m.turns, m.generationDuration, m.broadcastDropped)
	return m
}

// Registry returns the registry, so other exporters can share it
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// PersonaOutcome counts one persona generation outcome
func (m *Metrics) PersonaOutcome(mode, outcome string) {
	if m == nil {
		return
	}
	m.personaOutcomes.WithLabelValues(mode, outcome).Inc()
}

// Turn counts one processed inbound message
func (m *Metrics) Turn(coaching bool) {
	if m == nil {
		return
	}
	channel := "player"
	if coaching {
		channel = "coach"
	}
	m.turns.WithLabelValues(channel).Inc()
}

// ObserveGeneration records the latency of one generation call
func (m *Metrics) ObserveGeneration(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// BroadcastDropped counts one dropped broadcast event
func (m *Metrics) BroadcastDropped() {
	if m == nil {
		return
	}
	m.broadcastDropped.Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
