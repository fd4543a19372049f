// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IngestEventsTotal counts inbound events handled by internal/ingest, per
// source and outcome (applied, correlation-miss, correlation-ambiguous,
// invalid-transition).
var IngestEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arrwatch_ingest_events_total",
	Help: "Total number of inbound events processed by an ingest adapter",
}, []string{"source", "outcome"})

// CorrelatorOutcomesTotal counts correlator resolutions by which rule
// matched (or "not_found"/"ambiguous").
var CorrelatorOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arrwatch_correlator_outcomes_total",
	Help: "Total number of correlator resolutions by outcome",
}, []string{"outcome"})

// TransitionsTotal counts state-machine transitions applied, per
// record kind (request/episode), resulting state, and whether the call was
// rejected as an invalid transition.
var TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arrwatch_transitions_total",
	Help: "Total number of lifecycle transitions attempted",
}, []string{"kind", "to_state", "result"})

// VerifierCyclesTotal counts verifier sweep cycles by outcome (hit/miss) per
// lookup rule.
var VerifierCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arrwatch_verifier_cycles_total",
	Help: "Total number of verifier sweep cycles, per evaluated request outcome",
}, []string{"outcome"})

// DeletionOutcomesTotal counts deletion-sync-event terminal outcomes per
// service.
var DeletionOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arrwatch_deletion_outcomes_total",
	Help: "Total number of deletion sync events reaching a terminal status, per service",
}, []string{"service", "status"})

// IncIngestEvent records one processed inbound event.
func IncIngestEvent(source, outcome string) {
	IngestEventsTotal.WithLabelValues(source, outcome).Inc()
}

// IncCorrelatorOutcome records one correlator resolution.
func IncCorrelatorOutcome(outcome string) {
	CorrelatorOutcomesTotal.WithLabelValues(outcome).Inc()
}

// IncTransition records one lifecycle transition attempt.
func IncTransition(kind, toState, result string) {
	TransitionsTotal.WithLabelValues(kind, toState, result).Inc()
}

// IncVerifierCycle records one verifier per-request evaluation outcome.
func IncVerifierCycle(outcome string) {
	VerifierCyclesTotal.WithLabelValues(outcome).Inc()
}

// IncDeletionOutcome records one deletion-sync-event reaching a terminal
// status.
func IncDeletionOutcome(service, status string) {
	DeletionOutcomesTotal.WithLabelValues(service, status).Inc()
}
