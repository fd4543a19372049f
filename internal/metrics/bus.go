// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusDropsTotal counts events dropped from a subscriber's queue due to
// backpressure (§4I).
var BusDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arrwatch_bus_drop_total",
	Help: "Total number of live-update bus message drops (per-subscriber backpressure)",
}, []string{"topic"})

// IncBusDrop records a dropped bus message for the given topic.
func IncBusDrop(topic string) {
	if topic == "" {
		topic = "unknown"
	}
	BusDropsTotal.WithLabelValues(topic).Inc()
}
