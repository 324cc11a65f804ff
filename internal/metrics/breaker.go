// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamgrab_breaker_open",
		Help: "1 while the named failure breaker is open, e.g. a stalled playlist",
	}, []string{"component"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgrab_breaker_trips_total",
		Help: "Failure breaker trips by component and reason",
	}, []string{"component", "reason"})
)

// SetCircuitBreakerState publishes whether the breaker for component is open.
func SetCircuitBreakerState(component, state string) {
	v := 0.0
	if state == "open" {
		v = 1
	}
	breakerOpen.WithLabelValues(component).Set(v)
}

// RecordCircuitBreakerTrip counts a transition to the open state.
func RecordCircuitBreakerTrip(component, reason string) {
	breakerTrips.WithLabelValues(component, reason).Inc()
}
