// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playerStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgrab_player_start_total",
		Help: "Total number of player process starts by family, transport and result",
	}, []string{"family", "transport", "result"})

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgrab_proc_terminate_total",
		Help: "Signals sent to child process groups by signal and outcome",
	}, []string{"signal", "outcome"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgrab_proc_wait_total",
		Help: "Child process wait results",
	}, []string{"result"})
)

// IncPlayerStart records a player start attempt.
func IncPlayerStart(family, transport string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	playerStartTotal.WithLabelValues(family, transport, result).Inc()
}

// IncProcTerminate records a termination signal outcome.
func IncProcTerminate(signal, outcome string) {
	procTerminateTotal.WithLabelValues(signal, outcome).Inc()
}

// IncProcWait records how a terminated process finished.
func IncProcWait(result string) {
	procWaitTotal.WithLabelValues(result).Inc()
}
