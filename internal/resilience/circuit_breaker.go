// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience holds failure-accounting primitives shared by the
// streaming components.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/streamgrab/internal/metrics"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// clock abstracts time operations for testability.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CircuitBreaker trips after a run of consecutive failures. A success resets
// the run. With a zero reset timeout the open state is latched, which is what
// the engine uses for "N failures in a row is fatal" rules.
type CircuitBreaker struct {
	mu           sync.Mutex
	name         string // Component name for metrics
	state        State
	failures     int
	threshold    int
	resetTimeout time.Duration
	openedAt     time.Time
	lastErr      error
	clock        clock
}

// Option configuration pattern
type Option func(*CircuitBreaker)

func WithClock(c clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithResetTimeout lets an open breaker close again after d.
func WithResetTimeout(d time.Duration) Option {
	return func(cb *CircuitBreaker) { cb.resetTimeout = d }
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(name string, threshold int, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}

	cb := &CircuitBreaker{
		name:      name,
		state:     StateClosed,
		threshold: threshold,
		clock:     realClock{},
	}

	for _, opt := range opts {
		opt(cb)
	}

	metrics.SetCircuitBreakerState(cb.name, string(cb.state))
	return cb
}

// Execute runs fn respecting the breaker state and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}

	if err := fn(); err != nil {
		cb.RecordFailure(err)
		return err
	}

	cb.RecordSuccess()
	return nil
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateClosed {
		return true
	}
	if cb.resetTimeout > 0 && cb.clock.Now().Sub(cb.openedAt) > cb.resetTimeout {
		cb.failures = 0
		cb.transitionTo(StateClosed)
		return true
	}
	return false
}

// RecordFailure counts a failure and reports whether the breaker is now open.
func (cb *CircuitBreaker) RecordFailure(err error) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastErr = err

	if cb.state == StateClosed && cb.failures >= cb.threshold {
		metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
		cb.transitionTo(StateOpen)
	}
	return cb.state == StateOpen
}

// RecordSuccess resets the consecutive failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.lastErr = nil
	if cb.state != StateClosed && cb.resetTimeout > 0 {
		cb.transitionTo(StateClosed)
	}
}

// transitionTo handles state transitions and updates metrics.
// Caller must hold lock.
func (cb *CircuitBreaker) transitionTo(newState State) {
	if cb.state == newState {
		return
	}
	cb.state = newState
	if newState == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	metrics.SetCircuitBreakerState(cb.name, string(newState))
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current run of consecutive failures.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// LastError returns the most recent failure recorded since the last success.
func (cb *CircuitBreaker) LastError() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastErr
}
