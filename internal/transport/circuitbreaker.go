package transport

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker is a per-endpoint guard (spec §4.3, §Glossary). It
// counts consecutive failures, opens at a threshold, refuses calls for
// a cooldown window, then admits exactly one probe.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            breakerState
	consecutiveFails int
	openedAt         time.Time
	probeInFlight    bool

	threshold      int
	openTimeout    time.Duration
	halfOpenProbes int
}

func NewCircuitBreaker(threshold int, openTimeout time.Duration, halfOpenProbes int) *CircuitBreaker {
	if halfOpenProbes < 1 {
		halfOpenProbes = 1
	}
	return &CircuitBreaker{
		threshold:      threshold,
		openTimeout:    openTimeout,
		halfOpenProbes: halfOpenProbes,
	}
}

// Allow reports whether a call may proceed right now. It performs the
// OPEN -> HALF_OPEN transition as a side effect once the cooldown has
// elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(b.openedAt) < b.openTimeout {
			return false
		}
		b.state = stateHalfOpen
		b.probeInFlight = true
		return true
	case stateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess closes the breaker and resets the failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.consecutiveFails = 0
	b.probeInFlight = false
}

// RecordFailure increments the failure count, opening the breaker at
// the threshold, or reopening the cooldown timer if the probe itself failed.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = time.Now()
		b.probeInFlight = false
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.threshold {
		b.state = stateOpen
		b.openedAt = time.Now()
	}
}

// State reports the current breaker state as a string, for status/debug endpoints.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		return "OPEN"
	case stateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}
