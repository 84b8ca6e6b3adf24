// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explore

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the circuit breaker state.
type CircuitState int

const (
	// CircuitClosed passes proposal calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects proposal calls without issuing them.
	CircuitOpen
	// CircuitHalfOpen lets a limited number of probe calls through.
	CircuitHalfOpen
)

// String returns a human-readable state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// SuccessThreshold is successes needed to close from half-open.
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`

	// OpenDuration is how long to stay open before probing.
	OpenDuration time.Duration `json:"open_duration" yaml:"open_duration"`

	// HalfOpenMax is the max number of concurrent probes in half-open state.
	HalfOpenMax int `json:"half_open_max" yaml:"half_open_max"`
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenDuration:     30 * time.Second,
		HalfOpenMax:      1,
	}
}

// Validate checks the thresholds. A zero FailureThreshold disables the breaker.
func (c CircuitBreakerConfig) Validate() error {
	if c.FailureThreshold < 0 {
		return fmt.Errorf("%w: failure_threshold must be >= 0", ErrInvalidConfig)
	}
	if c.FailureThreshold > 0 {
		if c.SuccessThreshold < 1 || c.HalfOpenMax < 1 || c.OpenDuration <= 0 {
			return fmt.Errorf("%w: circuit breaker needs success_threshold, half_open_max and open_duration", ErrInvalidConfig)
		}
	}
	return nil
}

// CircuitBreakerStats contains circuit breaker statistics.
type CircuitBreakerStats struct {
	State           string    `json:"state"`
	TotalCalls      int64     `json:"total_calls"`
	TotalFailures   int64     `json:"total_failures"`
	TotalRejections int64     `json:"total_rejections"`
	CurrentFailures int       `json:"current_failures"`
	LastStateChange time.Time `json:"last_state_change"`
}

// CircuitBreaker guards the proposal provider.
//
// After FailureThreshold consecutive failed attempts the circuit opens and
// attempts are rejected before they are issued, so they never consume call
// budget. After OpenDuration, up to HalfOpenMax probes test recovery.
//
// Thread Safety: Safe for concurrent use.
type CircuitBreaker struct {
	config        CircuitBreakerConfig
	now           func() time.Time
	onStateChange func(from, to CircuitState)

	mu              sync.Mutex
	state           CircuitState
	failures        int
	successes       int
	lastStateChange time.Time
	halfOpenActive  int

	totalCalls      int64
	totalFailures   int64
	totalRejections int64
}

// NewCircuitBreaker creates a new circuit breaker.
//
// Inputs:
//   - config: Circuit breaker configuration.
//   - onStateChange: Called after every transition, outside the lock. May be nil.
//
// Outputs:
//   - *CircuitBreaker: Ready to use circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig, onStateChange func(from, to CircuitState)) *CircuitBreaker {
	return &CircuitBreaker{
		config:          config,
		now:             time.Now,
		onStateChange:   onStateChange,
		state:           CircuitClosed,
		lastStateChange: time.Now(),
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow checks if an attempt should be issued.
//
// Outputs:
//   - bool: True if the attempt should proceed.
//   - func(): Release function to call when the attempt completes (may be nil).
func (cb *CircuitBreaker) Allow() (bool, func()) {
	if cb.config.FailureThreshold == 0 {
		return true, nil
	}

	cb.mu.Lock()
	cb.totalCalls++

	var (
		allowed bool
		release func()
		changed bool
		from    = cb.state
	)
	switch cb.state {
	case CircuitClosed:
		allowed = true
	case CircuitOpen:
		if cb.now().Sub(cb.lastStateChange) >= cb.config.OpenDuration {
			cb.transitionTo(CircuitHalfOpen)
			changed = true
			allowed, release = cb.tryHalfOpen()
		} else {
			cb.totalRejections++
		}
	case CircuitHalfOpen:
		allowed, release = cb.tryHalfOpen()
	}
	cb.mu.Unlock()

	if changed {
		cb.notify(from, CircuitHalfOpen)
	}
	return allowed, release
}

// tryHalfOpen must be called with the lock held.
func (cb *CircuitBreaker) tryHalfOpen() (bool, func()) {
	if cb.halfOpenActive >= cb.config.HalfOpenMax {
		cb.totalRejections++
		return false, nil
	}

	cb.halfOpenActive++
	var once sync.Once
	return true, func() {
		once.Do(func() {
			cb.mu.Lock()
			if cb.halfOpenActive > 0 {
				cb.halfOpenActive--
			}
			cb.mu.Unlock()
		})
	}
}

// RecordSuccess records a successful attempt.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb.config.FailureThreshold == 0 {
		return
	}

	cb.mu.Lock()
	cb.failures = 0
	from := cb.state
	changed := false
	if cb.state == CircuitHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionTo(CircuitClosed)
			changed = true
		}
	}
	cb.mu.Unlock()

	if changed {
		cb.notify(from, CircuitClosed)
	}
}

// RecordFailure records a failed attempt.
func (cb *CircuitBreaker) RecordFailure() {
	if cb.config.FailureThreshold == 0 {
		return
	}

	cb.mu.Lock()
	cb.totalFailures++
	cb.failures++
	cb.successes = 0
	from := cb.state
	changed := false
	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen)
			changed = true
		}
	case CircuitHalfOpen:
		cb.transitionTo(CircuitOpen)
		changed = true
	}
	cb.mu.Unlock()

	if changed {
		cb.notify(from, CircuitOpen)
	}
}

// transitionTo changes state. Must be called with lock held.
func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	cb.state = newState
	cb.lastStateChange = cb.now()
	cb.failures = 0
	cb.successes = 0
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// Stats returns circuit breaker statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		State:           cb.state.String(),
		TotalCalls:      cb.totalCalls,
		TotalFailures:   cb.totalFailures,
		TotalRejections: cb.totalRejections,
		CurrentFailures: cb.failures,
		LastStateChange: cb.lastStateChange,
	}
}
