// Package routing selects providers for each call: circuit breakers gate
// unhealthy candidates, the health monitor probes in the background, the
// connection tracker counts in-flight calls for drain, and the router ties
// it together with a failover strategy.
package routing

import (
	"sync"
	"time"
)

// Circuit breaker defaults.
const (
	DefaultWindowSize          = 20
	DefaultFailureThreshold    = 0.5
	DefaultRecoveryTimeout     = 30 * time.Second
	DefaultHalfOpenMaxRequests = 3
)

// BreakerState is the circuit breaker state.
type BreakerState string

// Breaker states.
const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	windowSize          int
	failureThreshold    float64
	recoveryTimeout     time.Duration
	halfOpenMaxRequests int
}

// NewBreakerConfig returns the default breaker configuration.
func NewBreakerConfig() BreakerConfig {
	return BreakerConfig{
		windowSize:          DefaultWindowSize,
		failureThreshold:    DefaultFailureThreshold,
		recoveryTimeout:     DefaultRecoveryTimeout,
		halfOpenMaxRequests: DefaultHalfOpenMaxRequests,
	}
}

// WithWindowSize returns a copy with the rolling window size set.
func (c BreakerConfig) WithWindowSize(n int) BreakerConfig {
	if n > 0 {
		c.windowSize = n
	}
	return c
}

// WithFailureThreshold returns a copy with the failure-rate threshold set.
func (c BreakerConfig) WithFailureThreshold(t float64) BreakerConfig {
	if t > 0 && t <= 1 {
		c.failureThreshold = t
	}
	return c
}

// WithRecoveryTimeout returns a copy with the open-state recovery timeout
// set.
func (c BreakerConfig) WithRecoveryTimeout(d time.Duration) BreakerConfig {
	if d > 0 {
		c.recoveryTimeout = d
	}
	return c
}

// WithHalfOpenMaxRequests returns a copy with the half-open probe budget set.
func (c BreakerConfig) WithHalfOpenMaxRequests(n int) BreakerConfig {
	if n > 0 {
		c.halfOpenMaxRequests = n
	}
	return c
}

// Breaker is a circuit breaker over a rolling window of call outcomes.
type Breaker struct {
	mu  sync.Mutex
	cfg BreakerConfig
	now func() time.Time

	state    BreakerState
	outcomes []bool // true = failure
	next     int
	filled   int

	openedAt          time.Time
	halfOpenInFlight  int
	halfOpenSuccesses int
}

// NewBreaker creates a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{
		cfg:      cfg,
		now:      time.Now,
		state:    StateClosed,
		outcomes: make([]bool, cfg.windowSize),
	}
}

// State returns the current state, applying the open-to-half-open transition
// when the recovery timeout has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecover()
	return b.state
}

// maybeRecover must be called with b.mu held.
func (b *Breaker) maybeRecover() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.recoveryTimeout {
		b.state = StateHalfOpen
		b.halfOpenInFlight = 0
		b.halfOpenSuccesses = 0
	}
}

// IsCallPermitted reports whether a call may be dispatched. In half-open
// state at most halfOpenMaxRequests probes are in flight at once; a
// permitted call MUST be followed by RecordSuccess or RecordFailure.
func (b *Breaker) IsCallPermitted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecover()
	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.halfOpenInFlight < b.cfg.halfOpenMaxRequests {
			b.halfOpenInFlight++
			return true
		}
		return false
	default:
		return false
	}
}

func (b *Breaker) record(failure bool) {
	b.outcomes[b.next] = failure
	b.next = (b.next + 1) % b.cfg.windowSize
	if b.filled < b.cfg.windowSize {
		b.filled++
	}
}

func (b *Breaker) failureRate() float64 {
	if b.filled == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < b.filled; i++ {
		if b.outcomes[i] {
			failures++
		}
	}
	return float64(failures) / float64(b.filled)
}

func (b *Breaker) resetWindow() {
	for i := range b.outcomes {
		b.outcomes[i] = false
	}
	b.next = 0
	b.filled = 0
}

// RecordSuccess records a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecover()
	switch b.state {
	case StateHalfOpen:
		if b.halfOpenInFlight > 0 {
			b.halfOpenInFlight--
		}
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.halfOpenMaxRequests {
			b.state = StateClosed
			b.resetWindow()
		}
	default:
		b.record(false)
	}
}

// RecordFailure records a failed call outcome, tripping the breaker when the
// window is full and the failure rate crosses the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecover()
	switch b.state {
	case StateHalfOpen:
		if b.halfOpenInFlight > 0 {
			b.halfOpenInFlight--
		}
		b.state = StateOpen
		b.openedAt = b.now()
	case StateClosed:
		b.record(true)
		if b.filled == b.cfg.windowSize && b.failureRate() >= b.cfg.failureThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	default:
		// Already open.
	}
}

// Snapshot reports the breaker's state for diagnostics and persistence.
type BreakerSnapshot struct {
	State       BreakerState `json:"state"`
	FailureRate float64      `json:"failure_rate"`
	WindowFill  int          `json:"window_fill"`
	WindowSize  int          `json:"window_size"`
	OpenedAt    time.Time    `json:"opened_at,omitempty"`
}

// Snapshot returns the current diagnostics view.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecover()
	snap := BreakerSnapshot{
		State:       b.state,
		FailureRate: b.failureRate(),
		WindowFill:  b.filled,
		WindowSize:  b.cfg.windowSize,
	}
	if b.state == StateOpen {
		snap.OpenedAt = b.openedAt
	}
	return snap
}

// Restore forces the breaker into a persisted state. An open breaker keeps
// its original trip time so the recovery clock does not restart.
func (b *Breaker) Restore(state BreakerState, openedAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch state {
	case StateOpen:
		b.state = StateOpen
		if openedAt.IsZero() {
			openedAt = b.now()
		}
		b.openedAt = openedAt
	case StateHalfOpen:
		b.state = StateHalfOpen
		b.halfOpenInFlight = 0
		b.halfOpenSuccesses = 0
	default:
		b.state = StateClosed
		b.resetWindow()
	}
}
