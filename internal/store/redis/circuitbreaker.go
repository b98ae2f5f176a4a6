package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// ErrCircuitOpen is returned without calling Redis while the breaker is open.
var ErrCircuitOpen = errors.New("redis circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = 0 // calls pass through
	StateOpen     State = 1 // calls rejected until the reset timeout
	StateHalfOpen State = 2 // one trial call allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards Redis round trips so a dead Redis costs the snapshot
// path one fast error instead of a dial timeout per snapshot.
//
// maxFailures consecutive failures open the breaker for resetTimeout. The
// first call after that is a trial: success closes the breaker, failure
// reopens it. Other calls are rejected while the trial is in flight.
// A redis.Nil reply or a cancelled context is not a failure.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	openedAt     time.Time
	inTrial      bool

	// OnStateChange is called on every transition, under the breaker lock.
	OnStateChange func(from, to State)
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Execute runs fn unless the breaker rejects the call with ErrCircuitOpen.
// fn's error is returned unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, err := cb.allow()
	if err != nil {
		return err
	}
	err = fn()
	cb.record(trial, err)
	return err
}

func (cb *CircuitBreaker) allow() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) <= cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	case StateHalfOpen:
		if cb.inTrial {
			return false, ErrCircuitOpen
		}
	default:
		return false, nil
	}
	cb.inTrial = true
	return true, nil
}

func (cb *CircuitBreaker) record(trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if trial {
		cb.inTrial = false
	}

	if !isFailure(err) {
		if cb.state == StateHalfOpen {
			cb.transition(StateClosed)
		}
		cb.failures = 0
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.openedAt = time.Now()
		if cb.state != StateOpen {
			cb.transition(StateOpen)
		}
	}
}

func isFailure(err error) bool {
	return err != nil &&
		!errors.Is(err, goredis.Nil) &&
		!errors.Is(err, context.Canceled)
}

// CurrentState returns the current circuit breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
