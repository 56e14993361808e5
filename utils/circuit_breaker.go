package utils

import (
	"sync"
	"time"
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

// Breaker is a small circuit breaker for outbound provider calls. It never
// retries; it only decides whether a call may be attempted at all. Callers
// ask Allow before the request and Record the outcome after it.
type Breaker struct {
	name         string
	maxFailures  uint32
	openTimeout  time.Duration
	countWindow  time.Duration

	mutex        sync.Mutex
	state        BreakerState
	failures     uint32
	windowStart  time.Time
	openedAt     time.Time
	halfOpenBusy bool
}

func NewBreaker(name string) *Breaker {
	return &Breaker{
		name:        name,
		maxFailures: 5,
		openTimeout: 30 * time.Second,
		countWindow: 60 * time.Second,
		state:       BreakerClosed,
	}
}

// Allow reports whether a call may proceed. In the half-open state only one
// probe call is admitted at a time.
func (b *Breaker) Allow() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := time.Now()

	switch b.state {
	case BreakerOpen:
		if now.Sub(b.openedAt) < b.openTimeout {
			return false
		}
		b.state = BreakerHalfOpen
		b.halfOpenBusy = true
		return true

	case BreakerHalfOpen:
		if b.halfOpenBusy {
			return false
		}
		b.halfOpenBusy = true
		return true

	default:
		if now.Sub(b.windowStart) > b.countWindow {
			b.windowStart = now
			b.failures = 0
		}
		return true
	}
}

// Record feeds the outcome of an admitted call back into the breaker.
func (b *Breaker) Record(success bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.state == BreakerHalfOpen {
		b.halfOpenBusy = false
		if success {
			b.state = BreakerClosed
			b.failures = 0
			b.windowStart = time.Now()
		} else {
			b.state = BreakerOpen
			b.openedAt = time.Now()
		}
		return
	}

	if success {
		b.failures = 0
		return
	}

	b.failures++
	if b.failures >= b.maxFailures {
		b.state = BreakerOpen
		b.openedAt = time.Now()
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}
