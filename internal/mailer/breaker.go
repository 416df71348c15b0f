package mailer

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

// Breaker is a small per-provider circuit breaker. After threshold consecutive
// failures it opens for openFor; then one probe is let through (half-open) and
// its outcome closes or re-opens the circuit.
type Breaker struct {
	mu        sync.Mutex
	state     breakerState
	fails     int
	threshold int
	openFor   time.Duration
	retryAt   time.Time
	probing   bool
	now       func() time.Time
}

func NewBreaker(threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if openFor <= 0 {
		openFor = 15 * time.Second
	}
	return &Breaker{threshold: threshold, openFor: openFor, now: time.Now}
}

// Ready reports whether Acquire could currently succeed, without claiming the probe.
func (b *Breaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		return !b.probing && b.now().After(b.retryAt)
	case stateHalfOpen:
		return !b.probing
	}
	return true
}

// Acquire claims a send slot. In the open state only one caller wins the probe.
func (b *Breaker) Acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.probing || !b.now().After(b.retryAt) {
			return false
		}
		b.state = stateHalfOpen
		b.probing = true
		return true
	case stateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = stateClosed
	b.fails = 0
	b.probing = false
}

// Release gives back a slot from Acquire whose send never reached the
// provider. The breaker state is unchanged.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
}

func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.trip()
		return
	}
	b.fails++
	if b.fails >= b.threshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = stateOpen
	b.retryAt = b.now().Add(b.openFor)
	b.probing = false
}
