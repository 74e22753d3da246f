package gateway

import (
	"sync"
	"time"
)

const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
)

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerSnapshot is a point-in-time view of the breaker for status
// reporting and tests.
type BreakerSnapshot struct {
	State               BreakerState
	ConsecutiveFailures int
	LastFailureAt       time.Time
}

// Breaker is the protective state machine in front of the upstream API. One
// breaker guards one upstream credential; it lives for the process lifetime
// and is only mutated through the gateway's own call path.
type Breaker struct {
	Threshold int
	Cooldown  time.Duration
	Now       func() time.Time

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	lastFailureAt       time.Time
	probing             bool
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{
		Threshold: threshold,
		Cooldown:  cooldown,
	}
}

// Allow reports whether a call may proceed. An open breaker transitions to
// half-open once the cooldown has elapsed since the last failure; half-open
// admits exactly one in-flight probe, whose recorded outcome decides the
// next transition. Concurrent callers during the probe are refused.
func (b *Breaker) Allow() (BreakerState, bool) {
	if b == nil {
		return StateClosed, true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailureAt) >= b.cooldown() {
			b.state = StateHalfOpen
			b.probing = true
			return StateHalfOpen, true
		}
		return StateOpen, false
	case StateHalfOpen:
		if b.probing {
			return StateHalfOpen, false
		}
		b.probing = true
		return StateHalfOpen, true
	default:
		return StateClosed, true
	}
}

// RecordSuccess resets the breaker to closed with zero failures, whatever
// state it was in.
func (b *Breaker) RecordSuccess() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.consecutiveFailures = 0
	b.state = StateClosed
	b.probing = false
	b.mu.Unlock()
}

// RecordFailure counts one exhausted call and reports whether this failure
// tripped the breaker open.
func (b *Breaker) RecordFailure() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	b.consecutiveFailures++
	b.lastFailureAt = b.now()
	if b.consecutiveFailures >= b.threshold() {
		tripped := b.state != StateOpen
		b.state = StateOpen
		return tripped
	}
	return false
}

func (b *Breaker) Snapshot() BreakerSnapshot {
	if b == nil {
		return BreakerSnapshot{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailureAt:       b.lastFailureAt,
	}
}

func (b *Breaker) now() time.Time {
	if b != nil && b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}

func (b *Breaker) threshold() int {
	if b != nil && b.Threshold > 0 {
		return b.Threshold
	}
	return DefaultFailureThreshold
}

func (b *Breaker) cooldown() time.Duration {
	if b != nil && b.Cooldown > 0 {
		return b.Cooldown
	}
	return DefaultCooldown
}
