package circuitbreaker

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// Breaker guards one processor endpoint. It only short-circuits the network
// call: routing decisions are made elsewhere and are not affected by breaker
// state.
type Breaker struct {
	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	maxFailures     int
	cooldown        time.Duration
	resetThreshold  int
}

func NewBreaker(maxFailures int, cooldown time.Duration, resetThreshold int) *Breaker {
	return &Breaker{
		state:          StateClosed,
		maxFailures:    maxFailures,
		cooldown:       cooldown,
		resetThreshold: resetThreshold,
	}
}

// Allow reports whether a call may go out. An open breaker lets one call
// through once the cooldown has elapsed, which moves it toward half-open.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		return time.Since(b.lastFailureTime) >= b.cooldown
	default:
		return true
	}
}

func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successCount++

	switch b.state {
	case StateOpen:
		b.state = StateHalfOpen
		b.successCount = 1
	case StateHalfOpen:
		if b.successCount >= b.resetThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
		}
	}
}

func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = time.Now()

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.maxFailures {
			b.state = StateOpen
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.successCount = 0
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
