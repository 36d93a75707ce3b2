package retry

import (
	"sync"
	"time"
)

// Scheduler tracks per-submission attempt counts and computes bounded
// exponential backoff. Delays stay in the low-millisecond range so the total
// worst-case backoff of a submission remains well under any client-visible
// timeout.
type Scheduler struct {
	mu          sync.Mutex
	attempts    map[string]int
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func NewScheduler(maxAttempts int, baseDelay, maxDelay time.Duration) *Scheduler {
	return &Scheduler{
		attempts:    make(map[string]int),
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// Failure registers a failed pass over the preference order. It returns the
// backoff to sleep before requeueing, or exhausted=true once the retry budget
// is spent, at which point the attempt state is dropped.
func (s *Scheduler) Failure(correlationID string) (delay time.Duration, exhausted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt := s.attempts[correlationID]
	if attempt >= s.maxAttempts {
		delete(s.attempts, correlationID)
		return 0, true
	}

	s.attempts[correlationID] = attempt + 1

	delay = s.baseDelay << attempt
	if delay > s.maxDelay {
		delay = s.maxDelay
	}
	return delay, false
}

// Clear removes the attempt state once a submission succeeded.
func (s *Scheduler) Clear(correlationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, correlationID)
}

func (s *Scheduler) Attempts(correlationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[correlationID]
}

// Snapshot copies the attempt table for the shared state sync.
func (s *Scheduler) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.attempts))
	for id, n := range s.attempts {
		out[id] = n
	}
	return out
}

// MergeCounts imports attempt counts recorded by other instances for ids this
// instance has not seen.
func (s *Scheduler) MergeCounts(remote map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range remote {
		if _, ok := s.attempts[id]; !ok {
			s.attempts[id] = n
		}
	}
}

func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = make(map[string]int)
}
