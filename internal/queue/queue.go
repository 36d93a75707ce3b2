package queue

import (
	"sync"

	"pulso/internal/model"
)

// DispatchQueue is the ordered work queue of pending submissions. A single
// mutex guards both the item list and the in-flight set so a batch claim is
// atomic: an item is removed from the queue and marked in-flight before any
// worker touches it.
type DispatchQueue struct {
	mu       sync.Mutex
	items    []model.QueuedItem
	queued   map[string]int
	inFlight map[string]struct{}
	capacity int
}

func NewDispatchQueue(capacity int) *DispatchQueue {
	return &DispatchQueue{
		queued:   make(map[string]int),
		inFlight: make(map[string]struct{}),
		capacity: capacity,
	}
}

// Enqueue appends a fresh submission to the tail with a zeroed attempt count.
func (q *DispatchQueue) Enqueue(item model.QueuedItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		return model.ErrQueueFull
	}

	item.Attempt = 0
	q.items = append(q.items, item)
	q.queued[item.CorrelationID]++
	return nil
}

// ClaimBatch removes up to maxSize items from the head that are not already
// in-flight and marks them claimed. Items whose id is still in-flight stay
// queued and are skipped until the earlier claim is released.
func (q *DispatchQueue) ClaimBatch(maxSize int) []model.QueuedItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || maxSize <= 0 {
		return nil
	}

	var claimed []model.QueuedItem
	var remaining []model.QueuedItem

	for i, item := range q.items {
		if len(claimed) >= maxSize {
			remaining = append(remaining, q.items[i:]...)
			break
		}
		if _, busy := q.inFlight[item.CorrelationID]; busy {
			remaining = append(remaining, item)
			continue
		}
		q.inFlight[item.CorrelationID] = struct{}{}
		// The queued entry counts copies: a duplicate enqueue of the same
		// id must keep Has true until its last copy leaves the queue.
		if q.queued[item.CorrelationID] > 1 {
			q.queued[item.CorrelationID]--
		} else {
			delete(q.queued, item.CorrelationID)
		}
		claimed = append(claimed, item)
	}

	q.items = remaining
	return claimed
}

// Release drops the in-flight claim for an id once its processing attempt
// finished, whatever the outcome was.
func (q *DispatchQueue) Release(correlationID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, correlationID)
}

// Requeue appends a failed item to the tail with an incremented attempt
// count. It never rejects: a claimed item must not be silently lost, so the
// capacity bound applies to fresh submissions only.
func (q *DispatchQueue) Requeue(item model.QueuedItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item.Attempt++
	q.items = append(q.items, item)
	q.queued[item.CorrelationID]++
}

// Adopt inserts an item learned from another instance, preserving its attempt
// count. Returns false when the id is already queued or in-flight here.
func (q *DispatchQueue) Adopt(item model.QueuedItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.queued[item.CorrelationID] > 0 {
		return false
	}
	if _, ok := q.inFlight[item.CorrelationID]; ok {
		return false
	}

	q.items = append(q.items, item)
	q.queued[item.CorrelationID]++
	return true
}

func (q *DispatchQueue) Has(correlationID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.queued[correlationID] > 0 {
		return true
	}
	_, ok := q.inFlight[correlationID]
	return ok
}

func (q *DispatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *DispatchQueue) InFlightCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

// Pending returns a copy of the queued items, used by the shared state sync.
func (q *DispatchQueue) Pending() []model.QueuedItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.QueuedItem, len(q.items))
	copy(out, q.items)
	return out
}

func (q *DispatchQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
	q.queued = make(map[string]int)
	q.inFlight = make(map[string]struct{})
}
