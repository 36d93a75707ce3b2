package intake

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pulso/internal/ledger"
	"pulso/internal/model"
	"pulso/internal/queue"
)

// WorkerObserver reports how many workers are currently busy with a batch.
type WorkerObserver interface {
	ActiveWorkers() int
	DeadLetters() int64
}

// Gate validates and timestamps a submission, enqueues it, and returns
// without waiting on dispatch. The HTTP layer maps a nil return to 202.
type Gate struct {
	queue  *queue.DispatchQueue
	ledger *ledger.Ledger
	pool   WorkerObserver

	mu          sync.Mutex
	acceptedIDs map[string]struct{}
	accepted    []model.PaymentSubmission
}

func NewGate(q *queue.DispatchQueue, l *ledger.Ledger, pool WorkerObserver) *Gate {
	return &Gate{
		queue:       q,
		ledger:      l,
		pool:        pool,
		acceptedIDs: make(map[string]struct{}),
	}
}

// Submit rejects synchronously on a malformed correlationId or a non-positive
// amount; rejected submissions are never enqueued and never counted.
func (g *Gate) Submit(correlationID string, amount float64) error {
	if uuid.Validate(correlationID) != nil {
		return model.ErrInvalidCorrelationID
	}
	if amount <= 0 {
		return model.ErrInvalidAmount
	}

	item := model.QueuedItem{
		CorrelationID: correlationID,
		Amount:        amount,
		SubmittedAt:   time.Now().UTC(),
	}

	// Register before enqueueing so the accepted count never trails the
	// processed count, then roll back if the queue refuses the item.
	g.mu.Lock()
	_, known := g.acceptedIDs[correlationID]
	if !known {
		g.acceptedIDs[correlationID] = struct{}{}
		g.accepted = append(g.accepted, item.Submission())
	}
	g.mu.Unlock()

	if err := g.queue.Enqueue(item); err != nil {
		// A racing duplicate submit may have enqueued the id already; only
		// then the registry entry must outlive this rejection.
		if !known && !g.queue.Has(correlationID) {
			g.forget(correlationID)
		}
		return err
	}

	return nil
}

func (g *Gate) forget(correlationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.acceptedIDs, correlationID)
	for i, sub := range g.accepted {
		if sub.CorrelationID == correlationID {
			g.accepted = append(g.accepted[:i], g.accepted[i+1:]...)
			break
		}
	}
}

func (g *Gate) AcceptedTotal() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int64(len(g.accepted))
}

// Accepted copies the accepted submissions for the shared state sync.
func (g *Gate) Accepted() []model.PaymentSubmission {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]model.PaymentSubmission, len(g.accepted))
	copy(out, g.accepted)
	return out
}

// MergeAccepted imports submissions accepted by other instances, so the
// accepted total converges on one logical count across the deployment.
func (g *Gate) MergeAccepted(remote []model.PaymentSubmission) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, sub := range remote {
		if _, ok := g.acceptedIDs[sub.CorrelationID]; ok {
			continue
		}
		g.acceptedIDs[sub.CorrelationID] = struct{}{}
		g.accepted = append(g.accepted, sub)
	}
}

func (g *Gate) Stats() model.QueueStats {
	// Read processed before accepted so a submission landing in between
	// inflates the accepted count, never the processed one.
	processed := int64(g.ledger.Len())
	return model.QueueStats{
		Pending:        g.queue.Len(),
		ActiveWorkers:  g.pool.ActiveWorkers(),
		AcceptedTotal:  g.AcceptedTotal(),
		ProcessedTotal: processed,
		DeadLetters:    g.pool.DeadLetters(),
	}
}

func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acceptedIDs = make(map[string]struct{})
	g.accepted = nil
}
