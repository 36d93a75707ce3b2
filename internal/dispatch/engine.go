package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pulso/internal/ledger"
	"pulso/internal/model"
	"pulso/internal/queue"
	"pulso/internal/retry"
)

// Sender abstracts the processor client so the engine can be exercised
// against fakes.
type Sender interface {
	Send(ctx context.Context, item model.QueuedItem, processor model.ProcessorKind) error
	SendDirect(ctx context.Context, item model.QueuedItem, processor model.ProcessorKind) error
}

type Routing interface {
	PreferenceOrder() []model.ProcessorKind
}

// Engine drains the dispatch queue with a fixed pool of workers. Each worker
// claims a batch, runs every item through the router's preference order, and
// hands successes to the ledger and failures to the retry scheduler. Workers
// poll with a short idle sleep instead of blocking on a wake signal.
type Engine struct {
	queue     *queue.DispatchQueue
	router    Routing
	sender    Sender
	retry     *retry.Scheduler
	ledger    *ledger.Ledger
	workers   int
	batchSize int
	idleSleep time.Duration

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	active      atomic.Int32
	deadLetters atomic.Int64
}

func NewEngine(
	q *queue.DispatchQueue,
	router Routing,
	sender Sender,
	scheduler *retry.Scheduler,
	l *ledger.Ledger,
	workers, batchSize int,
	idleSleep time.Duration,
) *Engine {
	return &Engine{
		queue:     q,
		router:    router,
		sender:    sender,
		retry:     scheduler,
		ledger:    l,
		workers:   workers,
		batchSize: batchSize,
		idleSleep: idleSleep,
	}
}

func (e *Engine) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx)
	}
	slog.Info("dispatch engine started", "workers", e.workers, "batchSize", e.batchSize)
}

// Stop cancels the workers and waits for in-progress batches to finish. No
// new claims happen after Stop returns; whatever is still queued stays queued.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	slog.Info("dispatch engine stopped", "pending", e.queue.Len())
}

func (e *Engine) ActiveWorkers() int {
	return int(e.active.Load())
}

func (e *Engine) DeadLetters() int64 {
	return e.deadLetters.Load()
}

func (e *Engine) worker(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch := e.queue.ClaimBatch(e.batchSize)
		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.idleSleep):
			}
			continue
		}

		e.active.Add(1)

		var batchWG sync.WaitGroup
		for _, item := range batch {
			batchWG.Add(1)
			go func(item model.QueuedItem) {
				defer batchWG.Done()
				e.processItem(ctx, item)
			}(item)
		}
		batchWG.Wait()

		e.active.Add(-1)
	}
}

func (e *Engine) processItem(ctx context.Context, item model.QueuedItem) {
	defer e.queue.Release(item.CorrelationID)

	// Another worker, or another instance via the shared state merge, may
	// have recorded this id already.
	if e.ledger.Has(item.CorrelationID) {
		e.retry.Clear(item.CorrelationID)
		return
	}

	for _, processor := range e.router.PreferenceOrder() {
		err := e.sender.Send(ctx, item, processor)
		if err == nil {
			e.record(item, processor)
			return
		}
		if errors.Is(err, model.ErrDuplicateSubmission) {
			// Already delivered downstream on an earlier attempt that we
			// never saw the response for. Count it as delivered.
			e.record(item, processor)
			return
		}
	}

	delay, exhausted := e.retry.Failure(item.CorrelationID)
	if exhausted {
		e.finalAttempt(ctx, item)
		return
	}

	// Backoff, then back to the tail. A cancelled context still requeues so
	// the item survives shutdown as pending state.
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
	e.queue.Requeue(item)
}

// finalAttempt forces one last send against the secondary processor,
// bypassing the breaker and whatever the health cache says. If it fails the
// item becomes a dead letter: dropped from active processing, counted, and
// logged for operator visibility.
func (e *Engine) finalAttempt(ctx context.Context, item model.QueuedItem) {
	err := e.sender.SendDirect(ctx, item, model.ProcessorSecondary)
	if err == nil || errors.Is(err, model.ErrDuplicateSubmission) {
		e.record(item, model.ProcessorSecondary)
		return
	}

	e.deadLetters.Add(1)
	slog.Warn("payment dead-lettered after retry budget",
		"correlationId", item.CorrelationID,
		"amount", item.Amount,
		"attempts", item.Attempt,
	)
}

func (e *Engine) record(item model.QueuedItem, processor model.ProcessorKind) {
	e.retry.Clear(item.CorrelationID)
	e.ledger.Record(model.ProcessedRecord{
		CorrelationID: item.CorrelationID,
		Amount:        item.Amount,
		SubmittedAt:   item.SubmittedAt,
		Processor:     processor,
		ProcessedAt:   time.Now().UTC(),
	})
}
