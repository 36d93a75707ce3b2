package sharedstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"pulso/internal/health"
	"pulso/internal/intake"
	"pulso/internal/ledger"
	"pulso/internal/model"
	"pulso/internal/queue"
	"pulso/internal/retry"
)

// Store periodically publishes this instance's state and merges peer
// snapshots back in, so horizontally scaled instances converge on one logical
// ledger. Sync is best-effort: a failing medium is logged and ignored, it
// never affects local correctness.
type Store struct {
	medium     Medium
	instanceID string
	interval   time.Duration

	queue   *queue.DispatchQueue
	ledger  *ledger.Ledger
	retry   *retry.Scheduler
	monitor *health.Monitor
	gate    *intake.Gate

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewStore(
	medium Medium,
	instanceID string,
	interval time.Duration,
	q *queue.DispatchQueue,
	l *ledger.Ledger,
	scheduler *retry.Scheduler,
	monitor *health.Monitor,
	gate *intake.Gate,
) *Store {
	return &Store{
		medium:     medium,
		instanceID: instanceID,
		interval:   interval,
		queue:      q,
		ledger:     l,
		retry:      scheduler,
		monitor:    monitor,
		gate:       gate,
	}
}

func (s *Store) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sync(ctx)
			}
		}
	}()
	slog.Info("shared state sync started", "instance", s.instanceID, "interval", s.interval)
}

func (s *Store) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Sync runs one publish-then-merge round.
func (s *Store) Sync(ctx context.Context) {
	local := s.collect()

	data, err := json.Marshal(local)
	if err != nil {
		slog.Warn("shared state encode failed", "err", err)
		return
	}
	if err := s.medium.Save(ctx, s.instanceID, data); err != nil {
		slog.Warn("shared state save failed", "err", err)
	}

	peers, err := s.medium.LoadPeers(ctx, s.instanceID)
	if err != nil {
		slog.Warn("shared state load failed", "err", err)
		return
	}

	for _, raw := range peers {
		var remote Snapshot
		if err := json.Unmarshal(raw, &remote); err != nil {
			slog.Warn("shared state decode failed", "err", err)
			continue
		}
		s.merge(remote)
	}
}

func (s *Store) collect() Snapshot {
	healthChecks := make(map[model.ProcessorKind]model.HealthSnapshot)
	for _, p := range []model.ProcessorKind{model.ProcessorPrimary, model.ProcessorSecondary} {
		if snap, ok := s.monitor.Snapshot(p); ok {
			healthChecks[p] = snap
		}
	}

	return Snapshot{
		AcceptedPayments:  s.gate.Accepted(),
		ProcessedPayments: s.ledger.Records(),
		PendingPayments:   s.queue.Pending(),
		RetryAttempts:     s.retry.Snapshot(),
		HealthChecks:      healthChecks,
	}
}

func (s *Store) merge(remote Snapshot) {
	s.gate.MergeAccepted(remote.AcceptedPayments)
	s.ledger.Merge(remote.ProcessedPayments)
	s.retry.MergeCounts(remote.RetryAttempts)

	for processor, snap := range remote.HealthChecks {
		s.monitor.AdoptSnapshot(processor, snap)
	}

	// Pending items move over only when nothing here knows the id: not the
	// ledger, not the queue, not the in-flight set. The peer that published
	// them keeps working on its own copy, so a cross-instance duplicate
	// send stays possible; dedup is local-side only.
	for _, item := range remote.PendingPayments {
		if s.ledger.Has(item.CorrelationID) || s.queue.Has(item.CorrelationID) {
			continue
		}
		s.queue.Adopt(item)
	}
}
