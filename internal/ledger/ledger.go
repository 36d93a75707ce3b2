package ledger

import (
	"math"
	"sync"
	"time"

	"pulso/internal/model"
)

// Ledger is the append-only record of payments actually confirmed by a
// processor. It is the source of truth for summary queries; at most one
// record exists per correlationId.
type Ledger struct {
	mu      sync.RWMutex
	records []model.ProcessedRecord
	index   map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{index: make(map[string]struct{})}
}

// Record appends once per correlationId. Returns false when the id was
// already recorded, which callers treat as an ordinary dedup hit.
func (l *Ledger) Record(rec model.ProcessedRecord) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[rec.CorrelationID]; ok {
		return false
	}
	l.index[rec.CorrelationID] = struct{}{}
	l.records = append(l.records, rec)
	return true
}

func (l *Ledger) Has(correlationID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[correlationID]
	return ok
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Summary aggregates count and amount per processor over records whose
// submittedAt falls within [from, to]. Nil bounds are open. Reads see
// whatever has been recorded by the time of the call.
func (l *Ledger) Summary(from, to *time.Time) model.SummaryResponse {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out model.SummaryResponse
	for _, rec := range l.records {
		if from != nil && rec.SubmittedAt.Before(*from) {
			continue
		}
		if to != nil && rec.SubmittedAt.After(*to) {
			continue
		}
		switch rec.Processor {
		case model.ProcessorPrimary:
			out.Default.TotalRequests++
			out.Default.TotalAmount += rec.Amount
		case model.ProcessorSecondary:
			out.Fallback.TotalRequests++
			out.Fallback.TotalAmount += rec.Amount
		}
	}

	out.Default.TotalAmount = roundCents(out.Default.TotalAmount)
	out.Fallback.TotalAmount = roundCents(out.Fallback.TotalAmount)
	return out
}

// Records copies the ledger for the shared state sync.
func (l *Ledger) Records() []model.ProcessedRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.ProcessedRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Merge appends records from another instance whose ids are absent locally.
// Applying the same remote set repeatedly is a no-op.
func (l *Ledger) Merge(remote []model.ProcessedRecord) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := 0
	for _, rec := range remote {
		if _, ok := l.index[rec.CorrelationID]; ok {
			continue
		}
		l.index[rec.CorrelationID] = struct{}{}
		l.records = append(l.records, rec)
		added++
	}
	return added
}

func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	l.index = make(map[string]struct{})
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
