package sharedstate

import (
	"context"
	"sync"

	"pulso/internal/model"
)

// Snapshot is the serializable state one instance publishes for its peers.
// Merging a snapshot is additive and idempotent: entries are keyed by
// correlationId and only adopted when absent locally.
type Snapshot struct {
	AcceptedPayments  []model.PaymentSubmission                    `json:"acceptedPayments"`
	ProcessedPayments []model.ProcessedRecord                      `json:"processedPayments"`
	PendingPayments   []model.QueuedItem                           `json:"pendingPayments"`
	RetryAttempts     map[string]int                               `json:"retryAttempts"`
	HealthChecks      map[model.ProcessorKind]model.HealthSnapshot `json:"healthChecks"`
}

// Medium is the shared key-value surface snapshots travel through. Save
// publishes this instance's snapshot; LoadPeers returns every other
// instance's latest snapshot.
type Medium interface {
	Save(ctx context.Context, instanceID string, data []byte) error
	LoadPeers(ctx context.Context, instanceID string) ([][]byte, error)
}

// MemoryMedium keeps snapshots in a map. Used by tests and by single-process
// setups that still want the merge path exercised.
type MemoryMedium struct {
	mu        sync.Mutex
	snapshots map[string][]byte
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{snapshots: make(map[string][]byte)}
}

func (m *MemoryMedium) Save(_ context.Context, instanceID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[instanceID] = data
	return nil
}

func (m *MemoryMedium) LoadPeers(_ context.Context, instanceID string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	for id, data := range m.snapshots {
		if id == instanceID {
			continue
		}
		out = append(out, data)
	}
	return out, nil
}
