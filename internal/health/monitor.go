package health

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"pulso/internal/model"
)

const failedProbeResponseTime = 9999

type probeResponse struct {
	Failing         bool `json:"failing"`
	MinResponseTime int  `json:"minResponseTime"`
}

// Monitor caches one health judgment per processor. The processors rate-limit
// their health endpoint to roughly one call per 5 seconds, so a cached
// snapshot is served until the TTL expires. A failed payment send can force
// the cache to failing immediately via MarkUnhealthy.
type Monitor struct {
	mu      sync.Mutex
	client  *http.Client
	urls    map[model.ProcessorKind]string
	cache   map[model.ProcessorKind]model.HealthSnapshot
	probing map[model.ProcessorKind]struct{}
	ttl     time.Duration
	now     func() time.Time
}

func NewMonitor(primaryURL, secondaryURL string, ttl, probeTimeout time.Duration) *Monitor {
	return &Monitor{
		client: &http.Client{Timeout: probeTimeout},
		urls: map[model.ProcessorKind]string{
			model.ProcessorPrimary:   primaryURL + "/payments/service-health",
			model.ProcessorSecondary: secondaryURL + "/payments/service-health",
		},
		cache:   make(map[model.ProcessorKind]model.HealthSnapshot),
		probing: make(map[model.ProcessorKind]struct{}),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Monitor) IsHealthy(processor model.ProcessorKind) bool {
	m.mu.Lock()
	snap, cached := m.cache[processor]
	if cached && m.now().Sub(snap.ObservedAt) < m.ttl {
		m.mu.Unlock()
		return !snap.Failing
	}

	// One refresh per processor at a time: the health endpoint rate-limits,
	// so concurrent callers serve the stale judgment instead of probing.
	if _, busy := m.probing[processor]; busy {
		m.mu.Unlock()
		if cached {
			return !snap.Failing
		}
		return false
	}
	m.probing[processor] = struct{}{}
	url := m.urls[processor]
	m.mu.Unlock()

	fresh := m.probe(url)

	m.mu.Lock()
	m.cache[processor] = fresh
	delete(m.probing, processor)
	m.mu.Unlock()

	return !fresh.Failing
}

func (m *Monitor) probe(url string) model.HealthSnapshot {
	observed := m.now()

	resp, err := m.client.Get(url)
	if err != nil {
		return model.HealthSnapshot{ObservedAt: observed, Failing: true, MinResponseTime: failedProbeResponseTime}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.HealthSnapshot{ObservedAt: observed, Failing: true, MinResponseTime: failedProbeResponseTime}
	}

	var body probeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Warn("health probe decode failed", "url", url, "err", err)
		return model.HealthSnapshot{ObservedAt: observed, Failing: true, MinResponseTime: failedProbeResponseTime}
	}

	return model.HealthSnapshot{
		ObservedAt:      observed,
		Failing:         body.Failing,
		MinResponseTime: body.MinResponseTime,
	}
}

// MarkUnhealthy overwrites the cache regardless of TTL so the router reacts
// to an actual send failure before the next scheduled probe.
func (m *Monitor) MarkUnhealthy(processor model.ProcessorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache[processor] = model.HealthSnapshot{
		ObservedAt:      m.now(),
		Failing:         true,
		MinResponseTime: failedProbeResponseTime,
	}
}

func (m *Monitor) Snapshot(processor model.ProcessorKind) (model.HealthSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.cache[processor]
	return snap, ok
}

// AdoptSnapshot imports a judgment observed by another instance, only when it
// is fresher than whatever is cached locally.
func (m *Monitor) AdoptSnapshot(processor model.ProcessorKind, snap model.HealthSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if local, ok := m.cache[processor]; ok && !snap.ObservedAt.After(local.ObservedAt) {
		return
	}
	m.cache[processor] = snap
}
