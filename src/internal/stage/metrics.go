// FILE: logveil/src/internal/stage/metrics.go
package stage

import (
	"context"
	"sync"
	"time"

	"logveil/src/internal/core"
	"logveil/src/internal/rate"
)

// Metrics is a pass-through stage accumulating traffic counters:
// per-severity totals, average event size, last-seen timestamp, and
// events per minute over a sliding window.
type Metrics struct {
	mu         sync.Mutex
	bySeverity map[core.Severity]uint64
	total      uint64
	sizeSum    uint64
	lastSeen   time.Time

	acct   *rate.Accountant
	window time.Duration
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Total         uint64
	BySeverity    map[string]uint64
	AvgEventBytes float64
	LastSeen      time.Time
	PerMinute     float64
}

func NewMetrics(window time.Duration) *Metrics {
	if window <= 0 {
		window = core.DefaultFrequencyWindow
	}
	return &Metrics{
		bySeverity: make(map[core.Severity]uint64, 4),
		acct:       rate.NewAccountant(window),
		window:     window,
	}
}

// Execute implements Stage. It always proceeds.
func (m *Metrics) Execute(_ context.Context, e *core.Event, _ *RunContext) (Verdict, error) {
	m.mu.Lock()
	m.bySeverity[e.Severity]++
	m.total++
	m.sizeSum += uint64(e.RawSize)
	if e.Time.After(m.lastSeen) {
		m.lastSeen = e.Time
	}
	m.mu.Unlock()

	m.acct.Record(e.Time)
	return Proceed, nil
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	snap := MetricsSnapshot{
		Total:      m.total,
		LastSeen:   m.lastSeen,
		BySeverity: make(map[string]uint64, len(m.bySeverity)),
	}
	for sev, n := range m.bySeverity {
		snap.BySeverity[sev.String()] = n
	}
	if m.total > 0 {
		snap.AvgEventBytes = float64(m.sizeSum) / float64(m.total)
	}
	m.mu.Unlock()

	snap.PerMinute = float64(m.acct.CountInWindow(m.window)) / m.window.Minutes()
	return snap
}

// GetStats exposes the snapshot in the map shape pipeline stats expect.
func (m *Metrics) GetStats() map[string]any {
	snap := m.Snapshot()
	return map[string]any{
		"total":           snap.Total,
		"by_severity":     snap.BySeverity,
		"avg_event_bytes": snap.AvgEventBytes,
		"last_seen":       snap.LastSeen,
		"per_minute":      snap.PerMinute,
	}
}
