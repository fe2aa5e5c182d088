// FILE: logveil/src/internal/rate/accountant.go
package rate

import (
	"sync"
	"time"

	"logveil/src/internal/core"
)

// Accountant tracks event timestamps inside a bounded sliding window.
// It answers how many events landed within any window up to the
// configured maximum and forgets older entries on every recording, so
// memory stays proportional to the event rate times the largest window.
type Accountant struct {
	mu        sync.Mutex
	stamps    []time.Time
	maxWindow time.Duration
	now       func() time.Time
}

// NewAccountant creates an accountant retaining timestamps up to
// maxWindow in the past.
func NewAccountant(maxWindow time.Duration) *Accountant {
	if maxWindow <= 0 {
		maxWindow = core.DefaultFrequencyWindow
	}
	return &Accountant{
		maxWindow: maxWindow,
		now:       time.Now,
	}
}

// Record notes one event at ts, then evicts everything older than the
// retention horizon.
func (a *Accountant) Record(ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stamps = append(a.stamps, ts)
	a.evict(a.now().Add(-a.maxWindow))
}

// CountInWindow returns how many recorded events fall within the last
// d. The old edge is exclusive: a timestamp exactly d ago is outside.
// Windows wider than the retention horizon see retained entries only.
func (a *Accountant) CountInWindow(d time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-d)
	count := 0
	for _, ts := range a.stamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// Evict drops every timestamp at or before cutoff.
func (a *Accountant) Evict(cutoff time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.evict(cutoff)
}

// evict filters in place by threshold comparison rather than positional
// truncation, so out-of-order timestamps cannot survive past the
// horizon. MUST be called with mutex held.
func (a *Accountant) evict(cutoff time.Time) {
	kept := a.stamps[:0]
	for _, ts := range a.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	a.stamps = kept
}

// Len returns the number of retained timestamps.
func (a *Accountant) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.stamps)
}

// MaxWindow returns the retention horizon.
func (a *Accountant) MaxWindow() time.Duration {
	return a.maxWindow
}
