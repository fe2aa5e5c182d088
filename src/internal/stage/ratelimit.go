// FILE: logveil/src/internal/stage/ratelimit.go
package stage

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"logveil/src/internal/core"
	"logveil/src/internal/rate"
)

// RateLimitConfig caps event throughput over fixed windows. Zero caps
// are unlimited. Exempt severities bypass both the check and the
// accounting.
type RateLimitConfig struct {
	PerSecond        int64
	PerMinute        int64
	PerHour          int64
	ExemptSeverities []core.Severity
	// OnDrop observes every dropped dispatch with the cumulative
	// dropped count.
	OnDrop func(dropped uint64)
}

type windowLimit struct {
	window time.Duration
	limit  int64
}

// RateLimiter drops events beyond the configured frequency caps. A
// shared instance shares its budget across every pipeline dispatching
// through it.
type RateLimiter struct {
	mu     sync.Mutex
	acct   *rate.Accountant
	limits []windowLimit // tightest window first
	exempt map[core.Severity]bool
	onDrop func(uint64)

	passed  atomic.Uint64
	dropped atomic.Uint64
}

// NewRateLimiter builds the stage. With no caps set it passes
// everything through.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{onDrop: cfg.OnDrop}

	add := func(w time.Duration, limit int64) {
		if limit > 0 {
			rl.limits = append(rl.limits, windowLimit{window: w, limit: limit})
		}
	}
	add(time.Second, cfg.PerSecond)
	add(time.Minute, cfg.PerMinute)
	add(time.Hour, cfg.PerHour)
	sort.Slice(rl.limits, func(i, j int) bool {
		return rl.limits[i].window < rl.limits[j].window
	})
	if len(rl.limits) > 0 {
		rl.acct = rate.NewAccountant(rl.limits[len(rl.limits)-1].window)
	}

	if len(cfg.ExemptSeverities) > 0 {
		rl.exempt = make(map[core.Severity]bool, len(cfg.ExemptSeverities))
		for _, s := range cfg.ExemptSeverities {
			rl.exempt[s] = true
		}
	}
	return rl
}

// Execute implements Stage. The cap check and the recording are atomic
// with respect to concurrent dispatches.
func (rl *RateLimiter) Execute(_ context.Context, e *core.Event, _ *RunContext) (Verdict, error) {
	if rl.acct == nil || rl.exempt[e.Severity] {
		rl.passed.Add(1)
		return Proceed, nil
	}

	rl.mu.Lock()
	over := false
	for _, wl := range rl.limits {
		if int64(rl.acct.CountInWindow(wl.window)) >= wl.limit {
			over = true
			break
		}
	}
	if !over {
		rl.acct.Record(e.Time)
	}
	rl.mu.Unlock()

	if over {
		n := rl.dropped.Add(1)
		if rl.onDrop != nil {
			rl.onDrop(n)
		}
		return Stop, nil
	}
	rl.passed.Add(1)
	return Proceed, nil
}

// GetStats returns rate limiter statistics.
func (rl *RateLimiter) GetStats() map[string]any {
	stats := map[string]any{
		"total_passed":  rl.passed.Load(),
		"total_dropped": rl.dropped.Load(),
	}
	for _, wl := range rl.limits {
		stats["limit_"+wl.window.String()] = wl.limit
	}
	return stats
}
