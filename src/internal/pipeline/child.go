// FILE: logveil/src/internal/pipeline/child.go
package pipeline

import (
	"context"
	"time"

	"logveil/src/internal/core"
	"logveil/src/internal/sink"
	"logveil/src/internal/stage"

	"golang.org/x/time/rate"
)

// Child derives a pipeline for a narrower scope, e.g. one request.
//
// The ambient context is captured by value at call time and merged
// with extra, extra winning on collision; later SetContext calls on
// either side stay local. Stage instances and sinks are shared with
// the whole family, so stateful stages aggregate across it, but the
// stage list itself is copied: registering or removing stages on one
// pipeline never changes another. The child starts at the parent's
// current level and owns it independently afterward. Shutting down a
// child never closes the shared sinks.
func (p *Pipeline) Child(extra map[string]any) *Pipeline {
	p.ctxMu.RLock()
	merged := make(map[string]any, len(p.context)+len(extra))
	for k, v := range p.context {
		merged[k] = v
	}
	p.ctxMu.RUnlock()

	for k, v := range core.NormalizeAttrs(extra) {
		merged[k] = v
	}

	ctx, cancel := context.WithCancel(p.ctx)
	child := &Pipeline{
		name:      p.name,
		devMode:   p.devMode,
		context:   merged,
		registry:  p.registry.Clone(),
		redactor:  p.redactor,
		formatter: p.formatter,
		sinks:     append([]sink.Sink(nil), p.sinks...),
		root:      false,
		logger:    p.logger,
		notices:   rate.NewLimiter(rate.Every(time.Second), 10),
		ctx:       ctx,
		cancel:    cancel,
		Stats:     &Counters{StartTime: time.Now()},
	}
	child.level.Store(p.level.Load())
	return child
}

// Registry exposes the pipeline's stage registry so callers can
// register, remove, or clear stages at runtime.
func (p *Pipeline) Registry() *stage.Registry {
	return p.registry
}
