// FILE: logveil/src/internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"logveil/src/internal/core"
	"logveil/src/internal/format"
	"logveil/src/internal/redact"
	"logveil/src/internal/sink"
	"logveil/src/internal/stage"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// ErrClosed reports a dispatch against a pipeline that has been shut
// down.
var ErrClosed = errors.New("pipeline closed")

// Pipeline drives events through the stage chain, redaction, a single
// format pass, and fan-out to every sink. Dispatches may run
// concurrently from any number of producer goroutines.
type Pipeline struct {
	name    string
	level   atomic.Int32
	devMode bool

	ctxMu   sync.RWMutex
	context map[string]any

	registry  *stage.Registry
	redactor  *redact.Redactor
	formatter format.Formatter
	sinks     []sink.Sink

	// root marks the pipeline that owns sink lifecycles. Children share
	// the sinks but never close them.
	root bool

	logger  *log.Logger
	notices *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	Stats *Counters
}

// Counters tracks per-pipeline dispatch outcomes. Children keep their
// own; family-wide aggregation lives in shared stage instances.
type Counters struct {
	StartTime       time.Time
	TotalDispatched atomic.Uint64
	TotalGated      atomic.Uint64
	TotalStopped    atomic.Uint64
	TotalFailed     atomic.Uint64
	TotalDelivered  atomic.Uint64
	SinkFailures    atomic.Uint64
}

// Options configures a new root pipeline. Zero-value fields get safe
// defaults; only a formatter construction failure can error.
type Options struct {
	Name      string
	Level     core.Severity
	DevMode   bool
	Context   map[string]any
	Registry  *stage.Registry
	Redactor  *redact.Redactor
	Formatter format.Formatter
	Sinks     []sink.Sink
	Logger    *log.Logger
}

// New creates a root pipeline that owns its sinks.
func New(opts Options) (*Pipeline, error) {
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}
	if opts.Registry == nil {
		opts.Registry = stage.NewRegistry()
	}
	if opts.Redactor == nil {
		r, err := redact.New(redact.DefaultPolicy())
		if err != nil {
			return nil, fmt.Errorf("default redaction policy: %w", err)
		}
		opts.Redactor = r
	}
	if opts.Formatter == nil {
		f, err := format.New("json", nil, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("default formatter: %w", err)
		}
		opts.Formatter = f
	}

	level := opts.Level
	if !level.Valid() {
		// Malformed threshold falls back to least verbose rather than
		// failing construction.
		opts.Logger.Warn("msg", "Invalid severity threshold, using error",
			"component", "pipeline",
			"pipeline", opts.Name,
			"level", int32(level))
		level = core.SeverityError
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		name:      opts.Name,
		devMode:   opts.DevMode,
		context:   core.NormalizeAttrs(opts.Context),
		registry:  opts.Registry,
		redactor:  opts.Redactor,
		formatter: opts.Formatter,
		sinks:     append([]sink.Sink(nil), opts.Sinks...),
		root:      true,
		logger:    opts.Logger,
		notices:   rate.NewLimiter(rate.Every(time.Second), 10),
		ctx:       ctx,
		cancel:    cancel,
		Stats:     &Counters{StartTime: time.Now()},
	}
	p.level.Store(int32(level))

	p.logger.Info("msg", "Pipeline created",
		"component", "pipeline",
		"pipeline", p.name,
		"level", level.String(),
		"stages", p.registry.Len(),
		"sinks", len(p.sinks))
	return p, nil
}

// Dispatch runs one event through the pipeline. Only contract
// violations surface to the caller: an unknown severity or a dispatch
// after shutdown. Stage, formatter, and sink failures are contained
// and reported through the ops logger.
func (p *Pipeline) Dispatch(sev core.Severity, msg string, attrs map[string]any, callErr error) error {
	if !sev.Valid() {
		return fmt.Errorf("%w: %d", core.ErrInvalidSeverity, int32(sev))
	}
	if p.closed.Load() {
		return ErrClosed
	}

	// Threshold gate runs before any merge work.
	if sev < core.Severity(p.level.Load()) {
		p.Stats.TotalGated.Add(1)
		return nil
	}
	p.Stats.TotalDispatched.Add(1)

	e := core.NewEvent(sev, msg, p.buildAttrs(attrs, callErr))
	liftCorrelation(e)

	verdict, err := stage.RunChain(p.ctx, p.registry.Snapshot(), e, stage.NewRunContext())
	if err != nil {
		p.Stats.TotalFailed.Add(1)
		p.notice("Stage chain aborted", "error", err)
		return nil
	}
	if verdict == stage.Stop {
		p.Stats.TotalStopped.Add(1)
		return nil
	}

	e.Attrs = p.redactor.Redact(e.Attrs)

	data, err := p.formatter.Format(e)
	if err != nil {
		p.Stats.TotalFailed.Add(1)
		p.notice("Formatter failed",
			"formatter", p.formatter.Name(),
			"error", err)
		return nil
	}

	record := core.Record{Data: data, Severity: e.Severity}
	for _, s := range p.sinks {
		if werr := s.Write(record); werr != nil {
			p.Stats.SinkFailures.Add(1)
			p.notice("Sink write failed",
				"sink", s.GetStats().Type,
				"error", werr)
		}
	}
	p.Stats.TotalDelivered.Add(1)
	return nil
}

// Debug dispatches at debug severity.
func (p *Pipeline) Debug(msg string, attrs map[string]any) error {
	return p.Dispatch(core.SeverityDebug, msg, attrs, nil)
}

// Info dispatches at info severity.
func (p *Pipeline) Info(msg string, attrs map[string]any) error {
	return p.Dispatch(core.SeverityInfo, msg, attrs, nil)
}

// Warn dispatches at warn severity.
func (p *Pipeline) Warn(msg string, attrs map[string]any) error {
	return p.Dispatch(core.SeverityWarn, msg, attrs, nil)
}

// Error dispatches at error severity with sanitized error fields.
func (p *Pipeline) Error(msg string, callErr error, attrs map[string]any) error {
	return p.Dispatch(core.SeverityError, msg, attrs, callErr)
}

// buildAttrs merges ambient context, normalized per-call attributes,
// and sanitized error fields. Per-call keys win over ambient ones.
func (p *Pipeline) buildAttrs(attrs map[string]any, callErr error) map[string]any {
	p.ctxMu.RLock()
	merged := make(map[string]any, len(p.context)+len(attrs)+3)
	for k, v := range p.context {
		merged[k] = v
	}
	p.ctxMu.RUnlock()

	for k, v := range attrs {
		merged[k] = core.Normalize(v)
	}

	if callErr != nil {
		merged["error.name"] = sanitizeField(fmt.Sprintf("%T", callErr))
		merged["error.message"] = sanitizeField(callErr.Error())
		if p.devMode {
			merged["error.stack"] = string(debug.Stack())
		}
	}
	return merged
}

// liftCorrelation moves well-known identifier attributes into the
// event's correlation block so formatters emit them once.
func liftCorrelation(e *core.Event) {
	if v, ok := e.Attrs["request_id"].(string); ok && v != "" {
		e.Correlation.RequestID = v
		delete(e.Attrs, "request_id")
	}
	if v, ok := e.Attrs["session_id"].(string); ok && v != "" {
		e.Correlation.SessionID = v
		delete(e.Attrs, "session_id")
	}
	if v, ok := e.Attrs["user_id"].(string); ok && v != "" {
		e.Correlation.UserID = v
		delete(e.Attrs, "user_id")
	}
}

// sanitizeField strips control characters and caps the byte length on
// a rune boundary.
func sanitizeField(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if len(s) <= core.MaxErrorFieldBytes {
		return s
	}
	cut := core.MaxErrorFieldBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// SetLevel changes the minimum severity for this pipeline only.
func (p *Pipeline) SetLevel(sev core.Severity) {
	if !sev.Valid() {
		p.notice("Invalid severity threshold ignored", "level", int32(sev))
		return
	}
	p.level.Store(int32(sev))
}

// Level returns the current minimum severity.
func (p *Pipeline) Level() core.Severity {
	return core.Severity(p.level.Load())
}

// SetContext stores an ambient attribute on this pipeline only.
// Already-created children and the parent are unaffected.
func (p *Pipeline) SetContext(key string, v any) {
	p.ctxMu.Lock()
	defer p.ctxMu.Unlock()
	if p.context == nil {
		p.context = make(map[string]any, 4)
	}
	p.context[key] = core.Normalize(v)
}

// ClearContext drops all ambient attributes of this pipeline only.
func (p *Pipeline) ClearContext() {
	p.ctxMu.Lock()
	defer p.ctxMu.Unlock()
	p.context = nil
}

// notice emits a throttled operational warning. The throttle keeps a
// failing sink or stage from flooding the ops log.
func (p *Pipeline) notice(msg string, kv ...any) {
	if !p.notices.Allow() {
		return
	}
	args := append([]any{"msg", msg, "component", "pipeline", "pipeline", p.name}, kv...)
	p.logger.Warn(args...)
}

// Shutdown stops the pipeline. The root closes every sink, waiting up
// to the context deadline; children leave shared sinks untouched.
// Subsequent calls return nil immediately.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.logger.Info("msg", "Shutting down pipeline",
		"component", "pipeline",
		"pipeline", p.name,
		"root", p.root)
	p.cancel()

	var firstErr error
	if p.root {
		var wg sync.WaitGroup
		var errMu sync.Mutex
		for _, s := range p.sinks {
			wg.Add(1)
			go func(s sink.Sink) {
				defer wg.Done()
				if err := s.Close(); err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
				}
			}(s)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errMu.Lock()
			firstErr = fmt.Errorf("sink close timed out: %w", ctx.Err())
			errMu.Unlock()
		}
	}

	p.logger.Info("msg", "Pipeline shutdown complete",
		"component", "pipeline",
		"pipeline", p.name,
		"dispatched", p.Stats.TotalDispatched.Load(),
		"delivered", p.Stats.TotalDelivered.Load(),
		"stopped", p.Stats.TotalStopped.Load(),
		"failed", p.Stats.TotalFailed.Load(),
		"sink_failures", p.Stats.SinkFailures.Load())
	return firstErr
}

// GetStats returns a point-in-time statistics snapshot.
func (p *Pipeline) GetStats() map[string]any {
	stages := p.registry.Snapshot()
	stageStats := make(map[string]any, len(stages))
	for _, ns := range stages {
		if sg, ok := ns.Stage.(interface{ GetStats() map[string]any }); ok {
			stageStats[ns.Name] = sg.GetStats()
		}
	}

	sinkStats := make([]map[string]any, 0, len(p.sinks))
	for _, s := range p.sinks {
		stats := s.GetStats()
		sinkStats = append(sinkStats, map[string]any{
			"type":          stats.Type,
			"total_written": stats.TotalWritten,
			"total_failed":  stats.TotalFailed,
			"start_time":    stats.StartTime,
			"last_write":    stats.LastWrite,
			"details":       stats.Details,
		})
	}

	return map[string]any{
		"name":             p.name,
		"level":            p.Level().String(),
		"uptime_seconds":   int(time.Since(p.Stats.StartTime).Seconds()),
		"total_dispatched": p.Stats.TotalDispatched.Load(),
		"total_gated":      p.Stats.TotalGated.Load(),
		"total_stopped":    p.Stats.TotalStopped.Load(),
		"total_failed":     p.Stats.TotalFailed.Load(),
		"total_delivered":  p.Stats.TotalDelivered.Load(),
		"sink_failures":    p.Stats.SinkFailures.Load(),
		"stages":           stageStats,
		"sinks":            sinkStats,
		"stage_count":      len(stages),
		"sink_count":       len(p.sinks),
	}
}
