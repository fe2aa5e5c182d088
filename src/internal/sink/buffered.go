// FILE: logveil/src/internal/sink/buffered.go
package sink

import (
	"sync"
	"sync/atomic"
	"time"

	"logveil/src/internal/core"

	"github.com/lixenwraith/log"
)

// BufferedConfig controls queueing ahead of a wrapped sink.
type BufferedConfig struct {
	// Capacity is the queue length that triggers a flush.
	Capacity int
	// FlushInterval flushes whatever is queued, unconditionally.
	FlushInterval time.Duration
}

// BufferedSink queues records and delivers them to the wrapped sink in
// batches, either when the queue reaches capacity or on the interval,
// whichever comes first. A single worker owns delivery, so batches
// reach the wrapped sink in arrival order and producers never block on
// downstream I/O.
type BufferedSink struct {
	wrapped Sink
	cfg     BufferedConfig
	logger  *log.Logger

	mu     sync.Mutex
	queue  []core.Record
	closed bool

	kick      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	// Statistics
	startTime     time.Time
	totalBuffered atomic.Uint64
	totalFlushed  atomic.Uint64
	totalFailed   atomic.Uint64
	flushes       atomic.Uint64
	lastWrite     atomic.Value // time.Time
}

// NewBufferedSink wraps a sink and starts the flush worker.
func NewBufferedSink(wrapped Sink, cfg BufferedConfig, logger *log.Logger) *BufferedSink {
	if cfg.Capacity <= 0 {
		cfg.Capacity = core.DefaultBufferCapacity
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = core.DefaultFlushInterval
	}

	b := &BufferedSink{
		wrapped:   wrapped,
		cfg:       cfg,
		logger:    logger,
		queue:     make([]core.Record, 0, cfg.Capacity),
		kick:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
	b.lastWrite.Store(time.Time{})

	b.wg.Add(1)
	go b.flushLoop()
	return b
}

// Write implements Sink. It appends to the queue and returns without
// performing downstream I/O.
func (b *BufferedSink) Write(rec core.Record) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.queue = append(b.queue, rec)
	full := len(b.queue) >= b.cfg.Capacity
	b.mu.Unlock()

	b.totalBuffered.Add(1)
	b.lastWrite.Store(time.Now())

	if full {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// flushLoop is the single delivery worker. It owns both the interval
// ticker and the capacity kicks.
func (b *BufferedSink) flushLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.kick:
			b.flush()
		case <-ticker.C:
			b.flush()
		case <-b.done:
			return
		}
	}
}

// flush drains the queue and forwards the snapshot downstream. The
// swap is atomic with respect to concurrent appends, so no record is
// delivered twice or lost.
func (b *BufferedSink) flush() {
	b.mu.Lock()
	if len(b.queue) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.queue
	b.queue = make([]core.Record, 0, b.cfg.Capacity)
	b.mu.Unlock()

	b.flushes.Add(1)
	b.deliver(batch)
}

// deliver hands a drained batch to the wrapped sink. Individual record
// failures are logged and skipped; they never abort the batch.
func (b *BufferedSink) deliver(batch []core.Record) {
	if bw, ok := b.wrapped.(BatchWriter); ok {
		if err := bw.WriteBatch(batch); err != nil {
			b.totalFailed.Add(uint64(len(batch)))
			b.logger.Error("msg", "Batch delivery failed",
				"component", "buffered_sink",
				"batch_size", len(batch),
				"error", err)
			return
		}
		b.totalFlushed.Add(uint64(len(batch)))
		return
	}

	for _, rec := range batch {
		if err := b.wrapped.Write(rec); err != nil {
			b.totalFailed.Add(1)
			b.logger.Error("msg", "Record delivery failed",
				"component", "buffered_sink",
				"error", err)
			continue
		}
		b.totalFlushed.Add(1)
	}
}

// Close stops the worker, performs one final flush, and closes the
// wrapped sink. Records accepted before Close are delivered exactly
// once.
func (b *BufferedSink) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		close(b.done)
		b.wg.Wait()

		// The worker has exited; the remaining queue is ours alone.
		b.flush()
		b.closeErr = b.wrapped.Close()
	})
	return b.closeErr
}

func (b *BufferedSink) GetStats() Stats {
	lastWrite, _ := b.lastWrite.Load().(time.Time)

	b.mu.Lock()
	pending := len(b.queue)
	b.mu.Unlock()

	return Stats{
		Type:         "buffered",
		TotalWritten: b.totalFlushed.Load(),
		TotalFailed:  b.totalFailed.Load(),
		StartTime:    b.startTime,
		LastWrite:    lastWrite,
		Details: map[string]any{
			"capacity":       b.cfg.Capacity,
			"flush_interval": b.cfg.FlushInterval.String(),
			"pending":        pending,
			"flushes":        b.flushes.Load(),
			"total_buffered": b.totalBuffered.Load(),
			"wrapped":        b.wrapped.GetStats(),
		},
	}
}
