// FILE: logveil/src/internal/sink/sink.go
package sink

import (
	"errors"
	"time"

	"logveil/src/internal/core"
)

// Sink is an output destination for formatted records. Write must be
// safe for concurrent use; implementations serialize internally.
type Sink interface {
	// Write delivers one formatted record.
	Write(rec core.Record) error

	// Close flushes pending output and releases resources.
	Close() error

	// GetStats returns sink statistics.
	GetStats() Stats
}

// BatchWriter is an optional upgrade for sinks that can deliver a
// drained buffer in a single call. The buffered sink prefers it over
// per-record writes.
type BatchWriter interface {
	WriteBatch(recs []core.Record) error
}

// ErrClosed reports a write against a closed sink.
var ErrClosed = errors.New("sink closed")

// Stats contains statistics about a sink.
type Stats struct {
	Type         string
	TotalWritten uint64
	TotalFailed  uint64
	StartTime    time.Time
	LastWrite    time.Time
	Details      map[string]any
}
