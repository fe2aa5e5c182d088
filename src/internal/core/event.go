// FILE: logveil/src/internal/core/event.go
package core

import (
	"time"
)

// Event is a single log record flowing through the pipeline.
// Attrs holds normalized values only; see Normalize.
type Event struct {
	Time        time.Time
	Severity    Severity
	Message     string
	Attrs       map[string]any
	Correlation Correlation
	RawSize     int64
}

// Correlation carries the request-scoped identifiers attached to an event.
type Correlation struct {
	RequestID string
	SessionID string
	UserID    string
}

func (c Correlation) IsZero() bool {
	return c == Correlation{}
}

// Record is one formatted event ready for sink delivery. Severity rides
// along for sinks that route on it.
type Record struct {
	Data     []byte
	Severity Severity
}

// NewEvent stamps the current time and the approximate raw byte size of
// the payload. Attrs must already be normalized.
func NewEvent(sev Severity, msg string, attrs map[string]any) *Event {
	return &Event{
		Time:     time.Now(),
		Severity: sev,
		Message:  msg,
		Attrs:    attrs,
		RawSize:  int64(len(msg)) + EstimateSize(attrs),
	}
}
