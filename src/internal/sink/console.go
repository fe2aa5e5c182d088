// FILE: logveil/src/internal/sink/console.go
package sink

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"logveil/src/internal/core"

	"github.com/lixenwraith/log"
)

// ConsoleTarget selects the destination stream.
type ConsoleTarget string

const (
	TargetStdout ConsoleTarget = "stdout"
	TargetStderr ConsoleTarget = "stderr"
	// TargetSplit routes warn and error records to stderr, the rest
	// to stdout.
	TargetSplit ConsoleTarget = "split"
)

// ConsoleSink writes records to the process streams immediately.
type ConsoleSink struct {
	target ConsoleTarget
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	logger *log.Logger

	// Statistics
	startTime    time.Time
	totalWritten atomic.Uint64
	totalFailed  atomic.Uint64
	lastWrite    atomic.Value // time.Time
}

// NewConsoleSink creates a console sink for the given target. An empty
// target defaults to stdout.
func NewConsoleSink(target ConsoleTarget, logger *log.Logger) (*ConsoleSink, error) {
	switch target {
	case "":
		target = TargetStdout
	case TargetStdout, TargetStderr, TargetSplit:
	default:
		return nil, fmt.Errorf("unknown console target: %q", target)
	}

	cs := &ConsoleSink{
		target:    target,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		logger:    logger,
		startTime: time.Now(),
	}
	cs.lastWrite.Store(time.Time{})
	return cs, nil
}

// Write implements Sink. Writes are serialized so concurrent dispatches
// cannot interleave partial lines.
func (cs *ConsoleSink) Write(rec core.Record) error {
	w := cs.stdout
	switch cs.target {
	case TargetStderr:
		w = cs.stderr
	case TargetSplit:
		if rec.Severity >= core.SeverityWarn {
			w = cs.stderr
		}
	}

	cs.mu.Lock()
	_, err := w.Write(rec.Data)
	cs.mu.Unlock()

	if err != nil {
		cs.totalFailed.Add(1)
		return fmt.Errorf("console write: %w", err)
	}
	cs.totalWritten.Add(1)
	cs.lastWrite.Store(time.Now())
	return nil
}

func (cs *ConsoleSink) Close() error {
	return nil
}

func (cs *ConsoleSink) GetStats() Stats {
	lastWrite, _ := cs.lastWrite.Load().(time.Time)

	return Stats{
		Type:         "console",
		TotalWritten: cs.totalWritten.Load(),
		TotalFailed:  cs.totalFailed.Load(),
		StartTime:    cs.startTime,
		LastWrite:    lastWrite,
		Details: map[string]any{
			"target": string(cs.target),
		},
	}
}
