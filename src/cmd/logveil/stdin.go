// FILE: logveil/src/cmd/logveil/stdin.go
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync/atomic"

	"logveil/src/internal/core"
	"logveil/src/internal/pipeline"

	"github.com/lixenwraith/log"
)

// Ceiling for a single stdin line. Longer lines are reported and
// skipped by the scanner.
const maxLineBytes = 1024 * 1024

// stdinPump reads newline-delimited log lines from an input stream and
// dispatches them into the pipeline. JSON object lines are decoded into
// severity, message, and attributes; anything else is dispatched as a
// plain message with the severity guessed from level tokens.
type stdinPump struct {
	p      *pipeline.Pipeline
	logger *log.Logger

	totalLines      atomic.Uint64
	structuredLines atomic.Uint64

	// Closed when the input stream is exhausted
	done chan struct{}
}

func newStdinPump(p *pipeline.Pipeline, logger *log.Logger) *stdinPump {
	return &stdinPump{
		p:      p,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run consumes the reader until EOF or until the pipeline refuses
// further dispatches. Meant to be called on its own goroutine.
func (sp *stdinPump) Run(r io.Reader) {
	defer close(sp.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		sp.totalLines.Add(1)

		sev, msg, attrs, structured := decodeStructuredLine(line)
		if structured {
			sp.structuredLines.Add(1)
		} else {
			sev, msg = severityFromLine(line), line
		}

		if err := sp.p.Dispatch(sev, msg, attrs, nil); err != nil {
			if errors.Is(err, pipeline.ErrClosed) {
				return
			}
			sp.logger.Warn("msg", "Dispatch refused stdin line",
				"component", "stdin_pump",
				"error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		sp.logger.Error("msg", "Scanner error reading stdin",
			"component", "stdin_pump",
			"error", err)
	}

	sp.logger.Info("msg", "Input stream exhausted",
		"component", "stdin_pump",
		"total_lines", sp.totalLines.Load(),
		"structured_lines", sp.structuredLines.Load())
}

// Done is closed once the input stream is fully consumed.
func (sp *stdinPump) Done() <-chan struct{} {
	return sp.done
}

// decodeStructuredLine interprets a JSON object line. The message is
// taken from "msg" or "message", the severity from "level" or
// "severity", and every other field becomes an event attribute.
func decodeStructuredLine(line string) (core.Severity, string, map[string]any, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return 0, "", nil, false
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return 0, "", nil, false
	}

	msg, _ := raw["msg"].(string)
	if msg == "" {
		msg, _ = raw["message"].(string)
	}
	if msg == "" {
		// Structured but message-less: keep the raw line visible
		msg = trimmed
	}

	levelName, _ := raw["level"].(string)
	if levelName == "" {
		levelName, _ = raw["severity"].(string)
	}
	sev := core.SeverityInfo
	if levelName != "" {
		if parsed, err := core.ParseSeverity(levelName); err == nil {
			sev = parsed
		}
	}

	for _, key := range []string{"msg", "message", "level", "severity", "time", "timestamp"} {
		delete(raw, key)
	}
	if len(raw) == 0 {
		raw = nil
	}

	return sev, msg, raw, true
}

var severityTokens = []struct {
	tokens []string
	sev    core.Severity
}{
	{[]string{"[ERROR]", "ERROR:", " ERROR ", "ERR:", "[ERR]", "FATAL:", "[FATAL]"}, core.SeverityError},
	{[]string{"[WARN]", "WARN:", " WARN ", "WARNING:", "[WARNING]"}, core.SeverityWarn},
	{[]string{"[INFO]", "INFO:", " INFO ", "[INF]", "INF:"}, core.SeverityInfo},
	{[]string{"[DEBUG]", "DEBUG:", " DEBUG ", "[DBG]", "DBG:", "[TRACE]", "TRACE:", " TRACE "}, core.SeverityDebug},
}

// severityFromLine scans a plain text line for conventional level
// markers. Unknown lines default to info.
func severityFromLine(line string) core.Severity {
	upperLine := strings.ToUpper(line)
	for _, group := range severityTokens {
		for _, token := range group.tokens {
			if strings.Contains(upperLine, token) {
				return group.sev
			}
		}
	}
	return core.SeverityInfo
}
