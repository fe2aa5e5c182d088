// FILE: logveil/src/cmd/logveil/status.go
package main

import (
	"context"
	"time"

	"logveil/src/internal/pipeline"
)

// Periodically logs pipeline status
func statusReporter(ctx context.Context, p *pipeline.Pipeline) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Clean shutdown
			return
		case <-ticker.C:
			reportStatus(p)
		}
	}
}

// Logs a one-shot status snapshot of the pipeline
func reportStatus(p *pipeline.Pipeline) {
	if p == nil {
		logger.Warn("msg", "Status reporter: pipeline is nil",
			"component", "status_reporter")
		return
	}

	// Safely get stats with recovery
	defer func() {
		if r := recover(); r != nil {
			logger.Error("msg", "Panic in status reporter",
				"component", "status_reporter",
				"panic", r)
		}
	}()

	stats := p.GetStats()

	statusFields := []any{
		"msg", "Pipeline status",
		"component", "status_reporter",
	}
	if name, ok := stats["name"].(string); ok {
		statusFields = append(statusFields, "pipeline", name)
	}
	for _, key := range []string{
		"total_dispatched", "total_gated", "total_stopped",
		"total_failed", "total_delivered", "sink_failures",
	} {
		if v, ok := stats[key].(uint64); ok {
			statusFields = append(statusFields, key, v)
		}
	}

	// Summarize sink delivery
	if sinks, ok := stats["sinks"].([]map[string]any); ok {
		written := uint64(0)
		failed := uint64(0)
		for _, sinkStats := range sinks {
			if w, ok := sinkStats["total_written"].(uint64); ok {
				written += w
			}
			if f, ok := sinkStats["total_failed"].(uint64); ok {
				failed += f
			}
		}
		statusFields = append(statusFields,
			"sink_written", written,
			"sink_failed", failed)
	}

	logger.Debug(statusFields...)
}
