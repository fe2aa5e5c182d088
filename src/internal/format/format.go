// FILE: logveil/src/internal/format/format.go
package format

import (
	"fmt"

	"logveil/src/internal/core"

	"github.com/lixenwraith/log"
)

// Formatter defines the interface for rendering an Event into the byte
// form a sink persists.
type Formatter interface {
	// Format renders an event, newline-terminated.
	Format(e *core.Event) ([]byte, error)

	// Name returns the formatter type name
	Name() string
}

// New creates a new Formatter based on the provided configuration.
func New(name string, options map[string]any, logger *log.Logger) (Formatter, error) {
	// Default to structured output
	if name == "" {
		name = "json"
	}

	switch name {
	case "json":
		return NewJSONFormatter(options, logger)
	case "text":
		return NewTextFormatter(options, logger)
	case "raw":
		return NewRawFormatter(options, logger)
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", name)
	}
}

// optString reads a string option, falling back when absent or empty.
func optString(options map[string]any, key, fallback string) string {
	if v, ok := options[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func optBool(options map[string]any, key string) bool {
	v, ok := options[key].(bool)
	return ok && v
}
