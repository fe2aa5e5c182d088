// FILE: logveil/src/internal/format/json.go
package format

import (
	"encoding/json"
	"fmt"
	"time"

	"logveil/src/internal/core"

	"github.com/lixenwraith/log"
)

// JSONFormatter produces one structured JSON object per event.
type JSONFormatter struct {
	timestampField string
	levelField     string
	messageField   string
	pretty         bool
	logger         *log.Logger
}

// NewJSONFormatter creates a new JSON formatter from configuration options.
// Recognized options: timestamp_field, level_field, message_field, pretty.
func NewJSONFormatter(options map[string]any, logger *log.Logger) (*JSONFormatter, error) {
	return &JSONFormatter{
		timestampField: optString(options, "timestamp_field", "timestamp"),
		levelField:     optString(options, "level_field", "level"),
		messageField:   optString(options, "message_field", "message"),
		pretty:         optBool(options, "pretty"),
		logger:         logger,
	}, nil
}

// Format renders a single event as a JSON line. Standard fields win
// over attributes of the same name; the colliding attribute is dropped
// rather than clobbering the envelope.
func (f *JSONFormatter) Format(e *core.Event) ([]byte, error) {
	output := make(map[string]any, len(e.Attrs)+6)

	output[f.timestampField] = e.Time.Format(time.RFC3339Nano)
	output[f.levelField] = e.Severity.String()
	output[f.messageField] = e.Message

	if e.Correlation.RequestID != "" {
		output["request_id"] = e.Correlation.RequestID
	}
	if e.Correlation.SessionID != "" {
		output["session_id"] = e.Correlation.SessionID
	}
	if e.Correlation.UserID != "" {
		output["user_id"] = e.Correlation.UserID
	}

	for k, v := range e.Attrs {
		if _, exists := output[k]; exists {
			f.logger.Debug("msg", "Attribute shadowed by standard field",
				"component", "json_formatter",
				"key", k)
			continue
		}
		output[k] = v
	}

	var result []byte
	var err error
	if f.pretty {
		result, err = json.MarshalIndent(output, "", "  ")
	} else {
		result, err = json.Marshal(output)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return append(result, '\n'), nil
}

// Name returns the formatter's type name.
func (f *JSONFormatter) Name() string {
	return "json"
}
