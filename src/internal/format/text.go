// FILE: logveil/src/internal/format/text.go
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"logveil/src/internal/core"

	"github.com/lixenwraith/log"
)

const defaultTextTemplate = "[{{FmtTime .Timestamp}}] [{{.Level}}] {{.Message}}{{if .Attrs}} {{.Attrs}}{{end}}"

// Produces human-readable text logs using templates
type TextFormatter struct {
	template        *template.Template
	timestampFormat string
	enableColors    bool
	logger          *log.Logger
}

// NewTextFormatter creates a template-driven text formatter.
// Recognized options: template, timestamp_format, enable_colors.
func NewTextFormatter(options map[string]any, logger *log.Logger) (*TextFormatter, error) {
	f := &TextFormatter{
		timestampFormat: optString(options, "timestamp_format", time.RFC3339),
		enableColors:    optBool(options, "enable_colors"),
		logger:          logger,
	}

	// Create template with helper functions
	funcMap := template.FuncMap{
		"FmtTime": func(t time.Time) string {
			return t.Format(f.timestampFormat)
		},
		"ToUpper":   strings.ToUpper,
		"ToLower":   strings.ToLower,
		"TrimSpace": strings.TrimSpace,
	}

	tmpl, err := template.New("log").Funcs(funcMap).Parse(optString(options, "template", defaultTextTemplate))
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	f.template = tmpl
	return f, nil
}

// Formats the event using the template
func (f *TextFormatter) Format(e *core.Event) ([]byte, error) {
	level := strings.ToUpper(e.Severity.String())
	if f.enableColors {
		level = colorLevel(e.Severity, level)
	}

	data := map[string]any{
		"Timestamp": e.Time,
		"Level":     level,
		"Message":   e.Message,
	}

	if e.Correlation.RequestID != "" {
		data["RequestID"] = e.Correlation.RequestID
	}

	// Attributes render as a compact JSON suffix
	if len(e.Attrs) > 0 {
		if encoded, err := json.Marshal(e.Attrs); err == nil {
			data["Attrs"] = string(encoded)
		}
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		// Fallback: return a basic formatted message
		f.logger.Debug("msg", "Template execution failed, using fallback",
			"component", "text_formatter",
			"error", err)

		fallback := fmt.Sprintf("[%s] [%s] %s\n",
			e.Time.Format(f.timestampFormat),
			level,
			e.Message)
		return []byte(fallback), nil
	}

	// Ensure newline at end
	result := buf.Bytes()
	if len(result) == 0 || result[len(result)-1] != '\n' {
		result = append(result, '\n')
	}

	return result, nil
}

// colorLevel wraps the level token in an ANSI color escape.
func colorLevel(sev core.Severity, level string) string {
	switch sev {
	case core.SeverityError:
		return "\x1b[31m" + level + "\x1b[0m" // red
	case core.SeverityWarn:
		return "\x1b[33m" + level + "\x1b[0m" // yellow
	default:
		return "\x1b[36m" + level + "\x1b[0m" // cyan
	}
}

// Returns the formatter name
func (f *TextFormatter) Name() string {
	return "text"
}
