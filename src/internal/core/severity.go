// FILE: logveil/src/internal/core/severity.go
package core

import (
	"errors"
	"fmt"
	"strings"
)

// Severity orders event importance from most verbose to least.
type Severity int32

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// ErrInvalidSeverity reports a severity outside the known set.
var ErrInvalidSeverity = errors.New("invalid severity")

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int32(s))
	}
}

// Valid reports whether s is one of the four defined levels.
func (s Severity) Valid() bool {
	return s >= SeverityDebug && s <= SeverityError
}

// ParseSeverity maps a case-insensitive level name to its Severity.
// "warning" and "err" are accepted aliases. On unknown input it returns
// SeverityError alongside ErrInvalidSeverity so callers that ignore the
// error still land on the least verbose level.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return SeverityDebug, nil
	case "info":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "error", "err":
		return SeverityError, nil
	default:
		return SeverityError, fmt.Errorf("%w: %q", ErrInvalidSeverity, name)
	}
}
