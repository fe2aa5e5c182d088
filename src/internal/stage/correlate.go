// FILE: logveil/src/internal/stage/correlate.go
package stage

import (
	"context"

	"logveil/src/internal/core"

	"github.com/google/uuid"
)

// RequestIDKey is the run-context key under which the correlation
// request ID travels between stages.
const RequestIDKey = "request_id"

// Correlate assigns a request ID to events missing one and publishes it
// into the run context for later stages.
type Correlate struct{}

func (Correlate) Execute(_ context.Context, e *core.Event, rc *RunContext) (Verdict, error) {
	if e.Correlation.RequestID == "" {
		if v, ok := rc.Get(RequestIDKey); ok {
			if id, _ := v.(string); id != "" {
				e.Correlation.RequestID = id
			}
		}
	}
	if e.Correlation.RequestID == "" {
		e.Correlation.RequestID = uuid.NewString()
	}
	rc.Set(RequestIDKey, e.Correlation.RequestID)
	return Proceed, nil
}
