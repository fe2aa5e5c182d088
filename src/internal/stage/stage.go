// FILE: logveil/src/internal/stage/stage.go
package stage

import (
	"context"
	"fmt"

	"logveil/src/internal/core"
)

// Verdict tells the chain executor whether to keep going after a stage.
type Verdict int

const (
	// Proceed passes the event to the next stage.
	Proceed Verdict = iota
	// Stop drops the event; no later stage observes it.
	Stop
)

func (v Verdict) String() string {
	if v == Stop {
		return "stop"
	}
	return "proceed"
}

// Stage inspects or mutates one event during a dispatch. Execution is
// sequential on the dispatching goroutine. Implementations that keep
// state across events must synchronize it themselves, since one
// instance may be shared by a whole pipeline family.
type Stage interface {
	Execute(ctx context.Context, e *core.Event, rc *RunContext) (Verdict, error)
}

// Func adapts a plain function to the Stage interface.
type Func func(ctx context.Context, e *core.Event, rc *RunContext) (Verdict, error)

func (f Func) Execute(ctx context.Context, e *core.Event, rc *RunContext) (Verdict, error) {
	return f(ctx, e, rc)
}

// Named pairs a stage with its registration name.
type Named struct {
	Name  string
	Stage Stage
}

// RunContext carries scratch values between the stages of a single
// dispatch. It is owned by the dispatching goroutine and needs no
// locking.
type RunContext struct {
	values map[string]any
}

func NewRunContext() *RunContext {
	return &RunContext{}
}

// Set stores a value for later stages of the same dispatch.
func (rc *RunContext) Set(key string, v any) {
	if rc.values == nil {
		rc.values = make(map[string]any, 4)
	}
	rc.values[key] = v
}

// Get returns a value stored by an earlier stage.
func (rc *RunContext) Get(key string) (any, bool) {
	v, ok := rc.values[key]
	return v, ok
}

// RunChain executes stages in order against one event. A Stop verdict
// short-circuits so later stages never observe the event. A stage
// error or panic aborts the chain; the returned error names the stage.
func RunChain(ctx context.Context, stages []Named, e *core.Event, rc *RunContext) (Verdict, error) {
	for _, ns := range stages {
		v, err := runStage(ctx, ns, e, rc)
		if err != nil {
			return Stop, err
		}
		if v == Stop {
			return Stop, nil
		}
	}
	return Proceed, nil
}

func runStage(ctx context.Context, ns Named, e *core.Event, rc *RunContext) (v Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = Stop
			err = fmt.Errorf("stage %q panicked: %v", ns.Name, r)
		}
	}()
	v, err = ns.Stage.Execute(ctx, e, rc)
	if err != nil {
		return Stop, fmt.Errorf("stage %q: %w", ns.Name, err)
	}
	return v, nil
}
