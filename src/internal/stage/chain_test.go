// FILE: logveil/src/internal/stage/chain_test.go
package stage

import (
	"context"
	"errors"
	"testing"

	"logveil/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recording(trace *[]string, name string, v Verdict) Named {
	return Named{Name: name, Stage: Func(func(_ context.Context, _ *core.Event, _ *RunContext) (Verdict, error) {
		*trace = append(*trace, name)
		return v, nil
	})}
}

func TestRunChainOrder(t *testing.T) {
	var trace []string
	stages := []Named{
		recording(&trace, "first", Proceed),
		recording(&trace, "second", Proceed),
		recording(&trace, "third", Proceed),
	}

	e := core.NewEvent(core.SeverityInfo, "hello", nil)
	v, err := RunChain(context.Background(), stages, e, NewRunContext())

	require.NoError(t, err)
	assert.Equal(t, Proceed, v)
	assert.Equal(t, []string{"first", "second", "third"}, trace)
}

func TestRunChainStopShortCircuits(t *testing.T) {
	var trace []string
	stages := []Named{
		recording(&trace, "first", Proceed),
		recording(&trace, "gate", Stop),
		recording(&trace, "never", Proceed),
	}

	e := core.NewEvent(core.SeverityInfo, "hello", nil)
	v, err := RunChain(context.Background(), stages, e, NewRunContext())

	require.NoError(t, err)
	assert.Equal(t, Stop, v)
	assert.Equal(t, []string{"first", "gate"}, trace)
}

func TestRunChainErrorAborts(t *testing.T) {
	var trace []string
	boom := errors.New("boom")
	stages := []Named{
		recording(&trace, "first", Proceed),
		{Name: "broken", Stage: Func(func(_ context.Context, _ *core.Event, _ *RunContext) (Verdict, error) {
			return Proceed, boom
		})},
		recording(&trace, "never", Proceed),
	}

	e := core.NewEvent(core.SeverityInfo, "hello", nil)
	v, err := RunChain(context.Background(), stages, e, NewRunContext())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `stage "broken"`)
	assert.Equal(t, Stop, v)
	assert.Equal(t, []string{"first"}, trace)
}

func TestRunChainPanicRecovered(t *testing.T) {
	var trace []string
	stages := []Named{
		{Name: "explosive", Stage: Func(func(_ context.Context, _ *core.Event, _ *RunContext) (Verdict, error) {
			panic("kaboom")
		})},
		recording(&trace, "never", Proceed),
	}

	e := core.NewEvent(core.SeverityInfo, "hello", nil)
	v, err := RunChain(context.Background(), stages, e, NewRunContext())

	require.Error(t, err)
	assert.Contains(t, err.Error(), `stage "explosive" panicked`)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, Stop, v)
	assert.Empty(t, trace)
}

func TestRunChainEmpty(t *testing.T) {
	e := core.NewEvent(core.SeverityInfo, "hello", nil)
	v, err := RunChain(context.Background(), nil, e, NewRunContext())

	require.NoError(t, err)
	assert.Equal(t, Proceed, v)
}

func TestRunChainEventMutationVisibleDownstream(t *testing.T) {
	stages := []Named{
		{Name: "tagger", Stage: Func(func(_ context.Context, e *core.Event, _ *RunContext) (Verdict, error) {
			e.Message = "tagged: " + e.Message
			return Proceed, nil
		})},
		{Name: "checker", Stage: Func(func(_ context.Context, e *core.Event, _ *RunContext) (Verdict, error) {
			assert.Equal(t, "tagged: hello", e.Message)
			return Proceed, nil
		})},
	}

	e := core.NewEvent(core.SeverityInfo, "hello", nil)
	_, err := RunChain(context.Background(), stages, e, NewRunContext())
	require.NoError(t, err)
	assert.Equal(t, "tagged: hello", e.Message)
}

func TestRunContextBetweenStages(t *testing.T) {
	stages := []Named{
		{Name: "producer", Stage: Func(func(_ context.Context, _ *core.Event, rc *RunContext) (Verdict, error) {
			rc.Set("trace_id", "abc-123")
			return Proceed, nil
		})},
		{Name: "consumer", Stage: Func(func(_ context.Context, _ *core.Event, rc *RunContext) (Verdict, error) {
			v, ok := rc.Get("trace_id")
			require.True(t, ok)
			assert.Equal(t, "abc-123", v)
			return Proceed, nil
		})},
	}

	e := core.NewEvent(core.SeverityInfo, "hello", nil)
	_, err := RunChain(context.Background(), stages, e, NewRunContext())
	require.NoError(t, err)
}

func TestRunContextMissingKey(t *testing.T) {
	rc := NewRunContext()
	_, ok := rc.Get("absent")
	assert.False(t, ok)
}
