// FILE: logveil/src/internal/pipeline/child_test.go
package pipeline

import (
	"context"
	"testing"
	"time"

	"logveil/src/internal/core"
	"logveil/src/internal/stage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildContextCapturedByValue(t *testing.T) {
	p, ms := newTestPipeline(t, Options{Context: map[string]any{"service": "api"}})
	defer p.Shutdown(context.Background())

	child := p.Child(map[string]any{"handler": "login"})

	// Parent mutations after creation never reach the child.
	p.SetContext("added_later", "parent-only")
	require.NoError(t, child.Info("from child", nil))

	out := ms.decoded(t, 0)
	assert.Equal(t, "api", out["service"])
	assert.Equal(t, "login", out["handler"])
	_, exists := out["added_later"]
	assert.False(t, exists)

	// Child mutations never reach the parent.
	child.SetContext("child_key", "child-only")
	require.NoError(t, p.Info("from parent", nil))

	out = ms.decoded(t, 1)
	_, exists = out["child_key"]
	assert.False(t, exists)
	_, exists = out["handler"]
	assert.False(t, exists)
	assert.Equal(t, "parent-only", out["added_later"])
}

func TestChildExtraWinsOnCollision(t *testing.T) {
	p, ms := newTestPipeline(t, Options{Context: map[string]any{"scope": "root"}})
	defer p.Shutdown(context.Background())

	child := p.Child(map[string]any{"scope": "request"})
	require.NoError(t, child.Info("scoped", nil))

	assert.Equal(t, "request", ms.decoded(t, 0)["scope"])
}

func TestChildSharesStageInstances(t *testing.T) {
	registry := stage.NewRegistry()
	metrics := stage.NewMetrics(time.Minute)
	require.NoError(t, registry.Register("metrics", metrics))

	p, _ := newTestPipeline(t, Options{Registry: registry})
	defer p.Shutdown(context.Background())
	child := p.Child(nil)

	require.NoError(t, p.Info("parent event", nil))
	require.NoError(t, child.Info("child event", nil))

	// One shared instance counts across the family.
	assert.Equal(t, uint64(2), metrics.Snapshot().Total)
}

func TestChildStageListIsIndependent(t *testing.T) {
	p, ms := newTestPipeline(t, Options{})
	defer p.Shutdown(context.Background())
	child := p.Child(nil)

	// A stage registered on the parent afterwards stays parent-local.
	require.NoError(t, p.Registry().Register("drop_all", stage.Func(
		func(ctx context.Context, e *core.Event, rc *stage.RunContext) (stage.Verdict, error) {
			return stage.Stop, nil
		})))

	require.NoError(t, p.Info("parent drops", nil))
	require.NoError(t, child.Info("child delivers", nil))

	require.Equal(t, 1, ms.count())
	assert.Equal(t, "child delivers", ms.decoded(t, 0)["message"])
}

func TestChildShutdownLeavesSharedSinksOpen(t *testing.T) {
	p, ms := newTestPipeline(t, Options{})
	child := p.Child(nil)

	require.NoError(t, child.Shutdown(context.Background()))
	assert.Equal(t, 0, ms.closes)
	assert.ErrorIs(t, child.Info("late", nil), ErrClosed)

	// The family's sinks stay usable until the root shuts down.
	require.NoError(t, p.Info("still open", nil))
	assert.Equal(t, 1, ms.count())

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, 1, ms.closes)
}

func TestChildLevelIndependent(t *testing.T) {
	p, ms := newTestPipeline(t, Options{Level: core.SeverityInfo})
	defer p.Shutdown(context.Background())

	child := p.Child(nil)
	assert.Equal(t, core.SeverityInfo, child.Level(), "child inherits the level at creation")

	child.SetLevel(core.SeverityError)
	require.NoError(t, child.Info("gated on child", nil))
	require.NoError(t, p.Info("passes on parent", nil))

	require.Equal(t, 1, ms.count())
	assert.Equal(t, core.SeverityInfo, p.Level())
}

func TestChildCorrelationInherited(t *testing.T) {
	p, ms := newTestPipeline(t, Options{})
	defer p.Shutdown(context.Background())

	child := p.Child(map[string]any{"request_id": "req-9"})
	require.NoError(t, child.Info("correlated", nil))
	require.NoError(t, child.Info("again", nil))

	assert.Equal(t, "req-9", ms.decoded(t, 0)["request_id"])
	assert.Equal(t, "req-9", ms.decoded(t, 1)["request_id"])
}
