// FILE: logveil/src/internal/core/normalize_test.go
package core

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScalars(t *testing.T) {
	testCases := []struct {
		name     string
		input    any
		expected any
	}{
		{"Nil", nil, nil},
		{"Bool", true, true},
		{"String", "hello", "hello"},
		{"Int", 42, int64(42)},
		{"Int32", int32(-7), int64(-7)},
		{"Uint", uint(9), int64(9)},
		{"Float32", float32(1.5), float64(1.5)},
		{"Bytes", []byte("raw"), "raw"},
		{"Duration", 1500 * time.Millisecond, "1.5s"},
		{"Error", errors.New("boom"), "boom"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Normalize(tc.input))
		})
	}
}

func TestNormalizeTime(t *testing.T) {
	ts := time.Date(2023, 1, 1, 12, 0, 0, 500000000, time.UTC)
	assert.Equal(t, "2023-01-01T12:00:00.5Z", Normalize(ts))
}

func TestNormalizeStringer(t *testing.T) {
	ip := net.IPv4(10, 0, 0, 1)
	assert.Equal(t, "10.0.0.1", Normalize(ip))
}

func TestNormalizeNested(t *testing.T) {
	in := map[string]any{
		"count": 3,
		"tags":  []string{"a", "b"},
		"inner": map[string]any{
			"ratio": float32(0.5),
			"list":  []any{1, "two", nil},
		},
	}

	out := NormalizeAttrs(in)

	expected := map[string]any{
		"count": int64(3),
		"tags":  []any{"a", "b"},
		"inner": map[string]any{
			"ratio": float64(0.5),
			"list":  []any{int64(1), "two", nil},
		},
	}
	assert.Equal(t, expected, out)

	// Input must not be aliased.
	out["inner"].(map[string]any)["ratio"] = float64(9)
	assert.Equal(t, float32(0.5), in["inner"].(map[string]any)["ratio"])
}

func TestNormalizeUnknownType(t *testing.T) {
	type opaque struct{ A int }
	v := Normalize(opaque{A: 1})
	s, ok := v.(string)
	require.True(t, ok)
	assert.Contains(t, s, "1")
}

func TestNormalizeAttrsNil(t *testing.T) {
	assert.Nil(t, NormalizeAttrs(nil))
}

func TestEstimateSize(t *testing.T) {
	assert.Equal(t, int64(4), EstimateSize(nil))
	assert.Equal(t, int64(3), EstimateSize(int64(123)))
	assert.Equal(t, int64(7), EstimateSize("hello"))
	assert.Greater(t, EstimateSize(map[string]any{"k": "v"}), int64(4))
}

func TestNewEvent(t *testing.T) {
	attrs := NormalizeAttrs(map[string]any{"user": "alice"})
	e := NewEvent(SeverityInfo, "login ok", attrs)

	assert.Equal(t, SeverityInfo, e.Severity)
	assert.Equal(t, "login ok", e.Message)
	assert.WithinDuration(t, time.Now(), e.Time, time.Second)
	assert.Greater(t, e.RawSize, int64(len("login ok")))
	assert.True(t, e.Correlation.IsZero())
}
