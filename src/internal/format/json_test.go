// FILE: logveil/src/internal/format/json_test.go
package format

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"logveil/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFormatter_Format(t *testing.T) {
	logger := newTestLogger()
	testTime := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	event := &core.Event{
		Time:     testTime,
		Severity: core.SeverityInfo,
		Message:  "this is a test",
	}

	t.Run("BasicFormatting", func(t *testing.T) {
		formatter, err := NewJSONFormatter(nil, logger)
		require.NoError(t, err)

		output, err := formatter.Format(event)
		require.NoError(t, err)

		var result map[string]any
		err = json.Unmarshal(output, &result)
		require.NoError(t, err, "Output should be valid JSON")

		assert.Equal(t, testTime.Format(time.RFC3339Nano), result["timestamp"])
		assert.Equal(t, "info", result["level"])
		assert.Equal(t, "this is a test", result["message"])
		assert.True(t, strings.HasSuffix(string(output), "\n"), "Output should end with a newline")
	})

	t.Run("PrettyFormatting", func(t *testing.T) {
		formatter, err := NewJSONFormatter(map[string]any{"pretty": true}, logger)
		require.NoError(t, err)

		output, err := formatter.Format(event)
		require.NoError(t, err)

		assert.Contains(t, string(output), `  "level": "info"`)
		assert.True(t, strings.HasSuffix(string(output), "\n"))
	})

	t.Run("AttributesMerged", func(t *testing.T) {
		withAttrs := *event
		withAttrs.Attrs = map[string]any{"user": "test", "attempt": int64(3)}
		formatter, err := NewJSONFormatter(nil, logger)
		require.NoError(t, err)

		output, err := formatter.Format(&withAttrs)
		require.NoError(t, err)

		var result map[string]any
		err = json.Unmarshal(output, &result)
		require.NoError(t, err)

		assert.Equal(t, "test", result["user"])
		assert.Equal(t, float64(3), result["attempt"])
	})

	t.Run("AttributeCannotShadowStandardField", func(t *testing.T) {
		shadowed := *event
		shadowed.Attrs = map[string]any{"level": "debug", "extra": "kept"}
		formatter, err := NewJSONFormatter(nil, logger)
		require.NoError(t, err)

		output, err := formatter.Format(&shadowed)
		require.NoError(t, err)

		var result map[string]any
		err = json.Unmarshal(output, &result)
		require.NoError(t, err)

		assert.Equal(t, "info", result["level"], "Envelope field should take precedence")
		assert.Equal(t, "kept", result["extra"])
	})

	t.Run("CorrelationFields", func(t *testing.T) {
		correlated := *event
		correlated.Correlation = core.Correlation{
			RequestID: "req-1",
			SessionID: "sess-2",
			UserID:    "u-3",
		}
		formatter, err := NewJSONFormatter(nil, logger)
		require.NoError(t, err)

		output, err := formatter.Format(&correlated)
		require.NoError(t, err)

		var result map[string]any
		err = json.Unmarshal(output, &result)
		require.NoError(t, err)

		assert.Equal(t, "req-1", result["request_id"])
		assert.Equal(t, "sess-2", result["session_id"])
		assert.Equal(t, "u-3", result["user_id"])
	})

	t.Run("EmptyCorrelationOmitted", func(t *testing.T) {
		formatter, err := NewJSONFormatter(nil, logger)
		require.NoError(t, err)

		output, err := formatter.Format(event)
		require.NoError(t, err)

		var result map[string]any
		err = json.Unmarshal(output, &result)
		require.NoError(t, err)

		_, exists := result["request_id"]
		assert.False(t, exists)
	})

	t.Run("CustomFieldNames", func(t *testing.T) {
		options := map[string]any{"timestamp_field": "@timestamp"}
		formatter, err := NewJSONFormatter(options, logger)
		require.NoError(t, err)

		output, err := formatter.Format(event)
		require.NoError(t, err)

		var result map[string]any
		err = json.Unmarshal(output, &result)
		require.NoError(t, err)

		_, defaultExists := result["timestamp"]
		assert.False(t, defaultExists)
		assert.Equal(t, testTime.Format(time.RFC3339Nano), result["@timestamp"])
	})
}
