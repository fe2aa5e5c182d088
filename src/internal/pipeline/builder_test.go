// FILE: logveil/src/internal/pipeline/builder_test.go
package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"logveil/src/internal/config"
	"logveil/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestFromConfigMinimal(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := &config.PipelineConfig{
		Name:  "build-min",
		Level: "warn",
		Sinks: []config.SinkConfig{
			{Type: "console", Options: map[string]any{"target": "stdout"}},
		},
		Format: config.FormatConfig{Type: "json"},
	}

	p, err := FromConfig(cfg, newTestLogger())
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	assert.Equal(t, core.SeverityWarn, p.Level())
	stats := p.GetStats()
	assert.Equal(t, "build-min", stats["name"])
	assert.Equal(t, 1, stats["sink_count"])
}

func TestFromConfigBuildsStagesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := &config.PipelineConfig{
		Name: "build-stages",
		Stages: []config.StageConfig{
			{Name: "gate", Type: "rate_limit", Options: map[string]any{"per_second": int64(100)}},
			{Name: "meter", Type: "metrics", Options: map[string]any{"window_seconds": int64(30)}},
			{Name: "ids", Type: "correlate"},
			{Name: "keep", Type: "filter", Options: map[string]any{"patterns": []any{".*"}}},
		},
		Sinks: []config.SinkConfig{
			{Type: "console", Options: map[string]any{}},
		},
	}

	p, err := FromConfig(cfg, newTestLogger())
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	snapshot := p.Registry().Snapshot()
	require.Len(t, snapshot, 4)
	names := make([]string, 0, len(snapshot))
	for _, ns := range snapshot {
		names = append(names, ns.Name)
	}
	assert.Equal(t, []string{"gate", "meter", "ids", "keep"}, names)
}

func TestFromConfigFileSinkEndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "out.log")
	cfg := &config.PipelineConfig{
		Name:  "build-e2e",
		Level: "debug",
		Redaction: config.RedactionConfig{
			PreserveLength: true,
		},
		Sinks: []config.SinkConfig{
			{Type: "file", Options: map[string]any{"path": path}},
		},
		Format: config.FormatConfig{Type: "json"},
	}

	p, err := FromConfig(cfg, newTestLogger())
	require.NoError(t, err)

	require.NoError(t, p.Info("login accepted", map[string]any{
		"user":     "mallory",
		"password": "hunter2hunter2",
	}))
	require.NoError(t, p.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, "login accepted", decoded["message"])
	assert.Equal(t, "mallory", decoded["user"])
	assert.Equal(t, strings.Repeat("*", 14), decoded["password"])
	assert.NotContains(t, lines[0], "hunter2")
}

func TestFromConfigFingerprintKeyFromEnv(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Setenv("LOGVEIL_REDACT_HASH_KEY", "builder-test-key")

	path := filepath.Join(t.TempDir(), "out.log")
	cfg := &config.PipelineConfig{
		Name: "build-fp",
		Redaction: config.RedactionConfig{
			HashValues: true,
		},
		Sinks: []config.SinkConfig{
			{Type: "file", Options: map[string]any{"path": path}},
		},
	}

	p, err := FromConfig(cfg, newTestLogger())
	require.NoError(t, err)

	require.NoError(t, p.Info("token issued", map[string]any{"api_token": "sk-live-1234"}))
	require.NoError(t, p.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &decoded))
	fingerprint, _ := decoded["api_token"].(string)
	assert.Regexp(t, regexp.MustCompile(`^fp:[0-9a-f]{16}$`), fingerprint)
}

func TestFromConfigBufferWrapsSink(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := &config.PipelineConfig{
		Name: "build-buffered",
		Sinks: []config.SinkConfig{
			{
				Type:    "console",
				Options: map[string]any{},
				Buffer:  &config.BufferConfig{Capacity: 8, FlushIntervalMS: 50},
			},
		},
	}

	p, err := FromConfig(cfg, newTestLogger())
	require.NoError(t, err)

	stats := p.GetStats()
	sinks := stats["sinks"].([]map[string]any)
	require.Len(t, sinks, 1)
	assert.Equal(t, "buffered", sinks[0]["type"])

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestFromConfigTCPSinkLazyDial(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := &config.PipelineConfig{
		Name: "build-tcp",
		Sinks: []config.SinkConfig{
			{Type: "tcp", Options: map[string]any{"address": "localhost:9"}},
		},
	}

	// No listener on the address: construction still succeeds because
	// the first dial happens on the first write.
	p, err := FromConfig(cfg, newTestLogger())
	require.NoError(t, err)

	stats := p.GetStats()
	sinks := stats["sinks"].([]map[string]any)
	require.Len(t, sinks, 1)
	assert.Equal(t, "tcp", sinks[0]["type"])

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestFromConfigRateLimitExemptions(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := &config.PipelineConfig{
		Name:  "build-exempt",
		Level: "debug",
		Stages: []config.StageConfig{
			{Name: "gate", Type: "rate_limit", Options: map[string]any{
				"per_second":        int64(1),
				"exempt_severities": []any{"error"},
			}},
		},
		Sinks: []config.SinkConfig{
			{Type: "file", Options: map[string]any{
				"path": filepath.Join(t.TempDir(), "exempt.log"),
			}},
		},
	}

	p, err := FromConfig(cfg, newTestLogger())
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Error("disk failure", nil, nil))
	}

	stats := p.GetStats()
	gate := stats["stages"].(map[string]any)["gate"].(map[string]any)
	assert.Equal(t, uint64(0), gate["total_dropped"])
	assert.Equal(t, uint64(3), p.Stats.TotalDelivered.Load())
}

func TestFromConfigErrors(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     config.PipelineConfig
		wantErr string
	}{
		{
			name: "UnknownStageType",
			cfg: config.PipelineConfig{
				Stages: []config.StageConfig{{Name: "x", Type: "dedupe"}},
			},
			wantErr: "unknown stage type",
		},
		{
			name: "UnknownSinkType",
			cfg: config.PipelineConfig{
				Sinks: []config.SinkConfig{{Type: "syslog"}},
			},
			wantErr: "unknown sink type",
		},
		{
			name: "BadFilterPattern",
			cfg: config.PipelineConfig{
				Stages: []config.StageConfig{{Name: "f", Type: "filter", Options: map[string]any{
					"patterns": []any{"[broken"},
				}}},
			},
			wantErr: "f",
		},
		{
			name: "BadExemptSeverity",
			cfg: config.PipelineConfig{
				Stages: []config.StageConfig{{Name: "gate", Type: "rate_limit", Options: map[string]any{
					"per_second":        int64(5),
					"exempt_severities": []any{"fatal"},
				}}},
			},
			wantErr: "invalid severity",
		},
		{
			name: "BadRedactionPattern",
			cfg: config.PipelineConfig{
				Redaction: config.RedactionConfig{Patterns: []string{"[broken"}},
			},
			wantErr: "pattern[0]",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromConfig(&tc.cfg, newTestLogger())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
