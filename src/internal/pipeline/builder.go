// FILE: logveil/src/internal/pipeline/builder.go
package pipeline

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"logveil/src/internal/config"
	"logveil/src/internal/core"
	"logveil/src/internal/format"
	"logveil/src/internal/redact"
	"logveil/src/internal/sink"
	"logveil/src/internal/stage"

	"github.com/lixenwraith/log"
	"golang.org/x/term"
)

// FromConfig assembles a root pipeline from validated configuration.
// Stage and sink order follows the config. On error any sinks already
// opened are closed again.
func FromConfig(cfg *config.PipelineConfig, logger *log.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil pipeline config")
	}

	level := core.SeverityInfo
	if cfg.Level != "" {
		parsed, err := core.ParseSeverity(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("pipeline '%s': %w", cfg.Name, err)
		}
		level = parsed
	}

	redactor, err := buildRedactor(cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("pipeline '%s' redaction: %w", cfg.Name, err)
	}

	registry := stage.NewRegistry()
	for i := range cfg.Stages {
		st, err := buildStage(&cfg.Stages[i], logger)
		if err != nil {
			return nil, fmt.Errorf("pipeline '%s' stage[%d]: %w", cfg.Name, i, err)
		}
		if err := registry.Register(cfg.Stages[i].Name, st); err != nil {
			return nil, fmt.Errorf("pipeline '%s' stage[%d]: %w", cfg.Name, i, err)
		}
	}

	formatter, err := format.New(cfg.Format.Type, resolveFormatOptions(cfg.Format.Options), logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline '%s' format: %w", cfg.Name, err)
	}

	sinks := make([]sink.Sink, 0, len(cfg.Sinks))
	for i := range cfg.Sinks {
		sn, err := buildSink(&cfg.Sinks[i], logger)
		if err != nil {
			for _, open := range sinks {
				open.Close()
			}
			return nil, fmt.Errorf("pipeline '%s' sink[%d]: %w", cfg.Name, i, err)
		}
		sinks = append(sinks, sn)
	}

	return New(Options{
		Name:      cfg.Name,
		Level:     level,
		DevMode:   cfg.DevMode,
		Context:   cfg.Context,
		Registry:  registry,
		Redactor:  redactor,
		Formatter: formatter,
		Sinks:     sinks,
		Logger:    logger,
	})
}

// resolveFormatOptions turns enable_colors="auto" into a concrete bool
// based on whether stdout is a terminal.
func resolveFormatOptions(options map[string]any) map[string]any {
	mode, ok := options["enable_colors"].(string)
	if !ok || mode != "auto" {
		return options
	}
	resolved := make(map[string]any, len(options))
	for k, v := range options {
		resolved[k] = v
	}
	resolved["enable_colors"] = term.IsTerminal(int(os.Stdout.Fd()))
	return resolved
}

func buildRedactor(cfg config.RedactionConfig) (*redact.Redactor, error) {
	policy := redact.Policy{
		FieldNames:     cfg.FieldNames,
		Patterns:       cfg.Patterns,
		MaskCharacter:  cfg.MaskCharacter,
		PreserveLength: cfg.PreserveLength,
		ShowFirst:      cfg.ShowFirst,
		ShowLast:       cfg.ShowLast,
		HashValues:     cfg.HashValues,
	}
	// The fingerprint key never travels through the config file.
	if cfg.HashValues {
		policy.HashKey = []byte(os.Getenv("LOGVEIL_REDACT_HASH_KEY"))
	}
	return redact.New(policy)
}

func buildStage(cfg *config.StageConfig, logger *log.Logger) (stage.Stage, error) {
	switch cfg.Type {
	case "rate_limit":
		stageName := cfg.Name
		rlCfg := stage.RateLimitConfig{
			PerSecond: optInt64(cfg.Options, "per_second", 0),
			PerMinute: optInt64(cfg.Options, "per_minute", 0),
			PerHour:   optInt64(cfg.Options, "per_hour", 0),
			OnDrop: func(dropped uint64) {
				logger.Debug("msg", "Event dropped by rate limit",
					"component", "rate_limit_stage",
					"stage", stageName,
					"total_dropped", dropped)
			},
		}
		if exempt, ok := cfg.Options["exempt_severities"].([]any); ok {
			for _, raw := range exempt {
				name, _ := raw.(string)
				sev, err := core.ParseSeverity(name)
				if err != nil {
					return nil, err
				}
				rlCfg.ExemptSeverities = append(rlCfg.ExemptSeverities, sev)
			}
		}
		return stage.NewRateLimiter(rlCfg), nil

	case "metrics":
		window := time.Duration(optInt64(cfg.Options, "window_seconds", 0)) * time.Second
		return stage.NewMetrics(window), nil

	case "correlate":
		return stage.Correlate{}, nil

	case "filter":
		fCfg := stage.FilterConfig{
			Type:  stage.FilterType(optString(cfg.Options, "filter_type", "")),
			Logic: stage.FilterLogic(optString(cfg.Options, "logic", "")),
		}
		if patterns, ok := cfg.Options["patterns"].([]any); ok {
			for _, raw := range patterns {
				if p, ok := raw.(string); ok {
					fCfg.Patterns = append(fCfg.Patterns, p)
				}
			}
		}
		return stage.NewFilter(fCfg, logger)

	default:
		return nil, fmt.Errorf("unknown stage type: %s", cfg.Type)
	}
}

func buildSink(cfg *config.SinkConfig, logger *log.Logger) (sink.Sink, error) {
	var (
		built sink.Sink
		err   error
	)

	switch cfg.Type {
	case "console":
		target := sink.ConsoleTarget(optString(cfg.Options, "target", ""))
		built, err = sink.NewConsoleSink(target, logger)

	case "file":
		built, err = sink.NewFileSink(sink.FileConfig{
			Path:         optString(cfg.Options, "path", ""),
			MaxSizeBytes: optInt64(cfg.Options, "max_size_mb", 0) * 1024 * 1024,
			MaxBackups:   int(optInt64(cfg.Options, "max_backups", 0)),
		}, logger)

	case "http":
		built, err = sink.NewHTTPSink(sink.HTTPConfig{
			URL:                optString(cfg.Options, "url", ""),
			TimeoutSeconds:     optInt64(cfg.Options, "timeout_seconds", 0),
			MaxRetries:         optInt64(cfg.Options, "max_retries", 0),
			RetryDelayMS:       optInt64(cfg.Options, "retry_delay_ms", 0),
			RetryBackoff:       optFloat(cfg.Options, "retry_backoff", 0),
			InsecureSkipVerify: optBool(cfg.Options, "insecure_skip_verify", false),
			BearerToken:        optString(cfg.Options, "bearer_token", ""),
			JWTSecret:          optString(cfg.Options, "jwt_secret", ""),
			JWTIssuer:          optString(cfg.Options, "jwt_issuer", ""),
			JWTTTLSeconds:      optInt64(cfg.Options, "jwt_ttl_seconds", 0),
		}, logger)

	case "tcp":
		address := optString(cfg.Options, "address", "")
		host, portStr, splitErr := net.SplitHostPort(address)
		if splitErr != nil {
			return nil, fmt.Errorf("invalid address %q: %w", address, splitErr)
		}
		port, parseErr := strconv.ParseInt(portStr, 10, 64)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid port in address %q: %w", address, parseErr)
		}
		built, err = sink.NewTCPSink(sink.TCPConfig{
			Host:                     host,
			Port:                     port,
			DialTimeoutSeconds:       optInt64(cfg.Options, "dial_timeout_seconds", 0),
			WriteTimeoutSeconds:      optInt64(cfg.Options, "write_timeout_seconds", 0),
			KeepAliveSeconds:         optInt64(cfg.Options, "keep_alive_seconds", 0),
			ReconnectDelayMS:         optInt64(cfg.Options, "reconnect_delay_ms", 0),
			MaxReconnectDelaySeconds: optInt64(cfg.Options, "max_reconnect_delay_seconds", 0),
			ReconnectBackoff:         optFloat(cfg.Options, "reconnect_backoff", 0),
		}, logger)

	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Buffer != nil {
		built = sink.NewBufferedSink(built, sink.BufferedConfig{
			Capacity:      int(cfg.Buffer.Capacity),
			FlushInterval: time.Duration(cfg.Buffer.FlushIntervalMS) * time.Millisecond,
		}, logger)
	}

	return built, nil
}

func optString(options map[string]any, key, fallback string) string {
	if v, ok := options[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func optBool(options map[string]any, key string, fallback bool) bool {
	if v, ok := options[key].(bool); ok {
		return v
	}
	return fallback
}

func optInt64(options map[string]any, key string, fallback int64) int64 {
	switch v := options[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return fallback
	}
}

func optFloat(options map[string]any, key string, fallback float64) float64 {
	switch v := options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}
