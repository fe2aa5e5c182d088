// FILE: logveil/src/internal/config/pipeline.go
package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"logveil/src/internal/core"
)

// PipelineConfig describes one event pipeline.
type PipelineConfig struct {
	// Pipeline identifier (used in logs and stats)
	Name string `toml:"name"`

	// Minimum severity: "debug", "info", "warn", "error"
	Level string `toml:"level"`

	// DevMode attaches stack traces to error dispatches
	DevMode bool `toml:"dev_mode"`

	// Ambient context attached to every event
	Context map[string]any `toml:"context"`

	// Redaction policy applied after the stage chain
	Redaction RedactionConfig `toml:"redaction"`

	// Ordered stage chain
	Stages []StageConfig `toml:"stages"`

	// Output sinks
	Sinks []SinkConfig `toml:"sinks"`

	// Record format
	Format FormatConfig `toml:"format"`
}

// RedactionConfig mirrors the redaction policy surface.
type RedactionConfig struct {
	FieldNames     []string `toml:"field_names"`
	Patterns       []string `toml:"patterns"`
	MaskCharacter  string   `toml:"mask_character"`
	PreserveLength bool     `toml:"preserve_length"`
	ShowFirst      int      `toml:"show_first"`
	ShowLast       int      `toml:"show_last"`

	// HashValues replaces matched values with a keyed fingerprint
	// instead of a mask. The key comes from LOGVEIL_REDACT_HASH_KEY,
	// never from the config file.
	HashValues bool `toml:"hash_values"`
}

// StageConfig is one entry of the ordered stage chain.
type StageConfig struct {
	// Registration name, unique within the chain
	Name string `toml:"name"`

	// Stage type: "rate_limit", "metrics", "correlate", "filter"
	Type string `toml:"type"`

	// Type-specific configuration options
	Options map[string]any `toml:"options"`
}

// SinkConfig is one output destination.
type SinkConfig struct {
	// Sink type: "console", "file", "http", "tcp"
	Type string `toml:"type"`

	// Type-specific configuration options
	Options map[string]any `toml:"options"`

	// Buffer, when present, wraps the sink with a flush-on-threshold
	// queue so producers never wait on sink I/O.
	Buffer *BufferConfig `toml:"buffer"`
}

// BufferConfig configures the buffered wrapper.
type BufferConfig struct {
	Capacity        int64 `toml:"capacity"`
	FlushIntervalMS int64 `toml:"flush_interval_ms"`
}

// FormatConfig selects and parameterizes the record formatter.
type FormatConfig struct {
	// Formatter type: "json", "text", "raw"; empty means json
	Type string `toml:"type"`

	// Type-specific configuration options
	Options map[string]any `toml:"options"`
}

func (p *PipelineConfig) validate(warnings *[]string) error {
	if p.Name == "" {
		p.Name = "default"
	}

	// Fallback class: a malformed threshold never fails loading.
	if p.Level != "" {
		if _, err := core.ParseSeverity(p.Level); err != nil {
			*warnings = append(*warnings,
				fmt.Sprintf("pipeline '%s': invalid level '%s', falling back to 'error'", p.Name, p.Level))
			p.Level = "error"
		}
	}

	if err := p.Redaction.validate(p.Name, warnings); err != nil {
		return err
	}

	seen := make(map[string]bool, len(p.Stages))
	for i := range p.Stages {
		if err := validateStage(p.Name, i, &p.Stages[i], seen); err != nil {
			return err
		}
	}

	if len(p.Sinks) == 0 {
		*warnings = append(*warnings,
			fmt.Sprintf("pipeline '%s': no sinks configured, events will be discarded", p.Name))
	}
	for i := range p.Sinks {
		if err := validateSink(p.Name, i, &p.Sinks[i], warnings); err != nil {
			return err
		}
	}

	switch p.Format.Type {
	case "", "json", "text", "raw":
	default:
		return fmt.Errorf("pipeline '%s': unknown format type '%s'", p.Name, p.Format.Type)
	}

	return nil
}

func (r *RedactionConfig) validate(pipelineName string, warnings *[]string) error {
	for i, pattern := range r.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("pipeline '%s': redaction pattern[%d] %q: %w", pipelineName, i, pattern, err)
		}
	}

	if len([]rune(r.MaskCharacter)) > 1 {
		*warnings = append(*warnings,
			fmt.Sprintf("pipeline '%s': mask_character %q longer than one rune, using first", pipelineName, r.MaskCharacter))
	}
	if r.ShowFirst < 0 {
		*warnings = append(*warnings,
			fmt.Sprintf("pipeline '%s': negative show_first clamped to 0", pipelineName))
		r.ShowFirst = 0
	}
	if r.ShowLast < 0 {
		*warnings = append(*warnings,
			fmt.Sprintf("pipeline '%s': negative show_last clamped to 0", pipelineName))
		r.ShowLast = 0
	}
	return nil
}

func validateStage(pipelineName string, stageIndex int, cfg *StageConfig, seen map[string]bool) error {
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("%s_%d", cfg.Type, stageIndex)
	}
	if seen[cfg.Name] {
		return fmt.Errorf("pipeline '%s' stage[%d]: duplicate stage name '%s'", pipelineName, stageIndex, cfg.Name)
	}
	seen[cfg.Name] = true

	switch cfg.Type {
	case "rate_limit":
		anyLimit := false
		for _, key := range []string{"per_second", "per_minute", "per_hour"} {
			v, present := cfg.Options[key]
			if !present {
				continue
			}
			n, ok := toInt(v)
			if !ok || n < 1 {
				return fmt.Errorf("pipeline '%s' stage[%d]: %s must be a positive integer", pipelineName, stageIndex, key)
			}
			anyLimit = true
		}
		if !anyLimit {
			return fmt.Errorf("pipeline '%s' stage[%d]: rate_limit needs per_second, per_minute, or per_hour", pipelineName, stageIndex)
		}
		if exempt, ok := cfg.Options["exempt_severities"].([]any); ok {
			for _, raw := range exempt {
				name, ok := raw.(string)
				if !ok {
					return fmt.Errorf("pipeline '%s' stage[%d]: exempt_severities entries must be strings", pipelineName, stageIndex)
				}
				if _, err := core.ParseSeverity(name); err != nil {
					return fmt.Errorf("pipeline '%s' stage[%d]: %w", pipelineName, stageIndex, err)
				}
			}
		}

	case "metrics":
		if window, ok := cfg.Options["window_seconds"]; ok {
			if n, ok := toInt(window); !ok || n < 1 {
				return fmt.Errorf("pipeline '%s' stage[%d]: window_seconds must be a positive integer", pipelineName, stageIndex)
			}
		}

	case "correlate":
		// No options

	case "filter":
		patterns, ok := cfg.Options["patterns"].([]any)
		if !ok || len(patterns) == 0 {
			return fmt.Errorf("pipeline '%s' stage[%d]: filter requires a 'patterns' list", pipelineName, stageIndex)
		}
		for i, raw := range patterns {
			pattern, ok := raw.(string)
			if !ok {
				return fmt.Errorf("pipeline '%s' stage[%d]: patterns entries must be strings", pipelineName, stageIndex)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("pipeline '%s' stage[%d]: pattern[%d] %q: %w", pipelineName, stageIndex, i, pattern, err)
			}
		}
		if ft, ok := cfg.Options["filter_type"].(string); ok {
			if ft != "include" && ft != "exclude" {
				return fmt.Errorf("pipeline '%s' stage[%d]: filter_type must be 'include' or 'exclude'", pipelineName, stageIndex)
			}
		}
		if logic, ok := cfg.Options["logic"].(string); ok {
			if logic != "or" && logic != "and" {
				return fmt.Errorf("pipeline '%s' stage[%d]: logic must be 'or' or 'and'", pipelineName, stageIndex)
			}
		}

	default:
		return fmt.Errorf("pipeline '%s' stage[%d]: unknown stage type '%s'", pipelineName, stageIndex, cfg.Type)
	}

	return nil
}

func validateSink(pipelineName string, sinkIndex int, cfg *SinkConfig, warnings *[]string) error {
	if cfg.Type == "" {
		return fmt.Errorf("pipeline '%s' sink[%d]: missing type", pipelineName, sinkIndex)
	}

	switch cfg.Type {
	case "console":
		if target, ok := cfg.Options["target"].(string); ok && target != "" {
			switch target {
			case "stdout", "stderr", "split":
			default:
				return fmt.Errorf("pipeline '%s' sink[%d]: console target must be stdout, stderr, or split: %s",
					pipelineName, sinkIndex, target)
			}
		}

	case "file":
		path, ok := cfg.Options["path"].(string)
		if !ok || path == "" {
			return fmt.Errorf("pipeline '%s' sink[%d]: file sink requires 'path' option",
				pipelineName, sinkIndex)
		}

		// Fallback class: traversal segments are stripped, not fatal.
		if sanitized := sanitizePath(path); sanitized != path {
			*warnings = append(*warnings,
				fmt.Sprintf("pipeline '%s' sink[%d]: stripped traversal segments from path %q", pipelineName, sinkIndex, path))
			cfg.Options["path"] = sanitized
		}

		if maxSize, ok := cfg.Options["max_size_mb"]; ok {
			if n, ok := toInt(maxSize); !ok || n < 1 {
				return fmt.Errorf("pipeline '%s' sink[%d]: max_size_mb must be positive",
					pipelineName, sinkIndex)
			}
		}
		if maxBackups, ok := cfg.Options["max_backups"]; ok {
			if n, ok := toInt(maxBackups); !ok || n < 0 {
				return fmt.Errorf("pipeline '%s' sink[%d]: max_backups cannot be negative",
					pipelineName, sinkIndex)
			}
		}

	case "http":
		urlStr, ok := cfg.Options["url"].(string)
		if !ok || urlStr == "" {
			return fmt.Errorf("pipeline '%s' sink[%d]: http sink requires 'url' option",
				pipelineName, sinkIndex)
		}
		parsedURL, err := url.Parse(urlStr)
		if err != nil {
			return fmt.Errorf("pipeline '%s' sink[%d]: invalid URL: %w",
				pipelineName, sinkIndex, err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("pipeline '%s' sink[%d]: URL must use http or https scheme",
				pipelineName, sinkIndex)
		}

		if timeout, ok := cfg.Options["timeout_seconds"]; ok {
			if n, ok := toInt(timeout); !ok || n < 1 {
				return fmt.Errorf("pipeline '%s' sink[%d]: timeout_seconds must be positive",
					pipelineName, sinkIndex)
			}
		}
		if backoff, ok := cfg.Options["retry_backoff"]; ok {
			if f, ok := toFloat(backoff); !ok || f < 1.0 {
				return fmt.Errorf("pipeline '%s' sink[%d]: retry_backoff must be at least 1.0",
					pipelineName, sinkIndex)
			}
		}

		_, hasToken := cfg.Options["bearer_token"].(string)
		_, hasSecret := cfg.Options["jwt_secret"].(string)
		if hasToken && hasSecret {
			return fmt.Errorf("pipeline '%s' sink[%d]: configure either bearer_token or jwt_secret, not both",
				pipelineName, sinkIndex)
		}

	case "tcp":
		address, ok := cfg.Options["address"].(string)
		if !ok || address == "" {
			return fmt.Errorf("pipeline '%s' sink[%d]: tcp sink requires 'address' option",
				pipelineName, sinkIndex)
		}
		if _, _, err := net.SplitHostPort(address); err != nil {
			return fmt.Errorf("pipeline '%s' sink[%d]: invalid address format (expected host:port): %w",
				pipelineName, sinkIndex, err)
		}

		if dialTimeout, ok := cfg.Options["dial_timeout_seconds"]; ok {
			if n, ok := toInt(dialTimeout); !ok || n < 1 {
				return fmt.Errorf("pipeline '%s' sink[%d]: dial_timeout_seconds must be positive",
					pipelineName, sinkIndex)
			}
		}

	default:
		return fmt.Errorf("pipeline '%s' sink[%d]: unknown sink type '%s'",
			pipelineName, sinkIndex, cfg.Type)
	}

	if cfg.Buffer != nil {
		if cfg.Buffer.Capacity < 0 {
			return fmt.Errorf("pipeline '%s' sink[%d]: buffer capacity cannot be negative",
				pipelineName, sinkIndex)
		}
		if cfg.Buffer.FlushIntervalMS < 0 {
			return fmt.Errorf("pipeline '%s' sink[%d]: flush_interval_ms cannot be negative",
				pipelineName, sinkIndex)
		}
	}

	return nil
}

// sanitizePath drops traversal segments so a configured log path can
// never climb out of its directory.
func sanitizePath(path string) string {
	clean := filepath.Clean(path)
	parts := strings.Split(filepath.ToSlash(clean), "/")
	kept := parts[:0]
	for _, part := range parts {
		if part == ".." {
			continue
		}
		kept = append(kept, part)
	}
	return filepath.FromSlash(strings.Join(kept, "/"))
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}
