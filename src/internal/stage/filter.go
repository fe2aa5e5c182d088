// FILE: logveil/src/internal/stage/filter.go
package stage

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"

	"logveil/src/internal/core"

	"github.com/lixenwraith/log"
)

// FilterType selects whether matching passes or drops events.
type FilterType string

const (
	FilterInclude FilterType = "include"
	FilterExclude FilterType = "exclude"
)

// FilterLogic combines multiple patterns.
type FilterLogic string

const (
	FilterLogicOr  FilterLogic = "or"
	FilterLogicAnd FilterLogic = "and"
)

// FilterConfig configures a regex filter stage.
type FilterConfig struct {
	Type     FilterType
	Logic    FilterLogic
	Patterns []string
}

// Filter drops or passes events by matching regular expressions against
// the severity name and message.
type Filter struct {
	cfg      FilterConfig
	patterns []*regexp.Regexp
	logger   *log.Logger

	totalProcessed atomic.Uint64
	totalMatched   atomic.Uint64
	totalDropped   atomic.Uint64
}

// NewFilter creates a filter stage from configuration.
func NewFilter(cfg FilterConfig, logger *log.Logger) (*Filter, error) {
	if cfg.Type == "" {
		cfg.Type = FilterInclude
	}
	if cfg.Logic == "" {
		cfg.Logic = FilterLogicOr
	}

	f := &Filter{
		cfg:      cfg,
		patterns: make([]*regexp.Regexp, 0, len(cfg.Patterns)),
		logger:   logger,
	}

	for i, pattern := range cfg.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern[%d] '%s': %w", i, pattern, err)
		}
		f.patterns = append(f.patterns, re)
	}

	logger.Debug("msg", "Filter stage created",
		"component", "filter_stage",
		"type", cfg.Type,
		"logic", cfg.Logic,
		"pattern_count", len(cfg.Patterns))

	return f, nil
}

// Execute implements Stage.
func (f *Filter) Execute(_ context.Context, e *core.Event, _ *RunContext) (Verdict, error) {
	f.totalProcessed.Add(1)

	// No patterns means pass everything
	if len(f.patterns) == 0 {
		return Proceed, nil
	}

	text := e.Severity.String() + " " + e.Message
	matched := f.matches(text)
	if matched {
		f.totalMatched.Add(1)
	}

	pass := matched
	if f.cfg.Type == FilterExclude {
		pass = !matched
	}
	if !pass {
		f.totalDropped.Add(1)
		return Stop, nil
	}
	return Proceed, nil
}

// matches checks text against the patterns according to the logic.
func (f *Filter) matches(text string) bool {
	switch f.cfg.Logic {
	case FilterLogicOr:
		for _, re := range f.patterns {
			if re.MatchString(text) {
				return true
			}
		}
		return false

	case FilterLogicAnd:
		for _, re := range f.patterns {
			if !re.MatchString(text) {
				return false
			}
		}
		return true

	default:
		// Shouldn't happen after validation
		f.logger.Warn("msg", "Unknown filter logic",
			"component", "filter_stage",
			"logic", f.cfg.Logic)
		return false
	}
}

// GetStats returns filter statistics.
func (f *Filter) GetStats() map[string]any {
	return map[string]any{
		"type":            f.cfg.Type,
		"logic":           f.cfg.Logic,
		"pattern_count":   len(f.patterns),
		"total_processed": f.totalProcessed.Load(),
		"total_matched":   f.totalMatched.Load(),
		"total_dropped":   f.totalDropped.Load(),
	}
}
