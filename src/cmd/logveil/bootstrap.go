// FILE: logveil/src/cmd/logveil/bootstrap.go
package main

import (
	"fmt"
	"strings"

	"logveil/src/internal/config"

	"github.com/lixenwraith/log"
)

// applyLogOverrides folds CLI logging flags into the loaded config
// before the logger starts.
func applyLogOverrides(cfg *config.Config, fc *FlagConfig) {
	if cfg.Logging == nil {
		cfg.Logging = config.DefaultLogConfig()
	}

	if fc.Quiet {
		cfg.Quiet = true
	}
	if fc.LogOutput != "" {
		cfg.Logging.Output = fc.LogOutput
	}
	if fc.LogLevel != "" {
		cfg.Logging.Level = fc.LogLevel
	}
	if fc.LogDir != "" {
		if cfg.Logging.File == nil {
			cfg.Logging.File = &config.LogFileConfig{Name: "logveil", MaxSizeMB: 100}
		}
		cfg.Logging.File.Directory = fc.LogDir
	}
	if fc.LogConsole != "" {
		if cfg.Logging.Console == nil {
			cfg.Logging.Console = &config.LogConsoleConfig{}
		}
		cfg.Logging.Console.Target = fc.LogConsole
	}
}

// initializeLogger sets up the operational logger based on configuration
func initializeLogger(cfg *config.Config) error {
	logger = log.NewLogger()

	var configArgs []string

	if cfg.Quiet {
		// In quiet mode, disable ALL logging output
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=false",
			"level=255")

		if err := logger.ApplyConfigString(configArgs...); err != nil {
			return err
		}
		return logger.Start()
	}

	// Determine log level
	levelValue, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	configArgs = append(configArgs, fmt.Sprintf("level=%d", levelValue))

	// Configure based on output mode
	switch cfg.Logging.Output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_stdout=false")

	case "stdout":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stdout")

	case "stderr":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stderr")

	case "file":
		configArgs = append(configArgs, "enable_stdout=false")
		configureFileLogging(&configArgs, cfg)

	case "both":
		configArgs = append(configArgs, "enable_stdout=true")
		configureFileLogging(&configArgs, cfg)
		configureConsoleTarget(&configArgs, cfg)

	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	// Apply format if specified
	if cfg.Logging.Console != nil && cfg.Logging.Console.Format != "" {
		configArgs = append(configArgs, fmt.Sprintf("format=%s", cfg.Logging.Console.Format))
	}

	if err := logger.ApplyConfigString(configArgs...); err != nil {
		return err
	}
	return logger.Start()
}

// configureFileLogging sets up file-based logging parameters
func configureFileLogging(configArgs *[]string, cfg *config.Config) {
	if cfg.Logging.File != nil {
		*configArgs = append(*configArgs,
			fmt.Sprintf("directory=%s", cfg.Logging.File.Directory),
			fmt.Sprintf("name=%s", cfg.Logging.File.Name),
			fmt.Sprintf("max_size_mb=%d", cfg.Logging.File.MaxSizeMB),
			fmt.Sprintf("max_total_size_mb=%d", cfg.Logging.File.MaxTotalSizeMB))

		if cfg.Logging.File.RetentionHours > 0 {
			*configArgs = append(*configArgs,
				fmt.Sprintf("retention_period_hrs=%.1f", cfg.Logging.File.RetentionHours))
		}
	}
}

// configureConsoleTarget sets up console output parameters
func configureConsoleTarget(configArgs *[]string, cfg *config.Config) {
	target := "stderr" // default

	if cfg.Logging.Console != nil && cfg.Logging.Console.Target != "" {
		target = cfg.Logging.Console.Target
	}

	// Split mode by configuring log package with level-based routing
	if target == "split" {
		*configArgs = append(*configArgs, "stdout_split_mode=true")
		*configArgs = append(*configArgs, "stdout_target=split")
	} else {
		*configArgs = append(*configArgs, fmt.Sprintf("stdout_target=%s", target))
	}
}

// reportConfigWarnings logs non-fatal repairs made during validation.
// Warnings are collected at load time, before the logger exists, so
// they surface here.
func reportConfigWarnings(cfg *config.Config) {
	for _, w := range cfg.Warnings {
		logger.Warn("msg", "Config warning",
			"component", "main",
			"warning", w)
	}
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
