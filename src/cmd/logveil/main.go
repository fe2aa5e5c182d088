// FILE: logveil/src/cmd/logveil/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"logveil/src/internal/config"
	"logveil/src/internal/pipeline"
	"logveil/src/internal/version"

	"github.com/lixenwraith/log"
)

var logger *log.Logger

func main() {
	// Parse flags first to get quiet mode early
	flagCfg, err := ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Initialize output handler with quiet mode
	InitOutputHandler(flagCfg.Quiet)

	// Handle version flag
	if flagCfg.ShowVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Set config file environment if specified
	if flagCfg.ConfigFile != "" {
		os.Setenv("LOGVEIL_CONFIG_FILE", flagCfg.ConfigFile)
	}

	// Load configuration with CLI overrides
	cfg, err := config.LoadWithCLI(os.Args[1:])
	if err != nil {
		if flagCfg.ConfigFile != "" && strings.Contains(err.Error(), "not found") {
			FatalError(2, "Config file not found: %s\n", flagCfg.ConfigFile)
		}
		FatalError(1, "Failed to load config: %v\n", err)
	}

	applyLogOverrides(cfg, flagCfg)

	// Validation-only mode
	if flagCfg.CheckConfig {
		for _, w := range cfg.Warnings {
			Error("Warning: %s\n", w)
		}
		Print("Configuration OK: pipeline '%s', %d stage(s), %d sink(s)\n",
			cfg.Pipeline.Name, len(cfg.Pipeline.Stages), len(cfg.Pipeline.Sinks))
		os.Exit(0)
	}

	// Write effective configuration and exit
	if flagCfg.WriteConfig != "" {
		if err := cfg.SaveToFile(flagCfg.WriteConfig); err != nil {
			FatalError(1, "Failed to write config: %v\n", err)
		}
		Print("Wrote configuration to %s\n", flagCfg.WriteConfig)
		os.Exit(0)
	}

	// Initialize logger with quiet mode awareness
	if err := initializeLogger(cfg); err != nil {
		FatalError(1, "Failed to initialize logger: %v\n", err)
	}
	defer shutdownLogger()

	reportConfigWarnings(cfg)

	logger.Info("msg", "LogVeil starting",
		"version", version.String(),
		"config_file", flagCfg.ConfigFile,
		"log_output", cfg.Logging.Output,
		"pipeline", cfg.Pipeline.Name)

	// Create context for shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the pipeline
	p, err := pipeline.FromConfig(&cfg.Pipeline, logger)
	if err != nil {
		logger.Error("msg", "Failed to build pipeline", "error", err)
		shutdownLogger()
		os.Exit(1)
	}

	logger.Info("msg", "LogVeil started",
		"version", version.Short(),
		"pipeline", cfg.Pipeline.Name,
		"stages", len(cfg.Pipeline.Stages),
		"sinks", len(cfg.Pipeline.Sinks))

	// Start the stdin pump
	pump := newStdinPump(p, logger)
	go pump.Run(os.Stdin)

	// Setup signal handling; SIGUSR1 dumps a status report
	signalHandler := NewSignalHandler(func() { reportStatus(p) }, logger)
	defer signalHandler.Stop()

	// Start status reporter if enabled
	if enableStatusReporter() {
		go statusReporter(ctx, p)
	}

	// Run until the input drains or a termination signal arrives
	sigChan := make(chan os.Signal, 1)
	go func() {
		sigChan <- signalHandler.Handle(ctx)
	}()

	select {
	case <-pump.Done():
		logger.Info("msg", "Input drained, starting graceful shutdown...")
	case sig := <-sigChan:
		if sig != nil {
			logger.Info("msg", "Shutdown signal received, starting graceful shutdown...",
				"signal", sig.String())
		}
	}

	// Shutdown pipeline with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := p.Shutdown(shutdownCtx); err != nil {
		logger.Error("msg", "Shutdown timeout exceeded - forcing exit", "error", err)
		shutdownLogger()
		os.Exit(1)
	}

	logger.Info("msg", "Shutdown complete")
}

func shutdownLogger() {
	if logger != nil {
		if err := logger.Shutdown(2 * time.Second); err != nil {
			// Best effort - can't log the shutdown error
			Error("Logger shutdown error: %v\n", err)
		}
	}
}

func enableStatusReporter() bool {
	// Status reporter can be disabled via environment variable
	if os.Getenv("LOGVEIL_DISABLE_STATUS_REPORTER") == "1" {
		return false
	}
	return true
}
