// FILE: logveil/src/cmd/logveil/flags.go
package main

import (
	"flag"
	"fmt"
	"os"
)

// Command-line flags resolved into a single struct
type FlagConfig struct {
	ConfigFile  string
	ShowVersion bool
	Quiet       bool
	CheckConfig bool
	WriteConfig string

	// Logging overrides (empty means use config file value)
	LogOutput  string
	LogLevel   string
	LogDir     string
	LogConsole string
}

func ParseFlags() (*FlagConfig, error) {
	fc := &FlagConfig{}

	flag.StringVar(&fc.ConfigFile, "config", "", "Config file path")
	flag.BoolVar(&fc.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&fc.Quiet, "quiet", false, "Suppress all console output")
	flag.BoolVar(&fc.CheckConfig, "check-config", false, "Validate configuration and exit")
	flag.StringVar(&fc.WriteConfig, "write-config", "", "Write effective configuration to path and exit")

	flag.StringVar(&fc.LogOutput, "log-output", "", "Log output: file, stdout, stderr, both, none (overrides config)")
	flag.StringVar(&fc.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.StringVar(&fc.LogDir, "log-dir", "", "Log directory (when using file output)")
	flag.StringVar(&fc.LogConsole, "log-console", "", "Console target: stdout, stderr, split (overrides config)")

	flag.Usage = customUsage
	flag.Parse()

	if fc.LogOutput != "" {
		validOutputs := map[string]bool{
			"file": true, "stdout": true, "stderr": true,
			"both": true, "none": true,
		}
		if !validOutputs[fc.LogOutput] {
			return nil, fmt.Errorf("invalid log-output: %s (valid: file, stdout, stderr, both, none)", fc.LogOutput)
		}
	}

	if fc.LogLevel != "" {
		if _, err := parseLogLevel(fc.LogLevel); err != nil {
			return nil, fmt.Errorf("invalid log-level: %s (valid: debug, info, warn, error)", fc.LogLevel)
		}
	}

	if fc.LogConsole != "" {
		validTargets := map[string]bool{
			"stdout": true, "stderr": true, "split": true,
		}
		if !validTargets[fc.LogConsole] {
			return nil, fmt.Errorf("invalid log-console: %s (valid: stdout, stderr, split)", fc.LogConsole)
		}
	}

	return fc, nil
}

func customUsage() {
	fmt.Fprintf(os.Stderr, "LogVeil - Structured Log Redaction Pipeline\n\n")
	fmt.Fprintf(os.Stderr, "Reads log lines from stdin, runs them through the configured\n")
	fmt.Fprintf(os.Stderr, "stage chain and redaction policy, and writes them to the\n")
	fmt.Fprintf(os.Stderr, "configured sinks.\n\n")
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Options:\n")

	fmt.Fprintf(os.Stderr, "\nGeneral:\n")
	fmt.Fprintf(os.Stderr, "  -config string\n\tConfig file path\n")
	fmt.Fprintf(os.Stderr, "  -version\n\tShow version information\n")
	fmt.Fprintf(os.Stderr, "  -quiet\n\tSuppress all console output\n")
	fmt.Fprintf(os.Stderr, "  -check-config\n\tValidate configuration and exit\n")
	fmt.Fprintf(os.Stderr, "  -write-config string\n\tWrite effective configuration to path and exit\n")

	fmt.Fprintf(os.Stderr, "\nLogging:\n")
	fmt.Fprintf(os.Stderr, "  -log-output string\n\tLog output: file, stdout, stderr, both, none (overrides config)\n")
	fmt.Fprintf(os.Stderr, "  -log-level string\n\tLog level: debug, info, warn, error (overrides config)\n")
	fmt.Fprintf(os.Stderr, "  -log-dir string\n\tLog directory (when using file output)\n")
	fmt.Fprintf(os.Stderr, "  -log-console string\n\tConsole target: stdout, stderr, split (overrides config)\n")

	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  # Redact app output with the default policy, JSON to stdout\n")
	fmt.Fprintf(os.Stderr, "  myapp 2>&1 | %s\n\n", os.Args[0])

	fmt.Fprintf(os.Stderr, "  # Use a config file and write to a rotating log file\n")
	fmt.Fprintf(os.Stderr, "  myapp 2>&1 | %s --config /etc/logveil.toml\n\n", os.Args[0])

	fmt.Fprintf(os.Stderr, "  # Validate a config without processing anything\n")
	fmt.Fprintf(os.Stderr, "  %s --config /etc/logveil.toml --check-config\n\n", os.Args[0])

	fmt.Fprintf(os.Stderr, "Environment Variables:\n")
	fmt.Fprintf(os.Stderr, "  LOGVEIL_CONFIG_FILE              Config file path\n")
	fmt.Fprintf(os.Stderr, "  LOGVEIL_CONFIG_DIR               Config directory\n")
	fmt.Fprintf(os.Stderr, "  LOGVEIL_REDACT_HASH_KEY          Key for redaction fingerprints\n")
	fmt.Fprintf(os.Stderr, "  LOGVEIL_DISABLE_STATUS_REPORTER  Disable periodic status reports (set to 1)\n")
}
