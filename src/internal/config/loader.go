// FILE: logveil/src/internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

func defaults() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Name:  "default",
			Level: "info",
			Redaction: RedactionConfig{
				PreserveLength: true,
			},
			Sinks: []SinkConfig{
				{
					Type: "console",
					Options: map[string]any{
						"target": "stdout",
					},
				},
			},
			Format: FormatConfig{
				Type: "json",
			},
		},
		Logging: DefaultLogConfig(),
	}
}

func LoadWithCLI(cliArgs []string) (*Config, error) {
	configPath := GetConfigPath()

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix("LOGVEIL_").
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, finalConfig.validate()
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	env = "LOGVEIL_" + env
	return env
}

func GetConfigPath() string {
	if configFile := os.Getenv("LOGVEIL_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("LOGVEIL_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("LOGVEIL_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "logveil.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "logveil.toml")
	}

	return "logveil.toml"
}
