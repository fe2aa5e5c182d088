// FILE: logveil/src/internal/config/config.go
package config

// Config is the root configuration for logveil.
type Config struct {
	// The event pipeline: threshold, redaction, stages, sinks, format.
	Pipeline PipelineConfig `toml:"pipeline"`

	// Operational logging for logveil itself, not the processed events.
	Logging *LogConfig `toml:"logging"`

	// Quiet disables all operational logging output
	Quiet bool `toml:"quiet"`

	// Warnings collects non-fatal fallbacks applied during validation,
	// for emission once the ops logger is up.
	Warnings []string `toml:"-"`
}

// validate applies fallback classes and rejects structural errors.
// Invalid-but-recoverable values (bad threshold, traversal segments in
// a file path) are replaced with safe defaults and recorded in
// Warnings; everything else fails loading.
func (c *Config) validate() error {
	c.Warnings = c.Warnings[:0]

	if err := c.Pipeline.validate(&c.Warnings); err != nil {
		return err
	}

	if c.Logging == nil {
		c.Logging = DefaultLogConfig()
	}
	return validateLogConfig(c.Logging)
}
