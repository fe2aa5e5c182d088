// FILE: logveil/src/internal/core/const.go
package core

import "time"

// Masking defaults
const (
	DefaultMaskRune    = '*'
	FixedMaskWidth     = 3
	MaxErrorFieldBytes = 256
)

// Sink defaults
const (
	DefaultBufferCapacity  = 64
	DefaultFlushInterval   = 5 * time.Second
	DefaultMaxFileSizeMB   = 10
	DefaultMaxBackupFiles  = 5
	DefaultShutdownTimeout = 5 * time.Second
)

// Stage defaults
const DefaultFrequencyWindow = time.Minute
