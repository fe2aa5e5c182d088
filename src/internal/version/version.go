// FILE: logveil/src/internal/version/version.go
package version

import "fmt"

var (
	// Version is set at compile time via -ldflags
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String returns the full version line used by --version output.
func String() string {
	return fmt.Sprintf("logveil %s (commit: %s, built: %s)", Version, GitCommit, BuildTime)
}

// Short returns just the version tag.
func Short() string {
	return Version
}
