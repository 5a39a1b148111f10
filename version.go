// Package weekorder holds build metadata for the weekly ordering service.
package weekorder

// Set during build with -ldflags "-X github.com/weekorder/weekorder.Version=..."
var (
	// Version is the service version reported to telemetry and the startup log
	Version = "development"

	// BuildDate is set during build time
	BuildDate = "development"

	// GitCommit is set during build time
	GitCommit = "unknown"
)
