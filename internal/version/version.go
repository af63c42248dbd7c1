// Package version holds build version information. A separate package
// so the CLI and any embedding code read the same values without import
// cycles.
package version

// Version is the build version string, set by ldflags during build.
var Version = "v1.0.0-dev"

// BuildTime is the build timestamp, set by ldflags during build.
var BuildTime = "unknown"
