// Package version exposes build metadata stamped in through ldflags.
package version

var (
	Version = "dev"
	Commit  = "unknown"
)
