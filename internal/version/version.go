// Package version holds build metadata injected through ldflags.
package version

var (
	// Version is the release tag of the mejorinversion binary.
	Version = "dev"
	// Commit is the git revision the binary was built from.
	Commit = "unknown"
	// BuildDate is when the binary was built.
	BuildDate = "unknown"
)
