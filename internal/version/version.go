// Package version exposes build information stamped in via -ldflags.
package version

import "runtime"

var (
	// Version is the semantic version or git tag, set at build time.
	Version = "dev"
	// Commit is the short git commit hash, set at build time.
	Commit = "none"
	// BuildTime is the UTC build timestamp, set at build time.
	BuildTime = "unknown"
)

// Info bundles the build metadata for logging and health endpoints.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}
