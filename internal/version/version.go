// Package version exposes build identity stamped in via -ldflags.
package version

// Defaults apply to plain `go build`; release builds overwrite them.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the full build identity for logs and --version output.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
