// Package version holds build metadata, set with -ldflags at release time.
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// UserAgent identifies outbound HTTP calls.
func UserAgent() string {
	return "stgrag/" + Version
}
