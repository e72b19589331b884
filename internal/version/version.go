package version

import "fmt"

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/autobuild/internal/version.Version=v1.0.0".
var Version = "unknown"

// Build metadata, also injected through ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by `autobuild --version`.
func String() string {
	return fmt.Sprintf("autobuild %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
