// Package version holds build metadata, set via ldflags.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// IsDev reports whether this is an unreleased build.
func IsDev() bool {
	return Version == "dev"
}

// Full returns the version line printed by `netkit version`.
func Full() string {
	if IsDev() {
		return "netkit dev (built from source)"
	}
	return fmt.Sprintf("netkit %s (%s, %s)", Version, shortCommit(), Date)
}

// UserAgent returns the User-Agent sent with every request.
func UserAgent() string {
	return "netkit/" + Version + " (https://github.com/basecamp/netkit)"
}

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}
