// Package version reports the console build's version information.
// Variables can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/LyrebirdAI/console/version.version=1.0.0"
package version

import (
	"fmt"
	"runtime/debug"
)

const (
	// devVersion is the default version when not set via ldflags.
	devVersion = "dev"
	// shortCommitLen is the length of the short commit hash.
	shortCommitLen = 7
	// vcsRevisionKey is the build info key for the git commit.
	vcsRevisionKey = "vcs.revision"
	// vcsModifiedKey is the build info key for the dirty state.
	vcsModifiedKey = "vcs.modified"
)

// Build-time variables, overridable with -ldflags.
var (
	version   = devVersion
	gitCommit = ""
)

// Version returns the version string, falling back to module build info
// when not set at build time.
func Version() string {
	if version != devVersion {
		return version
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return devVersion
}

// Commit returns the short git commit the binary was built from, with a
// "-dirty" suffix when the tree had local modifications. Empty when
// unknown.
func Commit() string {
	commit := gitCommit
	dirty := false

	if commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case vcsRevisionKey:
					commit = setting.Value
				case vcsModifiedKey:
					dirty = setting.Value == "true"
				}
			}
		}
	}

	if commit == "" {
		return ""
	}
	if len(commit) > shortCommitLen {
		commit = commit[:shortCommitLen]
	}
	if dirty {
		commit += "-dirty"
	}
	return commit
}

// String returns a human-readable "version (commit)" label.
func String() string {
	if commit := Commit(); commit != "" {
		return fmt.Sprintf("%s (%s)", Version(), commit)
	}
	return Version()
}
