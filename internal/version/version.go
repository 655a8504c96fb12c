// Package version identifies the hass-update and hass-update-demo builds.
//
// The version appears in the TUI header, in 'version' output and in the
// User-Agent of the websocket handshake, so Home Assistant logs show which
// client connected. Release builds stamp it with ldflags:
//
//	go build -ldflags="-X github.com/muurk/hassupdate/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/hassupdate/internal/version.Commit=abc123"
//
// 'go install github.com/muurk/hassupdate/cmd/hass-update@v1.2.3' needs no
// ldflags: the module version comes from the build info.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

var (
	// Version is the release, e.g. v1.2.3
	Version = ""
	// Commit is the short git revision
	Commit = ""
)

// shortCommit is the length of a displayed revision
const shortCommit = 7

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			v, c := fromBuildInfo(info)
			if Version == "" {
				Version = v
			}
			if Commit == "" {
				Commit = c
			}
		}
	}

	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo derives a version and commit. A tagged module version wins;
// local builds get dev-<commit date>. Either value may be empty.
func fromBuildInfo(info *debug.BuildInfo) (version, commit string) {
	if v := info.Main.Version; v != "" && v != "(devel)" {
		version = v
	}

	var modified bool
	var vcsTime string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		case "vcs.time":
			vcsTime = setting.Value
		}
	}

	if len(commit) > shortCommit {
		commit = commit[:shortCommit]
	}
	if commit != "" && modified {
		commit += "-dirty"
	}

	if version == "" && vcsTime != "" {
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			version = "dev-" + t.Format("20060102")
		}
	}
	return version, commit
}

// Full returns the version with its commit, as printed by 'version'.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent is sent in the websocket handshake.
func UserAgent() string {
	return "hass-update/" + Version
}
