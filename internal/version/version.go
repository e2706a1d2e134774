// Package version exposes build information injected with -ldflags.
package version

import (
	"runtime"
	"runtime/debug"
	"time"
)

// Build-time variables set via ldflags, e.g.
// -X github.com/sean-rowe/best-bike-day/internal/version.Version=1.2.0
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

// Info is served by /version and printed by the CLI.
type Info struct {
	Version   string    `json:"version"`
	BuildTime string    `json:"build_time"`
	GitCommit string    `json:"git_commit"`
	GitBranch string    `json:"git_branch"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
	BuildDate time.Time `json:"build_date"`
}

// Get returns the build information. Without ldflags the commit falls back to the
// VCS revision recorded by the Go toolchain.
func Get() Info {
	info := Info{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildDate = t
	}

	if info.GitCommit == "unknown" {
		if build, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range build.Settings {
				if setting.Key == "vcs.revision" {
					info.GitCommit = setting.Value
				}
			}
		}
	}

	return info
}

// String renders a one-line version banner.
func (i Info) String() string {
	commit := i.GitCommit

	if len(commit) > 7 {
		commit = commit[:7]
	}

	return i.Version + " (" + commit + ", " + i.GoVersion + " " + i.Platform + ")"
}
