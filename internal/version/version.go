// Package version provides build information for parmat binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	unknownValue     = "unknown"
	devVersion       = "dev"
	commitHashLength = 7
)

// Build-time variables set by ldflags
//
//nolint:gochecknoglobals // set with -ldflags "-X"
var (
	Version   = devVersion
	BuildDate = unknownValue
	GitCommit = unknownValue
	GoVersion = runtime.Version()
)

// BuildInfo contains detailed build information
type BuildInfo struct {
	Version   string    `json:"version"`
	BuildDate string    `json:"build_date"`
	GitCommit string    `json:"git_commit"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
	BuildTime time.Time `json:"build_time"`
	Dirty     bool      `json:"dirty"`
	Module    string    `json:"module,omitempty"`
	Deps      []Module  `json:"deps,omitempty"`
}

// Module represents a dependency compiled into the binary
type Module struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

// Info returns the build information of the running binary. VCS settings
// recorded by the Go toolchain fill in whatever ldflags left unset.
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: GoVersion,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dirty:     strings.HasSuffix(GitCommit, "-dirty"),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Module = bi.Main.Path
		for _, dep := range bi.Deps {
			info.Deps = append(info.Deps, Module{Path: dep.Path, Version: dep.Version})
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == unknownValue {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == unknownValue {
					info.BuildDate = s.Value
				}
			case "vcs.modified":
				info.Dirty = info.Dirty || s.Value == "true"
			}
		}
	}

	info.BuildTime, _ = time.Parse(time.RFC3339, info.BuildDate)
	return info
}

// String returns a formatted version string
func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "parmat %s", b.Version)
	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	sb.WriteString("\n")

	if b.BuildDate != unknownValue && b.BuildDate != "" {
		fmt.Fprintf(&sb, "Build Date: %s\n", b.BuildDate)
	}
	if b.GitCommit != unknownValue && b.GitCommit != "" {
		commit := b.GitCommit
		if len(commit) > commitHashLength {
			commit = commit[:commitHashLength]
		}
		fmt.Fprintf(&sb, "Git Commit: %s\n", commit)
	}
	fmt.Fprintf(&sb, "Go Version: %s\n", b.GoVersion)
	if b.Platform != "" {
		fmt.Fprintf(&sb, "Platform: %s\n", b.Platform)
	}
	return sb.String()
}

// UserAgent returns the user agent sent by parmat HTTP clients
func UserAgent() string {
	return "parmat/" + Version
}

// canonical returns v with a leading "v", as x/mod/semver expects.
func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// IsValid reports whether v is a semantic version, with or without the "v" prefix.
func IsValid(v string) bool {
	return semver.IsValid(canonical(v))
}

// IsRelease returns true if this is a tagged, non pre-release version
func IsRelease() bool {
	v := canonical(Version)
	return semver.IsValid(v) && semver.Prerelease(v) == ""
}

// IsPreRelease returns true if this is a tagged pre-release version
func IsPreRelease() bool {
	v := canonical(Version)
	return semver.IsValid(v) && semver.Prerelease(v) != ""
}

// Compare compares two semantic versions: -1 if a < b, 0 if equal, 1 if a > b.
// An invalid version compares lower than every valid one.
func Compare(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}
