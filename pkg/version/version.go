// Package version reports the ssdpradar build version.
package version

import (
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/carverauto/ssdpradar/pkg/version.version=...".
//
//nolint:gochecknoglobals // ldflags injection
var (
	version string
	buildID string
)

const unknown = "dev"

// GetVersion returns the ldflags version, else the module version recorded
// by the Go toolchain, else "dev".
func GetVersion() string {
	if version != "" {
		return version
	}

	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}

	return unknown
}

// GetBuildID returns the ldflags build ID, else the VCS revision, else "dev".
func GetBuildID() string {
	if buildID != "" {
		return buildID
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}

	return unknown
}

// GetFullVersion returns version, build ID and platform.
func GetFullVersion() string {
	return GetVersion() + " (build: " + GetBuildID() + ", " + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
