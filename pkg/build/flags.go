// SPDX-License-Identifier: MIT
//
// Package build provides the build metadata of the binary: name, build time,
// Git commit and semantic version. Release builds inject them with linker
// flags, for example:
//
//	go build -ldflags "-X pdmcap/pkg/build.buildName=pdmcap -X pdmcap/pkg/build.buildVersion=0.1.0 ..."
//
// Development builds fall back to the module and VCS data the Go toolchain
// embeds.
package build

import (
	"fmt"
	"runtime/debug"
)

// DefaultName is used when no name was injected.
const DefaultName = "pdmcap"

// Info is the build metadata.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = Info{
		Name:    DefaultName,
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
)

// Initialize validates and copies the ldflags variables. It returns an
// error naming the first missing flag and leaves the current info as is.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildInfo = Info{
		Name:    buildName,
		Time:    buildTime,
		Commit:  buildCommit,
		Version: buildVersion,
	}
	return nil
}

// UseModuleInfo fills the info from the data embedded by the Go toolchain.
// It is the fallback for builds without ldflags.
func UseModuleInfo() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	buildInfo = fromModule(bi)
}

func fromModule(bi *debug.BuildInfo) Info {
	info := Info{Name: DefaultName, Time: "unknown", Commit: "unknown", Version: bi.Main.Version}
	if info.Version == "" {
		info.Version = "(devel)"
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
			if len(info.Commit) > 12 {
				info.Commit = info.Commit[:12]
			}
		case "vcs.time":
			info.Time = s.Value
		}
	}
	return info
}

// Get returns the current build information.
func Get() Info {
	return buildInfo
}
