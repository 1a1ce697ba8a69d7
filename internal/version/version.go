// Package version reports the build version of deckstats. Set it at build
// time with:
//
//	go build -ldflags "-X github.com/ramonehamilton/deckstats/internal/version.Version=v1.2.3"
package version

import "runtime/debug"

// Version defaults to "dev".
var Version = "dev"

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Revision  string `json:"revision,omitempty"`
}

// Get returns the version and, when the binary carries VCS stamps, the
// commit it was built from.
func Get() Info {
	info := Info{Version: Version}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			info.Revision = s.Value
		}
	}
	return info
}
