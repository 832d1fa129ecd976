// Package version exposes build metadata set with -ldflags.
package version

import "runtime/debug"

// Version is overridden at build time:
//
//	go build -ldflags "-X github.com/ndewijer/Finance-Insights/internal/version.Version=1.2.0"
var Version = "dev"

// Commit returns the VCS revision embedded by the Go toolchain, or "" when
// the binary was built outside a checkout.
func Commit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return ""
}
