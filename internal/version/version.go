// Package version carries build metadata stamped in by the linker:
//
//	go build -ldflags "-X github.com/soyeahso/helix/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/helix/internal/version.Commit=abc123
//	  -X github.com/soyeahso/helix/internal/version.Date=2026-01-01"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns the one-line description printed by "helix version".
func Info() string {
	return fmt.Sprintf("helix %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies helix to model provider APIs.
func UserAgent() string {
	return "helix/" + Version + " (" + runtime.GOOS + "; " + runtime.GOARCH + ")"
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
