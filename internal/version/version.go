// Package version carries build metadata, set via ldflags during build:
//
//	go build -ldflags "-X github.com/bnema/seedpool/internal/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String renders a one-line summary for `seedpool version --verbose`.
func String() string {
	return fmt.Sprintf("seedpool %s (commit %s, built %s, %s %s/%s)", Version, Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
