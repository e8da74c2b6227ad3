// Package version reports the build identity of the deface binary.
package version

import (
	"fmt"
	"runtime"
)

// Version is set at build time using -ldflags.
var Version = "dev"

// Commit is set at build time using -ldflags.
var Commit = "none"

// BuildTime is set at build time using -ldflags.
var BuildTime = "unknown"

// String returns the one-line version banner.
func String() string {
	return fmt.Sprintf("deface version %s (commit %s, built %s, %s)", Version, Commit, BuildTime, runtime.Version())
}
