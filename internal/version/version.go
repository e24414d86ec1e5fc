package version

import (
	"fmt"
	"runtime"
)

// Build metadata, set with -ldflags "-X currencyconv/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info renders the build metadata as a multi-line block.
func Info() string {
	return fmt.Sprintf("currencyconv %s\ncommit: %s\nbuilt: %s\ngo: %s %s/%s",
		Version, Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
