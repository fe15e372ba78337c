// Package version holds build metadata, set at link time:
//
//	go build -ldflags "-X github.com/MrSnakeDoc/teslahub/internal/version.Version=v0.3.0 ..."
package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = time.Now().Format(time.RFC3339)
	GoVersion = runtime.Version()
)

// Info is the build metadata as one value.
type Info struct {
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
}

func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildDate: BuildDate, GoVersion: GoVersion}
}

func (i Info) String() string {
	return fmt.Sprintf("teslahub %s (commit %s, built %s, %s)", i.Version, i.Commit, i.BuildDate, i.GoVersion)
}
