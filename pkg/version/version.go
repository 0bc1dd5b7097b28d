package version

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

const moduleName = "github.com/replicatedhq/mustgather"

// Set with -ldflags "-X github.com/replicatedhq/mustgather/pkg/version.version=..."
var (
	version   = ""
	gitSHA    = ""
	buildTime = ""

	build     Build
	buildOnce sync.Once
)

// Build holds details about this build of the binary
type Build struct {
	Version      string    `json:"version,omitempty" yaml:"version,omitempty"`
	GitSHA       string    `json:"git,omitempty" yaml:"git,omitempty"`
	BuildTime    time.Time `json:"buildTime,omitempty" yaml:"buildTime,omitempty"`
	TimeFallback string    `json:"buildTimeFallback,omitempty" yaml:"buildTimeFallback,omitempty"`
	GoInfo       GoInfo    `json:"go,omitempty" yaml:"go,omitempty"`
}

type GoInfo struct {
	Version  string `json:"version,omitempty" yaml:"version,omitempty"`
	Compiler string `json:"compiler,omitempty" yaml:"compiler,omitempty"`
	OS       string `json:"os,omitempty" yaml:"os,omitempty"`
	Arch     string `json:"arch,omitempty" yaml:"arch,omitempty"`
}

// initBuild sets up the version info from build args or, when the binary
// was built without them, from the module's build info.
func initBuild() {
	v := version
	if v == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			if bi.Main.Path == moduleName {
				v = bi.Main.Version
			}
			for _, dep := range bi.Deps {
				if dep.Path == moduleName {
					v = dep.Version
					break
				}
			}
		}
	}

	build.Version = v
	if len(gitSHA) >= 7 {
		build.GitSHA = gitSHA[:7]
	}

	var err error
	build.BuildTime, err = time.Parse(time.RFC3339, buildTime)
	if err != nil {
		build.TimeFallback = buildTime
	}

	build.GoInfo = getGoInfo()
}

// GetBuild gets the build
func GetBuild() Build {
	buildOnce.Do(initBuild)
	return build
}

// Version gets the version
func Version() string {
	return GetBuild().Version
}

func getGoInfo() GoInfo {
	return GoInfo{
		Version:  runtime.Version(),
		Compiler: runtime.Compiler,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
	}
}
