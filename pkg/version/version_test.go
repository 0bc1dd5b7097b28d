package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBuild(t *testing.T) {
	build := GetBuild()

	assert.Equal(t, runtime.Version(), build.GoInfo.Version)
	assert.Equal(t, runtime.GOOS, build.GoInfo.OS)
	assert.Equal(t, build.Version, Version())
	// Test binaries carry no build time.
	assert.True(t, build.BuildTime.IsZero())
}
