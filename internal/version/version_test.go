package version

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuild(t *testing.T, version, commit string, info *debug.BuildInfo) {
	t.Helper()

	oldVersion, oldCommit, oldRead := Version, GitCommit, readBuildInfo
	t.Cleanup(func() {
		Version, GitCommit, readBuildInfo = oldVersion, oldCommit, oldRead
	})

	Version, GitCommit = version, commit
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
}

func TestVersionFromLdflags(t *testing.T) {
	withBuild(t, "v1.2.0", "0123456789abcdef", nil)

	assert.Equal(t, "v1.2.0", GetVersion())
	assert.Equal(t, "v1.2.0 (0123456)", GetShortVersion())
	assert.True(t, IsRelease())
}

func TestVersionFromVCS(t *testing.T) {
	withBuild(t, "dev", "unknown", &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "fedcba9876543210"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	assert.Equal(t, "dev-fedcba9", GetVersion())
	assert.Equal(t, "fedcba9876543210", GetGitCommit())
	assert.Equal(t, "dev-fedcba9", GetShortVersion())
	assert.False(t, IsRelease())

	info := GetBuildInfo()
	assert.True(t, info.Dirty)
	assert.Contains(t, info.String(), "tally dev-fedcba9 (fedcba9) (dirty)\n")
}

func TestVersionWithoutBuildInfo(t *testing.T) {
	withBuild(t, "dev", "unknown", nil)

	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "unknown", GetGitCommit())
	assert.Equal(t, "dev", GetShortVersion())
	assert.NotContains(t, GetBuildInfo().String(), "Built:")
}

func TestParseBuildTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "2026-10-19T08:30:00Z", want: time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)},
		{in: "2026-10-19 08:30:00", want: time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)},
		{in: "unknown"},
		{in: "yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, tt.want.Equal(parseBuildTime(tt.in)))
		})
	}
}
