package version_test

import (
	"fmt"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/layoutprobe/internal/version"
)

type stubBuildInfoProvider struct {
	info      *debug.BuildInfo
	available bool
}

func (provider stubBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	if !provider.available {
		return nil, false
	}
	return provider.info, true
}

func TestVersionSources(testInstance *testing.T) {
	testCases := []struct {
		name          string
		linked        string
		provider      stubBuildInfoProvider
		expectVersion string
	}{
		{
			name:          "linked_version_wins",
			linked:        "v2.0.0",
			provider:      stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, available: true},
			expectVersion: "v2.0.0",
		},
		{
			name:          "module_version",
			provider:      stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, available: true},
			expectVersion: "v1.2.3",
		},
		{
			name: "clean_revision",
			provider: stubBuildInfoProvider{info: &debug.BuildInfo{
				Main:     debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef0123"}, {Key: "vcs.modified", Value: "false"}},
			}, available: true},
			expectVersion: "rev-0123456789ab",
		},
		{
			name: "dirty_revision",
			provider: stubBuildInfoProvider{info: &debug.BuildInfo{
				Main:     debug.Module{Version: "devel"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}, {Key: "vcs.modified", Value: "true"}},
			}, available: true},
			expectVersion: "rev-abc123-dirty",
		},
		{
			name:          "devel_without_revision",
			provider:      stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, available: true},
			expectVersion: "unknown",
		},
		{
			name:          "build_info_unavailable",
			provider:      stubBuildInfoProvider{},
			expectVersion: "unknown",
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			versionString := version.Detect(version.Dependencies{BuildInfoProvider: testCase.provider, LinkedVersion: testCase.linked})
			require.Equal(testInstance, testCase.expectVersion, versionString)
		})
	}
}

func TestNilDetectorReportsUnknown(testInstance *testing.T) {
	var detector *version.Detector
	require.Equal(testInstance, "unknown", detector.Version())
}
