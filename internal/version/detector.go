package version

import (
	"runtime/debug"
	"strings"
)

const (
	unknownVersionFallbackConstant = "unknown"
	buildInfoDevelVersionValue     = "(devel)"
	buildInfoDevelShortValue       = "devel"
	vcsRevisionSettingConstant     = "vcs.revision"
	vcsModifiedSettingConstant     = "vcs.modified"
	revisionPrefixConstant         = "rev-"
	dirtySuffixConstant            = "-dirty"
	shortRevisionLengthConstant    = 12
)

// BuildVersion is injected with -ldflags "-X github.com/tyemirov/layoutprobe/internal/version.BuildVersion=v1.2.3".
var BuildVersion string

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Detector resolves application version strings.
type Detector struct {
	buildInfoProvider BuildInfoProvider
	linkedVersion     string
}

// Dependencies describes the collaborators required for version detection.
type Dependencies struct {
	BuildInfoProvider BuildInfoProvider
	LinkedVersion     string
}

// NewDetector constructs a Detector with the supplied dependencies or runtime defaults.
func NewDetector(dependencies Dependencies) *Detector {
	provider := dependencies.BuildInfoProvider
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}
	linkedVersion := dependencies.LinkedVersion
	if len(strings.TrimSpace(linkedVersion)) == 0 {
		linkedVersion = BuildVersion
	}
	return &Detector{buildInfoProvider: provider, linkedVersion: strings.TrimSpace(linkedVersion)}
}

// Detect resolves the application version using the supplied dependencies.
func Detect(dependencies Dependencies) string {
	return NewDetector(dependencies).Version()
}

// Version prefers the linker-injected version, then the module version, then the VCS revision.
func (detector *Detector) Version() string {
	if detector == nil {
		return unknownVersionFallbackConstant
	}
	if len(detector.linkedVersion) > 0 {
		return detector.linkedVersion
	}

	buildInfo, available := detector.buildInfoProvider.Read()
	if !available || buildInfo == nil {
		return unknownVersionFallbackConstant
	}

	if moduleVersion := strings.TrimSpace(buildInfo.Main.Version); len(moduleVersion) > 0 &&
		moduleVersion != buildInfoDevelVersionValue && !strings.EqualFold(moduleVersion, buildInfoDevelShortValue) {
		return moduleVersion
	}

	if revision := revisionFromSettings(buildInfo.Settings); len(revision) > 0 {
		return revision
	}

	return unknownVersionFallbackConstant
}

func revisionFromSettings(settings []debug.BuildSetting) string {
	var revision string
	var modified bool
	for _, setting := range settings {
		switch setting.Key {
		case vcsRevisionSettingConstant:
			revision = strings.TrimSpace(setting.Value)
		case vcsModifiedSettingConstant:
			modified = setting.Value == "true"
		}
	}
	if len(revision) == 0 {
		return ""
	}
	if len(revision) > shortRevisionLengthConstant {
		revision = revision[:shortRevisionLengthConstant]
	}
	revision = revisionPrefixConstant + revision
	if modified {
		revision += dirtySuffixConstant
	}
	return revision
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}
