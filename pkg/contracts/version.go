package contracts

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const (
	Version      = "1.0.0"
	VersionStage = "stable"

	// APIVersion versions the HTTP payloads in api/v1 and the websocket events
	APIVersion = "v1"
)

// Overridden with -ldflags "-X riskdash/pkg/contracts.GitCommit=..."
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is served by /api/version and printed by `detect -version`
type VersionInfo struct {
	Version      string `json:"version"`
	Stage        string `json:"stage"`
	APIVersion   string `json:"api_version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
}

// GetVersionInfo fills build time and commit from the linker flags, falling
// back to the VCS stamp the go command embeds in module builds.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:      Version,
		Stage:        VersionStage,
		APIVersion:   APIVersion,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.GitCommit == "unknown":
				info.GitCommit = s.Value
			case s.Key == "vcs.time" && info.BuildTime == "unknown":
				info.BuildTime = s.Value
			}
		}
	}
	return info
}

// GetFullVersionString is the one-line form of GetVersionInfo
func GetFullVersionString() string {
	info := GetVersionInfo()
	return fmt.Sprintf("Risk Dashboard Intake v%s (%s, api %s, built: %s, commit: %s, %s %s/%s)",
		info.Version, info.Stage, info.APIVersion, info.BuildTime, info.GitCommit,
		info.GoVersion, info.OS, info.Architecture)
}
