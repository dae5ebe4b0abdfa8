package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Info describes the running build. Fields set by -ldflags take precedence
// over what the Go toolchain embedded.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// New fills in defaults for any value the linker did not provide
func New(version, commit, buildTime string) Info {
	info := Info{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			}
		}
	}

	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}

// Short returns "<version>-<commit[:7]>"
func (i Info) Short() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s-%s", i.Version, commit)
}

// String returns the multi-line banner printed by `panelcap version`
func (i Info) String() string {
	return fmt.Sprintf(`panelcap (display panel capability extractor)
Version:    %s
Commit:     %s
Built:      %s
Go version: %s
OS/Arch:    %s`,
		i.Version, i.Commit, i.BuildTime, i.GoVersion, i.Platform)
}
