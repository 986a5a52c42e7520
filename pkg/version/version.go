package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/yeyushilai/VMware-Manager/pkg/version.gitVersion=..."
var (
	gitVersion = "v0.0.0-unknown"
	gitCommit  = ""
	buildDate  = ""
)

type Info struct {
	GitVersion string `json:"gitVersion"`
	GitCommit  string `json:"gitCommit"`
	BuildDate  string `json:"buildDate"`
	GoVersion  string `json:"goVersion"`
	Platform   string `json:"platform"`
}

func Get() Info {
	return Info{
		GitVersion: gitVersion,
		GitCommit:  gitCommit,
		BuildDate:  buildDate,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (i Info) String() string {
	if i.GitCommit == "" {
		return i.GitVersion
	}
	return fmt.Sprintf("%s (%s)", i.GitVersion, i.GitCommit)
}
