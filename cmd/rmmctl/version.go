package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

const libraryPath = "github.com/joshuapare/rmmkit"

// version is overridden at link time with -X main.version=...
var version = ""

// VersionInfo describes the running binary and the rmmkit library it links.
type VersionInfo struct {
	Version   string `json:"version"`
	Library   string `json:"library"`
	GoVersion string `json:"go"`
	Platform  string `json:"platform"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

// buildVersion reads the module versions recorded in the binary. info may be
// nil when the binary was built without module support.
func buildVersion(info *debug.BuildInfo) VersionInfo {
	v := VersionInfo{
		Version:   version,
		Library:   "(devel)",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info == nil {
		if v.Version == "" {
			v.Version = "(devel)"
		}
		return v
	}
	if v.Version == "" {
		v.Version = info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep.Path != libraryPath {
			continue
		}
		v.Library = dep.Version
		if dep.Replace != nil {
			v.Library = dep.Replace.Path
			if dep.Replace.Version != "" {
				v.Library += "@" + dep.Replace.Version
			}
		}
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			v.Revision = s.Value
		case "vcs.modified":
			v.Modified = s.Value == "true"
		}
	}
	if v.Version == "" {
		v.Version = "(devel)"
	}
	return v
}

func currentVersion() VersionInfo {
	info, _ := debug.ReadBuildInfo()
	return buildVersion(info)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print rmmctl and rmmkit versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := currentVersion()
		if jsonOut {
			return printJSON(v)
		}
		fmt.Printf("rmmctl %s\n", v.Version)
		fmt.Printf("  rmmkit:   %s\n", v.Library)
		fmt.Printf("  go:       %s %s\n", v.GoVersion, v.Platform)
		if v.Revision != "" {
			dirty := ""
			if v.Modified {
				dirty = " (modified)"
			}
			fmt.Printf("  revision: %s%s\n", v.Revision, dirty)
		}
		return nil
	},
}

func init() {
	rootCmd.Version = currentVersion().Version
	rootCmd.AddCommand(versionCmd)
}
