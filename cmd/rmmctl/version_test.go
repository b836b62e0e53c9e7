package main

import (
	"encoding/json"
	"runtime/debug"
	"strings"
	"testing"
)

func TestBuildVersion(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/joshuapare/rmmkit/cmd/rmmctl", Version: "v0.3.0"},
		Deps: []*debug.Module{
			{Path: "github.com/spf13/cobra", Version: "v1.10.1"},
			{Path: libraryPath, Version: "v0.3.0"},
		},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	v := buildVersion(info)
	if v.Version != "v0.3.0" {
		t.Errorf("Version = %q, want v0.3.0", v.Version)
	}
	if v.Library != "v0.3.0" {
		t.Errorf("Library = %q, want v0.3.0", v.Library)
	}
	if v.Revision != "abc123" || !v.Modified {
		t.Errorf("Revision = %q modified=%v, want abc123 modified", v.Revision, v.Modified)
	}
}

func TestBuildVersion_ReplacedLibrary(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Deps: []*debug.Module{
			{Path: libraryPath, Version: "v0.0.0", Replace: &debug.Module{Path: "../../"}},
		},
	}

	v := buildVersion(info)
	if v.Library != "../../" {
		t.Errorf("Library = %q, want the replacement path", v.Library)
	}
	if v.Version != "(devel)" {
		t.Errorf("Version = %q, want (devel)", v.Version)
	}
}

func TestBuildVersion_NoBuildInfo(t *testing.T) {
	v := buildVersion(nil)
	if v.Version != "(devel)" || v.Library != "(devel)" {
		t.Errorf("got %+v, want devel placeholders", v)
	}
	if !strings.Contains(v.Platform, "/") {
		t.Errorf("Platform = %q, want os/arch", v.Platform)
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	resetBenchFlags()
	jsonOut = true
	defer resetBenchFlags()

	out, err := captureOutput(t, func() error {
		return versionCmd.RunE(versionCmd, nil)
	})
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var v VersionInfo
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if v.Version == "" || v.GoVersion == "" {
		t.Errorf("incomplete version info: %+v", v)
	}
}
