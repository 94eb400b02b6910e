package main

import (
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestVersionCommandExists(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}
	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q, want %q", versionCmd.Use, "version")
	}
	if versionCmd.Short == "" {
		t.Error("versionCmd.Short should not be empty")
	}
	if versionCmd.Run == nil {
		t.Error("versionCmd.Run should not be nil")
	}
}

func TestVersionOutput(t *testing.T) {
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	Version, GitCommit, BuildDate = "1.2.3-test", "abc123", "2026-01-02"
	t.Cleanup(func() { Version, GitCommit, BuildDate = origVersion, origCommit, origDate })

	out, err := run(t, func(cmd *cobra.Command, args []string) error {
		versionCmd.Run(cmd, args)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"Policyforge 1.2.3-test",
		"Git Commit: abc123",
		"Build Date: 2026-01-02",
		"Go Version: " + runtime.Version(),
		"OS/Arch: " + runtime.GOOS + "/" + runtime.GOARCH,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}
}
