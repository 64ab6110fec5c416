package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintVersion(t *testing.T) {
	tests := []struct {
		name          string
		version       string
		build         string
		buildTime     string
		expectContain []string
		expectMissing []string
	}{
		{
			name:          "dev build",
			version:       "dev",
			build:         "unknown",
			expectContain: []string{"uacommander version dev", "Go version:", "OS/Arch:"},
			expectMissing: []string{"(build:"},
		},
		{
			name:          "release build with time",
			version:       "0.3.0",
			build:         "abc1234",
			buildTime:     "2026-10-01_08:00:00",
			expectContain: []string{"uacommander version 0.3.0", "(build: abc1234)", "[2026-10-01_08:00:00]"},
			expectMissing: []string{"Commit:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origVersion, origBuild, origBuildTime := Version, Build, BuildTime
			defer func() {
				Version, Build, BuildTime = origVersion, origBuild, origBuildTime
			}()
			Version, Build, BuildTime = tt.version, tt.build, tt.buildTime

			var buf bytes.Buffer
			printVersion(&buf)
			output := buf.String()

			for _, expected := range tt.expectContain {
				if !strings.Contains(output, expected) {
					t.Errorf("Expected output to contain %q, but got:\n%s", expected, output)
				}
			}
			for _, unexpected := range tt.expectMissing {
				if strings.Contains(output, unexpected) {
					t.Errorf("Expected output not to contain %q, but got:\n%s", unexpected, output)
				}
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand(testDeps(t))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "uacommander version ") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
