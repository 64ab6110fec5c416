package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	appErrors "uacommander/internal/errors"
)

func TestDefaultsWithoutFiles(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, "missing.yaml"))); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := GetString(KeyEndpoint); got != DefaultEndpoint {
		t.Fatalf("expected default endpoint %q, got %q", DefaultEndpoint, got)
	}
	if got := GetString(KeySecurityMode); got != "None" {
		t.Fatalf("expected security mode None, got %q", got)
	}
	if got := GetDuration(KeyPublishingInterval); got != DefaultPublishingInterval {
		t.Fatalf("expected publishing interval %s, got %s", DefaultPublishingInterval, got)
	}
	if got := GetInt(KeyQueueSize); got != DefaultQueueSize {
		t.Fatalf("expected queue size %d, got %d", DefaultQueueSize, got)
	}
	if !GetBool(KeySnapshotWatch) {
		t.Fatal("expected snapshot watch enabled by default")
	}
	if GetBool(KeyDebug) {
		t.Fatal("expected debug disabled by default")
	}
	if got := GetString(KeyOutputFormat); got != DefaultOutputFormat {
		t.Fatalf("expected output format %q, got %q", DefaultOutputFormat, got)
	}
}

func TestProjectConfigOverridesUserConfig(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userPath := filepath.Join(tmp, "user", "config.yaml")
	writeFile(t, userPath, "endpoint: opc.tcp://user:4840\nmonitor:\n  queue-size: 5\n")

	project := filepath.Join(tmp, "project")
	nested := filepath.Join(project, "plant", "line1")
	mustMkdir(t, nested)
	writeFile(t, filepath.Join(project, configDirName, configFileName), "endpoint: opc.tcp://project:4840\n")

	if err := Initialize(WithWorkingDir(nested), WithUserConfig(userPath)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := GetString(KeyEndpoint); got != "opc.tcp://project:4840" {
		t.Fatalf("expected project endpoint, got %q", got)
	}
	if got := GetInt(KeyQueueSize); got != 5 {
		t.Fatalf("expected user queue size 5 to survive, got %d", got)
	}
}

func TestEnvironmentAndOverridesPrecedence(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectPath := filepath.Join(tmp, configDirName, configFileName)
	writeFile(t, projectPath, "security:\n  mode: Sign\nattributes:\n  debounce: 250ms\n")

	t.Setenv("UAC_SECURITY_MODE", "SignAndEncrypt")
	t.Setenv("UAC_MONITOR_SAMPLING_INTERVAL", "2s")

	if err := Initialize(WithWorkingDir(tmp), WithProjectConfig(projectPath), WithUserConfig(filepath.Join(tmp, "none.yaml"))); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := GetString(KeySecurityMode); got != "SignAndEncrypt" {
		t.Fatalf("expected env to beat project file, got %q", got)
	}
	if got := GetDuration(KeySamplingInterval); got != 2*time.Second {
		t.Fatalf("expected env sampling interval 2s, got %s", got)
	}
	if got := GetDuration(KeyAttributesDebounce); got != 250*time.Millisecond {
		t.Fatalf("expected project debounce 250ms, got %s", got)
	}

	if err := ApplyOverrides(map[string]any{KeySecurityMode: "None", KeyMonitorNode: "ns=2;s=Pump"}); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	if got := GetString(KeySecurityMode); got != "None" {
		t.Fatalf("expected override to win, got %q", got)
	}
	if got := GetString(KeyMonitorNode); got != "ns=2;s=Pump" {
		t.Fatalf("expected override node, got %q", got)
	}
}

func TestEmptyConfigFileIgnored(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userPath := filepath.Join(tmp, "user.yaml")
	writeFile(t, userPath, "   \n")

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userPath)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := GetString(KeyEndpoint); got != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", got)
	}
}

func TestInvalidConfigFileReportsError(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userPath := filepath.Join(tmp, "user.yaml")
	writeFile(t, userPath, "endpoint: [unterminated\n")

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userPath)); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := Load(); !appErrors.IsCode(err, appErrors.CodeConfigurationError) {
		t.Fatalf("expected configuration error from Load, got %v", err)
	}
}

func TestLoadValidatesSettings(t *testing.T) {
	cleanup := ResetForTesting(t)
	t.Cleanup(cleanup)

	s, err := Load()
	if err != nil {
		t.Fatalf("Load with defaults: %v", err)
	}
	if s.Endpoint != DefaultEndpoint || s.BrowseTimeout != DefaultBrowseTimeout || s.LogMaxLines != DefaultLogMaxLines {
		t.Fatalf("unexpected defaults: %+v", s)
	}

	if err := ApplyOverrides(map[string]any{KeySecurityMode: "SIGN"}); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	s, err = Load()
	if err != nil {
		t.Fatalf("Load with upper case mode: %v", err)
	}
	if s.SecurityMode != "Sign" {
		t.Fatalf("security mode = %q, want Sign", s.SecurityMode)
	}

	if err := ApplyOverrides(map[string]any{KeySecurityMode: "Bogus"}); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	if _, err := Load(); !appErrors.IsCode(err, appErrors.CodeConfigurationError) {
		t.Fatalf("expected invalid security mode to be rejected, got %v", err)
	}
}

func TestSettingsValidate(t *testing.T) {
	valid := Settings{
		Endpoint:       DefaultEndpoint,
		SecurityMode:   "None",
		SecurityPolicy: "None",
		QueueSize:      1,
		LogMaxLines:    1,
	}
	cases := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"valid", func(*Settings) {}, false},
		{"snapshotOnly", func(s *Settings) { s.Endpoint = ""; s.SnapshotPath = "plant.db" }, false},
		{"noSource", func(s *Settings) { s.Endpoint = "" }, true},
		{"badMode", func(s *Settings) { s.SecurityMode = "Encrypt" }, true},
		{"emptyPolicy", func(s *Settings) { s.SecurityPolicy = "" }, true},
		{"zeroQueue", func(s *Settings) { s.QueueSize = 0 }, true},
		{"zeroLogLines", func(s *Settings) { s.LogMaxLines = 0 }, true},
		{"plainOutput", func(s *Settings) { s.OutputFormat = "plain" }, false},
		{"badOutput", func(s *Settings) { s.OutputFormat = "sepia" }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := valid
			tc.mutate(&s)
			err := s.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
