package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AdbPath != "adb" || cfg.DevconPath != "devcon" {
		t.Errorf("tool paths = (%q, %q), want (adb, devcon)", cfg.AdbPath, cfg.DevconPath)
	}
	if cfg.PhaseTimeout != 30*time.Second {
		t.Errorf("PhaseTimeout = %s, want 30s", cfg.PhaseTimeout)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %s, want 2s", cfg.PollInterval)
	}
	if cfg.Serial != "" || cfg.DryRun {
		t.Errorf("Serial/DryRun defaults = (%q, %v), want empty/false", cfg.Serial, cfg.DryRun)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(envAdbPath, "/opt/platform-tools/adb")
	t.Setenv(envSerial, "R5CT12ABCDE")
	t.Setenv(envPhaseTimeout, "45s")
	t.Setenv(envPollInterval, "500ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AdbPath != "/opt/platform-tools/adb" {
		t.Errorf("AdbPath = %q", cfg.AdbPath)
	}
	if cfg.Serial != "R5CT12ABCDE" {
		t.Errorf("Serial = %q", cfg.Serial)
	}
	if cfg.PhaseTimeout != 45*time.Second {
		t.Errorf("PhaseTimeout = %s, want 45s", cfg.PhaseTimeout)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %s, want 500ms", cfg.PollInterval)
	}
}

func TestLoad_BareSecondsTimeout(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(envPhaseTimeout, "15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PhaseTimeout != 15*time.Second {
		t.Errorf("PhaseTimeout = %s, want 15s", cfg.PhaseTimeout)
	}
}

func TestLoad_DotEnvFileLowerPrecedenceThanEnv(t *testing.T) {
	dir := t.TempDir()
	env := envSerial + "=from-dotenv\n" + envDevconPath + "=/tools/devcon.exe\n"
	if err := os.WriteFile(dir+"/.env", []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	t.Setenv(envSerial, "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Serial != "from-env" {
		t.Errorf("Serial = %q, want the real environment to win", cfg.Serial)
	}
	if cfg.DevconPath != "/tools/devcon.exe" {
		t.Errorf("DevconPath = %q, want the .env value", cfg.DevconPath)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad timeout", envPhaseTimeout, "soon"},
		{"negative timeout", envPhaseTimeout, "-5s"},
		{"bad poll interval", envPollInterval, "fast"},
		{"bad health port", envHealthPort, "http"},
		{"webhook without scheme", envWebhookURL, "example.com/hook"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Fatalf("Load() error = nil, want error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestValidate_PortRange(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.MetricsPort = 70000
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("Validate() error = %v, want out-of-range error", err)
	}
}
