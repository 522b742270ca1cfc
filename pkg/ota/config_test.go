package ota

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kaktoslabs/kaktos/pkg/version"
)

func TestLoadConfigAppliesDefaultsAndOverlaysFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kaktos.toml")
	body := "[kaktos]\nversion = \"" + version.Version + "\"\n\n[device]\ndest_dir = \"/var/app\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Device.DestDir != "/var/app" {
		t.Fatalf("expected dest_dir override, got %q", cfg.Device.DestDir)
	}
	if cfg.Device.StateFile != "ota_state.txt" {
		t.Fatalf("expected default state file to survive overlay, got %q", cfg.Device.StateFile)
	}
	if cfg.Fetch.Retries != 2 {
		t.Fatalf("expected default retries to survive overlay, got %d", cfg.Fetch.Retries)
	}
}

func TestLoadConfigCapturesUnknownKeysInExtra(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kaktos.toml")
	body := "[kaktos]\nversion = \"" + version.Version + "\"\n\n[future_feature]\nenabled = true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if _, ok := cfg.Extra["future_feature"]; !ok {
		t.Fatalf("expected future_feature to land in Extra, got %v", cfg.Extra)
	}
}

func TestLoadConfigRejectsIncompatibleVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kaktos.toml")
	body := "[kaktos]\nversion = \"999.0.0\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected an error for an incompatible config version")
	}
}

func TestDefaultConfigPathHonorsEnvOverride(t *testing.T) {
	t.Setenv("KAKTOS_CONFIG", "/etc/kaktos/custom.toml")

	if got := DefaultConfigPath(); got != "/etc/kaktos/custom.toml" {
		t.Fatalf("expected env override, got %q", got)
	}
}

func TestDefaultConfigPathFallsBackWhenUnset(t *testing.T) {
	t.Setenv("KAKTOS_CONFIG", "")

	if got := DefaultConfigPath(); got != "kaktos.toml" {
		t.Fatalf("expected default path, got %q", got)
	}
}
