package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WarpNamePattern != defaultWarpNamePattern {
		t.Errorf("got %q, want default", cfg.WarpNamePattern)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatal(err)
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warpd.yaml")
	content := "warp_name_pattern: \"*edge*\"\ntarget_label: app.warp\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WarpNamePattern != "*edge*" {
		t.Errorf("got %q, want *edge*", cfg.WarpNamePattern)
	}
	if cfg.TargetLabel != "app.warp" {
		t.Errorf("got %q, want app.warp", cfg.TargetLabel)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("got %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_RejectsRuleWithProtocol(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warpd.yaml")
	content := "rules:\n  - destination: 10.0.0.0/8\n    protocol: tcp\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("want error for rule with protocol field, got nil")
	}
}

func TestLoad_RejectsRuleWithPortRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warpd.yaml")
	content := "rules:\n  - destination: 10.0.0.0/8\n    port_range: 80-443\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("want error for rule with port_range field, got nil")
	}
}

func TestLoad_AcceptsPlainDestinationRule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warpd.yaml")
	content := "rules:\n  - destination: 10.0.0.0/8\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(cfg.Rules))
	}
}

func TestLoad_RejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warpd.yaml")
	if err := os.WriteFile(path, []byte("log_level: verbose\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want error for invalid log level, got nil")
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("WARPD_WARP_NAME_PATTERN", "*fromenv*")
	cfg := EnvOverlay(Defaults())
	if cfg.WarpNamePattern != "*fromenv*" {
		t.Errorf("got %q, want *fromenv*", cfg.WarpNamePattern)
	}
}

func TestValidate_RejectsEmptyWarpNamePattern(t *testing.T) {
	cfg := Defaults()
	cfg.WarpNamePattern = "  "
	if err := Validate(cfg); err == nil {
		t.Fatal("want error for empty warp name pattern, got nil")
	}
}
