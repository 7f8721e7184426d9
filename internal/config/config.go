// Package config loads warpd's AppConfig: warp name pattern, label names,
// routing rules, and log level. Precedence is CLI flags over environment
// variables over the config file over built-in defaults.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"warpd"

	"gopkg.in/yaml.v3"
)

const (
	defaultWarpNamePattern  = "*warp*"
	defaultTargetLabel      = "warpd.target"
	defaultNetworkPrefLabel = "warpd.network"
	defaultLogLevel         = "info"
)

// RuleSpec is the on-disk/flag representation of a warpd.RoutingRule.
type RuleSpec struct {
	Destination string `yaml:"destination"`
	Protocol    string `yaml:"protocol,omitempty"`
	PortRange   string `yaml:"port_range,omitempty"`
}

// File is the shape of the YAML config file.
type File struct {
	WarpNamePattern        string     `yaml:"warp_name_pattern,omitempty"`
	TargetLabel            string     `yaml:"target_label,omitempty"`
	NetworkPreferenceLabel string     `yaml:"network_preference_label,omitempty"`
	Rules                  []RuleSpec `yaml:"rules,omitempty"`
	LogLevel               string     `yaml:"log_level,omitempty"`
}

// AppConfig is the immutable, merged configuration the core consumes —
// the Configuration collaborator.
type AppConfig struct {
	WarpNamePattern        string
	TargetLabel            string
	NetworkPreferenceLabel string
	Rules                  []warpd.RoutingRule
	LogLevel               string
}

// Defaults returns the built-in baseline, the lowest-precedence layer.
func Defaults() AppConfig {
	return AppConfig{
		WarpNamePattern:        defaultWarpNamePattern,
		TargetLabel:            defaultTargetLabel,
		NetworkPreferenceLabel: defaultNetworkPrefLabel,
		LogLevel:               defaultLogLevel,
	}
}

// LoadFile reads a YAML config file. A missing file is not an error —
// Load falls back to Defaults.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("read config %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return f, nil
}

// Overlay applies a File's non-empty fields on top of base.
func (f File) Overlay(base AppConfig) (AppConfig, error) {
	out := base
	if f.WarpNamePattern != "" {
		out.WarpNamePattern = f.WarpNamePattern
	}
	if f.TargetLabel != "" {
		out.TargetLabel = f.TargetLabel
	}
	if f.NetworkPreferenceLabel != "" {
		out.NetworkPreferenceLabel = f.NetworkPreferenceLabel
	}
	if f.LogLevel != "" {
		out.LogLevel = f.LogLevel
	}
	if len(f.Rules) > 0 {
		rules, err := parseRules(f.Rules)
		if err != nil {
			return AppConfig{}, err
		}
		out.Rules = rules
	}
	return out, nil
}

// EnvOverlay applies WARPD_-prefixed environment variables on top of cfg.
func EnvOverlay(cfg AppConfig) AppConfig {
	if v := os.Getenv("WARPD_WARP_NAME_PATTERN"); v != "" {
		cfg.WarpNamePattern = v
	}
	if v := os.Getenv("WARPD_TARGET_LABEL"); v != "" {
		cfg.TargetLabel = v
	}
	if v := os.Getenv("WARPD_NETWORK_PREFERENCE_LABEL"); v != "" {
		cfg.NetworkPreferenceLabel = v
	}
	if v := os.Getenv("WARPD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

func parseRules(specs []RuleSpec) ([]warpd.RoutingRule, error) {
	rules := make([]warpd.RoutingRule, 0, len(specs))
	for _, s := range specs {
		pfx, err := netip.ParsePrefix(strings.TrimSpace(s.Destination))
		if err != nil {
			return nil, fmt.Errorf("parse rule destination %q: %w", s.Destination, err)
		}
		rules = append(rules, warpd.RoutingRule{
			Destination: pfx,
			Protocol:    strings.TrimSpace(s.Protocol),
			PortRange:   strings.TrimSpace(s.PortRange),
		})
	}
	return rules, nil
}

// ValidationError wraps a configuration failure so cmd/warpd can map it
// to a distinct "invalid configuration" process exit code.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Validate rejects any configuration this daemon requires to be fatal at
// load time. In particular, RoutingRules carrying Protocol or PortRange
// are rejected outright: the kernel route this daemon installs is
// address-only and cannot honor either field.
func Validate(cfg AppConfig) error {
	if strings.TrimSpace(cfg.WarpNamePattern) == "" {
		return fmt.Errorf("warp_name_pattern must not be empty")
	}
	if strings.TrimSpace(cfg.TargetLabel) == "" {
		return fmt.Errorf("target_label must not be empty")
	}
	for _, r := range cfg.Rules {
		if r.Protocol != "" || r.PortRange != "" {
			return fmt.Errorf("rule %s: protocol/port_range are reserved fields; plain destination routes cannot honor them — remove them or build the policy-routing path", r.Destination)
		}
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	return nil
}

// Load builds the merged AppConfig: defaults, then the file at path (if
// present), then environment variables. CLI flags are applied by the
// caller afterward via the cobra command's own flag bindings, the final
// and highest-precedence layer.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()
	if path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return AppConfig{}, err
		}
		cfg, err = f.Overlay(cfg)
		if err != nil {
			return AppConfig{}, err
		}
	}
	cfg = EnvOverlay(cfg)
	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
