// Package classify assigns a warpd.Role to a container from its metadata.
// Classification is pure and side-effect-free: identical metadata always
// yields identical output.
package classify

import (
	"fmt"
	"path/filepath"
	"strings"

	"warpd"
)

// Config carries the label/pattern names the Classifier reads. It is the
// slice of internal/config.AppConfig the Classifier needs, kept separate
// so classify has no dependency on the config package.
type Config struct {
	// WarpNamePattern is a glob (filepath.Match syntax) matched against a
	// container's name to decide the Warp role.
	WarpNamePattern string
	// TargetLabel is the label key whose value, when non-empty, selects a
	// warp container by name for the Target role.
	TargetLabel string
	// NetworkPreferenceLabel is the label key naming the warp's preferred
	// network for multi-network disambiguation.
	NetworkPreferenceLabel string
}

// MalformedLabelError reports a recognized label carrying a structurally
// invalid value, e.g. present-but-empty-after-trim.
type MalformedLabelError struct {
	ContainerID string
	Label       string
	Value       string
}

func (e *MalformedLabelError) Error() string {
	return fmt.Sprintf("container %s: label %q has malformed value %q", e.ContainerID, e.Label, e.Value)
}

// Classifier is a pure function from warpd.Container to warpd.Role,
// parameterized by Config.
type Classifier struct {
	cfg Config
}

func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify returns the Role for c. Decision order: warp name pattern,
// then target label, then Ignored. On a malformed recognized label the
// container is classified Ignored and a *MalformedLabelError is returned
// alongside it — callers should log it as a warning, not treat it as fatal.
func (c *Classifier) Classify(container warpd.Container) (warpd.Role, error) {
	if c.cfg.WarpNamePattern != "" {
		matched, err := matchGlob(c.cfg.WarpNamePattern, container.Name)
		if err != nil {
			return warpd.RoleIgnored{}, fmt.Errorf("match warp name pattern %q: %w", c.cfg.WarpNamePattern, err)
		}
		if matched {
			pref := container.Labels[c.cfg.NetworkPreferenceLabel]
			if c.cfg.NetworkPreferenceLabel != "" {
				// A present-but-blank value is stricter than "optional
				// preference" — it's indistinguishable from an operator
				// setting the label and forgetting the value, so it's
				// rejected rather than silently treated as absent.
				if raw, ok := container.Labels[c.cfg.NetworkPreferenceLabel]; ok && strings.TrimSpace(raw) == "" {
					return warpd.RoleIgnored{}, &MalformedLabelError{
						ContainerID: container.ID,
						Label:       c.cfg.NetworkPreferenceLabel,
						Value:       raw,
					}
				}
			}
			return warpd.RoleWarp{PreferredNetwork: strings.TrimSpace(pref)}, nil
		}
	}

	if c.cfg.TargetLabel != "" {
		if raw, ok := container.Labels[c.cfg.TargetLabel]; ok {
			v := strings.TrimSpace(raw)
			if v == "" {
				return warpd.RoleIgnored{}, &MalformedLabelError{
					ContainerID: container.ID,
					Label:       c.cfg.TargetLabel,
					Value:       raw,
				}
			}
			return warpd.RoleTarget{WarpSelector: v}, nil
		}
	}

	return warpd.RoleIgnored{}, nil
}

// matchGlob extends filepath.Match with a "**" segment that matches any
// number of path-like components, since container names are frequently
// composed like "stack-warp-egress" and operators expect Compose-style
// globs rather than a single-segment match. A pattern without "**" goes
// to filepath.Match. A pattern with "**" is split on it and the pieces are
// matched as literal text, in order: the first piece must start name and
// the last must end it. Inside such a pattern "*", "?" and "[...]" are
// plain characters.
func matchGlob(pattern, name string) (bool, error) {
	if !strings.Contains(pattern, "**") {
		return filepath.Match(pattern, name)
	}
	parts := strings.Split(pattern, "**")
	idx := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		pos := strings.Index(name[idx:], part)
		if i == 0 && pos != 0 {
			return false, nil
		}
		if pos < 0 {
			return false, nil
		}
		idx += pos + len(part)
	}
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(name, last) {
		return false, nil
	}
	return true, nil
}
