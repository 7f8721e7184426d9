// Package resolve computes the desired RouteSpec set for a (target, warp)
// pair against configured RoutingRules. Resolve is pure: it never touches
// the kernel or the runtime, and two calls with the same inputs always
// produce the same output.
package resolve

import (
	"fmt"
	"log/slog"

	"warpd"
)

// AmbiguousWarpNetworkError is returned when the warp has more than one
// network attachment and no usable preference singles one out. The
// Resolver requires one to be chosen rather than guessing, since picking
// the wrong attachment would black-hole the target's traffic silently.
type AmbiguousWarpNetworkError struct {
	WarpID            string
	CandidateNetworks []string
}

func (e *AmbiguousWarpNetworkError) Error() string {
	return fmt.Sprintf("warp %s has %d network attachments and no usable preference: %v",
		e.WarpID, len(e.CandidateNetworks), e.CandidateNetworks)
}

// Resolve computes the ordered, deduplicated RouteSpec set that should be
// installed in target's namespace given warp as its next-hop and rules as
// the configured destinations. warpRole must be the Role previously
// returned by the Classifier for warp.
func Resolve(target, warp warpd.Container, warpRole warpd.RoleWarp, rules []warpd.RoutingRule) ([]warpd.RouteSpec, error) {
	attachment, err := chooseWarpAttachment(warp, warpRole)
	if err != nil {
		return nil, err
	}

	nextHop := attachment.Address
	nextHopIs6 := nextHop.Is6()

	targetHasFamily := len(target.AddressesInFamily(nextHopIs6)) > 0

	seen := make(map[warpd.RouteKey]struct{}, len(rules))
	var specs []warpd.RouteSpec
	for _, rule := range rules {
		if rule.Destination.Addr().Is6() != nextHopIs6 {
			slog.Warn("skipping rule: family has no viable next-hop",
				"destination", rule.Destination, "warp", warp.ID)
			continue
		}
		if !targetHasFamily {
			slog.Warn("skipping rule: target has no address in next-hop family",
				"destination", rule.Destination, "target", target.ID)
			continue
		}

		spec := warpd.RouteSpec{Destination: rule.Destination, NextHop: nextHop}
		key := spec.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		specs = append(specs, spec)
	}

	return specs, nil
}

// chooseWarpAttachment implements steps 1-4 of the Resolver algorithm: a
// single attachment is unambiguous; otherwise an explicit preference must
// name an existing attachment; otherwise resolution fails rather than guessing.
func chooseWarpAttachment(warp warpd.Container, role warpd.RoleWarp) (warpd.NetworkAttachment, error) {
	if len(warp.Networks) == 1 {
		return warp.Networks[0], nil
	}

	if role.PreferredNetwork != "" {
		if a, ok := warp.AttachmentByNetwork(role.PreferredNetwork); ok {
			return a, nil
		}
	}

	names := make([]string, len(warp.Networks))
	for i, a := range warp.Networks {
		names[i] = a.Network
	}
	return warpd.NetworkAttachment{}, &AmbiguousWarpNetworkError{WarpID: warp.ID, CandidateNetworks: names}
}
