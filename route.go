package warpd

import (
	"fmt"
	"net/netip"
	"time"
)

// RouteSpec describes one kernel route to be installed inside a target's
// network namespace. Two RouteSpecs are equal iff Destination, NextHop,
// Interface (when either sets it), and family all match; Metric is advisory
// and excluded from equality.
type RouteSpec struct {
	Destination netip.Prefix
	NextHop     netip.Addr
	Interface   string // resolved at program-time inside the target namespace; empty if unset
	Metric      int    // 0 means "unset"
}

// Family reports whether this spec's destination is IPv4 or IPv6.
func (r RouteSpec) Family() int {
	if r.Destination.Addr().Is6() {
		return FamilyV6
	}
	return FamilyV4
}

const (
	FamilyV4 = 4
	FamilyV6 = 6
)

// Key returns the canonical identity tuple used for diffing and
// deduplication: family, destination, and next-hop. Interface is
// intentionally excluded from equality here per RouteSpec's doc comment —
// it participates in Equal but not Key, since two specs that differ only
// by a not-yet-resolved interface are the same logical route.
type RouteKey struct {
	Family      int
	Destination netip.Prefix
	NextHop     netip.Addr
}

func (r RouteSpec) Key() RouteKey {
	return RouteKey{Family: r.Family(), Destination: r.Destination, NextHop: r.NextHop}
}

// Equal reports whether r and o describe the identical route, honoring
// Interface when either side sets it.
func (r RouteSpec) Equal(o RouteSpec) bool {
	if r.Key() != o.Key() {
		return false
	}
	if r.Interface != "" || o.Interface != "" {
		return r.Interface == o.Interface
	}
	return true
}

func (r RouteSpec) String() string {
	if r.Interface != "" {
		return fmt.Sprintf("%s via %s dev %s", r.Destination, r.NextHop, r.Interface)
	}
	return fmt.Sprintf("%s via %s", r.Destination, r.NextHop)
}

// routeSpecYAML is RouteSpec's on-disk shape: netip.Prefix/netip.Addr
// marshal as empty maps under yaml.v3 (their fields are unexported), so
// MarshalYAML/UnmarshalYAML route through string forms instead.
type routeSpecYAML struct {
	Destination string `yaml:"destination"`
	NextHop     string `yaml:"next_hop"`
	Interface   string `yaml:"interface,omitempty"`
	Metric      int    `yaml:"metric,omitempty"`
}

func (r RouteSpec) MarshalYAML() (interface{}, error) {
	return routeSpecYAML{
		Destination: r.Destination.String(),
		NextHop:     r.NextHop.String(),
		Interface:   r.Interface,
		Metric:      r.Metric,
	}, nil
}

func (r *RouteSpec) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var y routeSpecYAML
	if err := unmarshal(&y); err != nil {
		return err
	}
	dst, err := netip.ParsePrefix(y.Destination)
	if err != nil {
		return fmt.Errorf("route spec destination %q: %w", y.Destination, err)
	}
	nh, err := netip.ParseAddr(y.NextHop)
	if err != nil {
		return fmt.Errorf("route spec next_hop %q: %w", y.NextHop, err)
	}
	*r = RouteSpec{Destination: dst, NextHop: nh, Interface: y.Interface, Metric: y.Metric}
	return nil
}

// RoutingRule is a configured, destination-only forwarding policy. Protocol
// and PortRange are reserved fields: the kernel route this daemon installs
// is address-only, so a rule carrying either is rejected at config load
// (see internal/config) rather than silently ignored.
type RoutingRule struct {
	Destination netip.Prefix
	Protocol    string // reserved; non-empty is a config-load error
	PortRange   string // reserved; non-empty is a config-load error
}

type routingRuleYAML struct {
	Destination string `yaml:"destination"`
	Protocol    string `yaml:"protocol,omitempty"`
	PortRange   string `yaml:"port_range,omitempty"`
}

func (r RoutingRule) MarshalYAML() (interface{}, error) {
	return routingRuleYAML{Destination: r.Destination.String(), Protocol: r.Protocol, PortRange: r.PortRange}, nil
}

// InstalledRouteRecord is the Store's record of a route currently believed
// to exist in a target's namespace.
type InstalledRouteRecord struct {
	TargetID       string
	Spec           RouteSpec
	WarpID         string
	WarpAttachment string
	InstalledAt    time.Time
}

// Key identifies the (target, destination, family) slot this record
// occupies — at most one InstalledRouteRecord may exist per slot.
type RecordKey struct {
	TargetID    string
	Destination netip.Prefix
	Family      int
}

func (r InstalledRouteRecord) Key() RecordKey {
	return RecordKey{TargetID: r.TargetID, Destination: r.Spec.Destination, Family: r.Spec.Family()}
}

// installedRouteRecordYAML mirrors routeSpecYAML's rationale: RouteSpec's
// embedded netip types need the same string-form detour.
type installedRouteRecordYAML struct {
	TargetID       string        `yaml:"target_id"`
	Spec           routeSpecYAML `yaml:"spec"`
	WarpID         string        `yaml:"warp_id"`
	WarpAttachment string        `yaml:"warp_attachment"`
	InstalledAt    time.Time     `yaml:"installed_at"`
}

func (r InstalledRouteRecord) MarshalYAML() (interface{}, error) {
	specY, err := r.Spec.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return installedRouteRecordYAML{
		TargetID:       r.TargetID,
		Spec:           specY.(routeSpecYAML),
		WarpID:         r.WarpID,
		WarpAttachment: r.WarpAttachment,
		InstalledAt:    r.InstalledAt,
	}, nil
}

func (r *InstalledRouteRecord) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var y installedRouteRecordYAML
	if err := unmarshal(&y); err != nil {
		return err
	}
	var spec RouteSpec
	if err := (&spec).UnmarshalYAML(func(v interface{}) error {
		*(v.(*routeSpecYAML)) = y.Spec
		return nil
	}); err != nil {
		return err
	}
	*r = InstalledRouteRecord{
		TargetID:       y.TargetID,
		Spec:           spec,
		WarpID:         y.WarpID,
		WarpAttachment: y.WarpAttachment,
		InstalledAt:    y.InstalledAt,
	}
	return nil
}
