//go:build linux

package route

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"warpd"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// NetlinkProgrammer implements Programmer against a netlink.Handle already
// scoped to a target namespace (see internal/netns.Provider). It never
// calls netlink's package-level functions, which act on the calling
// thread's current namespace — every call here goes through h so the
// caller's namespace state is never touched.
type NetlinkProgrammer struct {
	h *netlink.Handle
}

func NewNetlinkProgrammer(h *netlink.Handle) *NetlinkProgrammer {
	return &NetlinkProgrammer{h: h}
}

func (p *NetlinkProgrammer) Install(spec warpd.RouteSpec) (InstallOutcome, *warpd.RouteSpec, error) {
	if spec.Destination.Addr().Is6() != spec.NextHop.Is6() {
		return 0, nil, &FamilyMismatchError{Spec: spec}
	}

	existing, found, err := p.findByDestination(spec)
	if err != nil {
		return 0, nil, err
	}

	want := toNetlinkRoute(spec)
	if link, err := p.resolveLink(spec.Interface); err != nil {
		return 0, nil, err
	} else if link != nil {
		want.LinkIndex = link.Attrs().Index
	}

	if found {
		if sameNextHop(existing, want) {
			return AlreadyPresent, nil, nil
		}

		oldSpec := fromNetlinkRoute(existing)
		if err := p.h.RouteAdd(&want); err != nil {
			if errors.Is(err, unix.EEXIST) {
				// Kernel rejects a duplicate-metric atomic replace; bump
				// the metric by one and retry once before giving up.
				want.Priority++
				if err2 := p.h.RouteAdd(&want); err2 != nil {
					return 0, nil, classifyErr("add route (conflict retry)", err2)
				}
			} else {
				return 0, nil, classifyErr("add route", err)
			}
		}
		if err := p.h.RouteDel(&existing); err != nil {
			slogWarn("remove superseded route", spec.Destination.String(), err)
		}
		return Replaced, &oldSpec, nil
	}

	if err := p.h.RouteAdd(&want); err != nil {
		return 0, nil, classifyErr("add route", err)
	}
	return Added, nil, nil
}

func (p *NetlinkProgrammer) Remove(spec warpd.RouteSpec) (RemoveOutcome, error) {
	existing, found, err := p.findByDestination(spec)
	if err != nil {
		return 0, err
	}
	if !found {
		return NotFound, nil
	}
	if err := p.h.RouteDel(&existing); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return NotFound, nil
		}
		return 0, classifyErr("remove route", err)
	}
	return Removed, nil
}

func (p *NetlinkProgrammer) List() ([]warpd.RouteSpec, error) {
	routes, err := p.h.RouteListFiltered(netlink.FAMILY_ALL, &netlink.Route{Table: unix.RT_TABLE_MAIN}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return nil, classifyErr("list routes", err)
	}
	out := make([]warpd.RouteSpec, 0, len(routes))
	for _, r := range routes {
		if r.Dst == nil || r.Gw == nil {
			continue
		}
		out = append(out, fromNetlinkRoute(r))
	}
	return out, nil
}

// findByDestination returns the route keyed by spec's (destination,
// family) in the main table, regardless of its current next-hop — this is
// the lookup used to detect a conflicting next-hop for the same destination.
func (p *NetlinkProgrammer) findByDestination(spec warpd.RouteSpec) (netlink.Route, bool, error) {
	family := netlink.FAMILY_V4
	if spec.Destination.Addr().Is6() {
		family = netlink.FAMILY_V6
	}
	routes, err := p.h.RouteListFiltered(family, &netlink.Route{Table: unix.RT_TABLE_MAIN}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return netlink.Route{}, false, classifyErr("list routes", err)
	}
	wantDst := prefixToIPNet(spec.Destination)
	for _, r := range routes {
		if r.Dst == nil {
			continue
		}
		if r.Dst.String() == wantDst.String() {
			return r, true, nil
		}
	}
	return netlink.Route{}, false, nil
}

func (p *NetlinkProgrammer) resolveLink(name string) (netlink.Link, error) {
	if name == "" {
		return nil, nil
	}
	link, err := p.h.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("resolve outgoing interface %q: %w", name, err)
	}
	return link, nil
}

func sameNextHop(existing netlink.Route, want netlink.Route) bool {
	if existing.Gw == nil || want.Gw == nil {
		return existing.Gw == nil && want.Gw == nil
	}
	return existing.Gw.Equal(want.Gw) && existing.LinkIndex == want.LinkIndex
}

func toNetlinkRoute(spec warpd.RouteSpec) netlink.Route {
	r := netlink.Route{
		Dst:   prefixToIPNet(spec.Destination),
		Gw:    spec.NextHop.AsSlice(),
		Table: unix.RT_TABLE_MAIN,
	}
	if spec.Metric != 0 {
		r.Priority = spec.Metric
	}
	return r
}

func fromNetlinkRoute(r netlink.Route) warpd.RouteSpec {
	spec := warpd.RouteSpec{Metric: r.Priority}
	if r.Dst != nil {
		spec.Destination = ipNetToPrefix(*r.Dst)
	}
	if r.Gw != nil {
		addr, ok := netipAddrFromIP(r.Gw)
		if ok {
			spec.NextHop = addr.Unmap()
		}
	}
	return spec
}

func classifyErr(op string, err error) error {
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		return &InsufficientPrivilegesError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// slogWarn logs a non-fatal route-programming warning. Deletion of the
// superseded route failing here does not fail Install: the new route is
// already live, so a stale route lingering until the next reconcile is
// preferable to reporting the install itself as failed.
func slogWarn(msg, dest string, err error) {
	slog.Warn(msg, "destination", dest, "err", err)
}

func prefixToIPNet(p netip.Prefix) *net.IPNet {
	bits := 32
	if p.Addr().Is6() {
		bits = 128
	}
	return &net.IPNet{IP: p.Addr().AsSlice(), Mask: net.CIDRMask(p.Bits(), bits)}
}

func ipNetToPrefix(n net.IPNet) netip.Prefix {
	addr, ok := netip.AddrFromSlice(n.IP)
	if !ok {
		return netip.Prefix{}
	}
	ones, _ := n.Mask.Size()
	return netip.PrefixFrom(addr.Unmap(), ones)
}

func netipAddrFromIP(ip net.IP) (netip.Addr, bool) {
	return netip.AddrFromSlice(ip)
}
