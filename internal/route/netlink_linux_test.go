//go:build linux

package route

import (
	"net/netip"
	"testing"
)

func TestPrefixToIPNetRoundTrip_V4(t *testing.T) {
	p := netip.MustParsePrefix("10.5.0.0/16")
	n := prefixToIPNet(p)
	got := ipNetToPrefix(*n)
	if got != p {
		t.Fatalf("got %s, want %s", got, p)
	}
}

func TestPrefixToIPNetRoundTrip_V6(t *testing.T) {
	p := netip.MustParsePrefix("2001:db8::/32")
	n := prefixToIPNet(p)
	got := ipNetToPrefix(*n)
	if got != p {
		t.Fatalf("got %s, want %s", got, p)
	}
}

func TestToNetlinkRouteRoundTrip(t *testing.T) {
	s := spec("10.5.0.0/16", "10.5.0.1")
	nr := toNetlinkRoute(s)
	back := fromNetlinkRoute(nr)
	if back.Destination != s.Destination {
		t.Errorf("destination = %s, want %s", back.Destination, s.Destination)
	}
	if back.NextHop != s.NextHop {
		t.Errorf("next hop = %s, want %s", back.NextHop, s.NextHop)
	}
}

func TestSameNextHop_IdenticalGatewaysMatch(t *testing.T) {
	a := toNetlinkRoute(spec("10.0.0.0/8", "10.0.0.1"))
	b := toNetlinkRoute(spec("10.0.0.0/8", "10.0.0.1"))
	if !sameNextHop(a, b) {
		t.Fatal("identical gateways should compare equal")
	}
}

func TestSameNextHop_DifferentGatewaysDiffer(t *testing.T) {
	a := toNetlinkRoute(spec("10.0.0.0/8", "10.0.0.1"))
	b := toNetlinkRoute(spec("10.0.0.0/8", "10.0.0.2"))
	if sameNextHop(a, b) {
		t.Fatal("different gateways should not compare equal")
	}
}
