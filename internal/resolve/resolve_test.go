package resolve

import (
	"errors"
	"net/netip"
	"testing"

	"warpd"
)

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestResolve_SingleNetwork(t *testing.T) {
	target := warpd.Container{ID: "t1", Networks: []warpd.NetworkAttachment{
		{Network: "app", Address: mustAddr(t, "10.0.0.5")},
	}}
	warp := warpd.Container{ID: "w1", Networks: []warpd.NetworkAttachment{
		{Network: "app", Address: mustAddr(t, "10.0.0.2")},
	}}
	rules := []warpd.RoutingRule{{Destination: mustPrefix(t, "0.0.0.0/0")}}

	specs, err := Resolve(target, warp, warpd.RoleWarp{}, rules)
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 1 {
		t.Fatalf("got %d specs, want 1", len(specs))
	}
	if specs[0].NextHop != mustAddr(t, "10.0.0.2") {
		t.Errorf("next hop = %s, want 10.0.0.2", specs[0].NextHop)
	}
}

func TestResolve_MultiNetworkWithPreference(t *testing.T) {
	target := warpd.Container{ID: "t1", Networks: []warpd.NetworkAttachment{
		{Network: "egress", Address: mustAddr(t, "10.0.0.5")},
	}}
	warp := warpd.Container{ID: "w1", Networks: []warpd.NetworkAttachment{
		{Network: "internal", Address: mustAddr(t, "10.1.0.2")},
		{Network: "egress", Address: mustAddr(t, "10.0.0.2")},
	}}
	rules := []warpd.RoutingRule{{Destination: mustPrefix(t, "0.0.0.0/0")}}

	specs, err := Resolve(target, warp, warpd.RoleWarp{PreferredNetwork: "egress"}, rules)
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 1 || specs[0].NextHop != mustAddr(t, "10.0.0.2") {
		t.Fatalf("got %#v, want next hop 10.0.0.2", specs)
	}
}

func TestResolve_MultiNetworkAmbiguous(t *testing.T) {
	target := warpd.Container{ID: "t1"}
	warp := warpd.Container{ID: "w1", Networks: []warpd.NetworkAttachment{
		{Network: "internal", Address: mustAddr(t, "10.1.0.2")},
		{Network: "egress", Address: mustAddr(t, "10.0.0.2")},
	}}

	_, err := Resolve(target, warp, warpd.RoleWarp{}, nil)
	var ambiguous *AmbiguousWarpNetworkError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("got err = %v, want *AmbiguousWarpNetworkError", err)
	}
	if len(ambiguous.CandidateNetworks) != 2 {
		t.Errorf("got %d candidates, want 2", len(ambiguous.CandidateNetworks))
	}
}

func TestResolve_SkipsUnreachableFamily(t *testing.T) {
	target := warpd.Container{ID: "t1", Networks: []warpd.NetworkAttachment{
		{Network: "app", Address: mustAddr(t, "10.0.0.5")},
	}}
	warp := warpd.Container{ID: "w1", Networks: []warpd.NetworkAttachment{
		{Network: "app", Address: mustAddr(t, "10.0.0.2")},
	}}
	rules := []warpd.RoutingRule{
		{Destination: mustPrefix(t, "0.0.0.0/0")},
		{Destination: mustPrefix(t, "::/0")},
	}

	specs, err := Resolve(target, warp, warpd.RoleWarp{}, rules)
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 1 {
		t.Fatalf("got %d specs, want 1 (v6 rule should be skipped, no v6 next-hop)", len(specs))
	}
}

func TestResolve_DeduplicatesIdenticalRules(t *testing.T) {
	target := warpd.Container{ID: "t1", Networks: []warpd.NetworkAttachment{
		{Network: "app", Address: mustAddr(t, "10.0.0.5")},
	}}
	warp := warpd.Container{ID: "w1", Networks: []warpd.NetworkAttachment{
		{Network: "app", Address: mustAddr(t, "10.0.0.2")},
	}}
	rules := []warpd.RoutingRule{
		{Destination: mustPrefix(t, "10.5.0.0/16")},
		{Destination: mustPrefix(t, "10.5.0.0/16")},
	}

	specs, err := Resolve(target, warp, warpd.RoleWarp{}, rules)
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 1 {
		t.Fatalf("got %d specs, want 1 deduplicated spec", len(specs))
	}
}
