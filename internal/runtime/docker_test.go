package runtime

import (
	"net/netip"
	"testing"

	"github.com/docker/docker/api/types/events"
	dockernetwork "github.com/docker/docker/api/types/network"
)

func TestTrimLeadingSlash(t *testing.T) {
	if got := trimLeadingSlash("/webapp"); got != "webapp" {
		t.Errorf("got %q, want webapp", got)
	}
	if got := trimLeadingSlash("webapp"); got != "webapp" {
		t.Errorf("got %q, want webapp (no-op without leading slash)", got)
	}
}

func TestToAttachment_ParsesIPv4AndGateway(t *testing.T) {
	ep := &dockernetwork.EndpointSettings{
		IPAddress:   "10.0.0.5",
		IPPrefixLen: 24,
		Gateway:     "10.0.0.1",
	}
	a := toAttachment("app", ep)
	if a.Address != netip.MustParseAddr("10.0.0.5") {
		t.Errorf("Address = %s, want 10.0.0.5", a.Address)
	}
	if a.CIDR.String() != "10.0.0.5/24" {
		t.Errorf("CIDR = %s, want 10.0.0.5/24", a.CIDR)
	}
	if !a.HasGateway() || a.Gateway != netip.MustParseAddr("10.0.0.1") {
		t.Errorf("Gateway = %s, want 10.0.0.1", a.Gateway)
	}
}

func TestToAttachment_NoAddressNoGateway(t *testing.T) {
	a := toAttachment("app", &dockernetwork.EndpointSettings{})
	if a.Address.IsValid() {
		t.Errorf("Address = %s, want invalid/zero", a.Address)
	}
	if a.HasGateway() {
		t.Error("HasGateway() = true, want false")
	}
}

func TestToEventKind_MapsKnownActions(t *testing.T) {
	cases := map[string]bool{
		"start":   true,
		"die":     true,
		"destroy": true,
		"pause":   false,
	}
	for action, want := range cases {
		_, ok := toEventKind(events.Action(action))
		if ok != want {
			t.Errorf("toEventKind(%q) ok = %v, want %v", action, ok, want)
		}
	}
}
