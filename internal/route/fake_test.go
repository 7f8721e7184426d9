package route

import (
	"errors"
	"net/netip"
	"testing"

	"warpd"
)

func spec(dest, nextHop string) warpd.RouteSpec {
	return warpd.RouteSpec{
		Destination: netip.MustParsePrefix(dest),
		NextHop:     netip.MustParseAddr(nextHop),
	}
}

func TestFake_InstallThenAlreadyPresent(t *testing.T) {
	f := NewFake()
	outcome, _, err := f.Install(spec("10.0.0.0/8", "10.0.0.1"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Added {
		t.Fatalf("got %v, want Added", outcome)
	}

	outcome, _, err = f.Install(spec("10.0.0.0/8", "10.0.0.1"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != AlreadyPresent {
		t.Fatalf("got %v, want AlreadyPresent", outcome)
	}
}

func TestFake_InstallReplacesConflictingNextHop(t *testing.T) {
	f := NewFake()
	if _, _, err := f.Install(spec("10.0.0.0/8", "10.0.0.1")); err != nil {
		t.Fatal(err)
	}

	outcome, old, err := f.Install(spec("10.0.0.0/8", "10.0.0.2"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Replaced {
		t.Fatalf("got %v, want Replaced", outcome)
	}
	if old == nil || old.NextHop.String() != "10.0.0.1" {
		t.Fatalf("got old = %#v, want next hop 10.0.0.1", old)
	}
}

func TestFake_InstallFamilyMismatch(t *testing.T) {
	f := NewFake()
	_, _, err := f.Install(warpd.RouteSpec{
		Destination: netip.MustParsePrefix("10.0.0.0/8"),
		NextHop:     netip.MustParseAddr("::1"),
	})
	if _, ok := err.(*FamilyMismatchError); !ok {
		t.Fatalf("got %T (%v), want *FamilyMismatchError", err, err)
	}
}

func TestFake_RemoveAbsentIsNotFound(t *testing.T) {
	f := NewFake()
	outcome, err := f.Remove(spec("10.0.0.0/8", "10.0.0.1"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != NotFound {
		t.Fatalf("got %v, want NotFound", outcome)
	}
}

func TestFake_RemoveThenList(t *testing.T) {
	f := NewFake()
	if _, _, err := f.Install(spec("10.0.0.0/8", "10.0.0.1")); err != nil {
		t.Fatal(err)
	}
	outcome, err := f.Remove(spec("10.0.0.0/8", "10.0.0.1"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Removed {
		t.Fatalf("got %v, want Removed", outcome)
	}
	routes, err := f.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 0 {
		t.Fatalf("got %d routes, want 0", len(routes))
	}
}

func TestFake_CallsRecordsSequence(t *testing.T) {
	f := NewFake()
	if _, _, err := f.Install(spec("10.0.0.0/8", "10.0.0.1")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Remove(spec("10.0.0.0/8", "10.0.0.1")); err != nil {
		t.Fatal(err)
	}
	if len(f.Calls) != 2 {
		t.Fatalf("got %d calls, want 2: %v", len(f.Calls), f.Calls)
	}
}

func TestFake_SetInstallErrIsOneShot(t *testing.T) {
	f := NewFake()
	want := errors.New("netlink: no buffer space available")
	f.SetInstallErr(want)

	if _, _, err := f.Install(spec("10.0.0.0/8", "10.0.0.1")); err != want {
		t.Fatalf("got err %v, want %v", err, want)
	}
	if _, _, err := f.Install(spec("10.0.0.0/8", "10.0.0.1")); err != nil {
		t.Fatalf("armed error was not cleared after one use: %v", err)
	}
}

func TestFake_SetRemoveErrIsOneShot(t *testing.T) {
	f := NewFake()
	if _, _, err := f.Install(spec("10.0.0.0/8", "10.0.0.1")); err != nil {
		t.Fatal(err)
	}

	want := errors.New("netlink: operation not permitted")
	f.SetRemoveErr(want)

	if _, err := f.Remove(spec("10.0.0.0/8", "10.0.0.1")); err != want {
		t.Fatalf("got err %v, want %v", err, want)
	}
	outcome, err := f.Remove(spec("10.0.0.0/8", "10.0.0.1"))
	if err != nil {
		t.Fatalf("armed error was not cleared after one use: %v", err)
	}
	if outcome != Removed {
		t.Fatalf("got %v, want Removed once the armed error is cleared", outcome)
	}
}
