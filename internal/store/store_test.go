package store

import (
	"net/netip"
	"testing"

	"warpd"
)

func TestStore_UpsertAndRead(t *testing.T) {
	s := New()
	c := warpd.Container{ID: "c1", Name: "app"}
	role := warpd.RoleTarget{WarpSelector: "edge-warp"}

	s.Apply(func(tx *Tx) { tx.UpsertContainer(c, role) })

	got, ok := s.Container("c1")
	if !ok || got.Name != "app" {
		t.Fatalf("got %#v, %v", got, ok)
	}
	gotRole, ok := s.Role("c1")
	if !ok {
		t.Fatal("role not found")
	}
	if tg, ok := warpd.IsTarget(gotRole); !ok || tg.WarpSelector != "edge-warp" {
		t.Fatalf("got role %#v", gotRole)
	}
}

func TestStore_WarpByNameIndex(t *testing.T) {
	s := New()
	warp := warpd.Container{ID: "w1", Name: "edge-warp"}
	s.Apply(func(tx *Tx) { tx.UpsertContainer(warp, warpd.RoleWarp{}) })

	id, ok := s.WarpIDByName("edge-warp")
	if !ok || id != "w1" {
		t.Fatalf("got %q, %v", id, ok)
	}
}

func TestStore_WarpByNameIndexClearedOnRemoveContainer(t *testing.T) {
	s := New()
	warp := warpd.Container{ID: "w1", Name: "edge-warp"}
	s.Apply(func(tx *Tx) { tx.UpsertContainer(warp, warpd.RoleWarp{}) })
	s.Apply(func(tx *Tx) { tx.RemoveContainer("w1") })

	if _, ok := s.WarpIDByName("edge-warp"); ok {
		t.Fatal("expected warp-by-name index to be cleared")
	}
}

func TestStore_WarpByNameIndexClearedOnRoleChange(t *testing.T) {
	s := New()
	warp := warpd.Container{ID: "w1", Name: "edge-warp"}
	s.Apply(func(tx *Tx) { tx.UpsertContainer(warp, warpd.RoleWarp{}) })
	s.Apply(func(tx *Tx) { tx.UpsertContainer(warp, warpd.RoleIgnored{}) })

	if _, ok := s.WarpIDByName("edge-warp"); ok {
		t.Fatal("expected warp-by-name index to be cleared when role changes away from warp")
	}
}

func TestStore_TargetsForWarpName(t *testing.T) {
	s := New()
	s.Apply(func(tx *Tx) {
		tx.UpsertContainer(warpd.Container{ID: "t1"}, warpd.RoleTarget{WarpSelector: "edge-warp"})
		tx.UpsertContainer(warpd.Container{ID: "t2"}, warpd.RoleTarget{WarpSelector: "other-warp"})
	})

	ids := s.TargetsForWarpName("edge-warp")
	if len(ids) != 1 || ids[0] != "t1" {
		t.Fatalf("got %v, want [t1]", ids)
	}
}

func TestStore_SetInstalledAndInstalled(t *testing.T) {
	s := New()
	rec := warpd.InstalledRouteRecord{
		TargetID: "t1",
		Spec: warpd.RouteSpec{
			Destination: netip.MustParsePrefix("10.0.0.0/8"),
			NextHop:     netip.MustParseAddr("10.0.0.1"),
		},
		WarpID: "w1",
	}
	s.Apply(func(tx *Tx) { tx.SetInstalled("t1", []warpd.InstalledRouteRecord{rec}) })

	got := s.Installed("t1")
	if len(got) != 1 || got[0].WarpID != "w1" {
		t.Fatalf("got %#v", got)
	}

	s.Apply(func(tx *Tx) { tx.SetInstalled("t1", nil) })
	if got := s.Installed("t1"); len(got) != 0 {
		t.Fatalf("got %#v, want empty after clearing", got)
	}
}

func TestStore_AllTargetIDs(t *testing.T) {
	s := New()
	s.Apply(func(tx *Tx) {
		tx.UpsertContainer(warpd.Container{ID: "t1"}, warpd.RoleTarget{WarpSelector: "w"})
		tx.UpsertContainer(warpd.Container{ID: "w1"}, warpd.RoleWarp{})
	})
	ids := s.AllTargetIDs()
	if len(ids) != 1 || ids[0] != "t1" {
		t.Fatalf("got %v, want [t1]", ids)
	}
}

func TestStore_RemoveContainerDropsInstalledRoutes(t *testing.T) {
	s := New()
	s.Apply(func(tx *Tx) {
		tx.UpsertContainer(warpd.Container{ID: "t1"}, warpd.RoleTarget{WarpSelector: "w"})
		tx.SetInstalled("t1", []warpd.InstalledRouteRecord{{TargetID: "t1"}})
	})
	s.Apply(func(tx *Tx) { tx.RemoveContainer("t1") })

	if got := s.Installed("t1"); len(got) != 0 {
		t.Fatalf("got %#v, want empty after RemoveContainer", got)
	}
}
