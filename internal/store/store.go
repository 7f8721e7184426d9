// Package store holds the Reconciler's single-writer, multi-reader index
// of known containers, their Role, and currently installed routes.
// Mutations go through Apply; reads see a consistent snapshot taken under
// the same lock, never a half-applied update.
package store

import (
	"sync"

	"warpd"
)

// Store is the in-memory state index of known containers, their roles,
// and their currently installed routes.
type Store struct {
	mu sync.RWMutex

	containers map[string]warpd.Container
	roles      map[string]warpd.Role
	installed  map[string]map[warpd.RecordKey]warpd.InstalledRouteRecord // targetID -> key -> record
	warpByName map[string]string                                        // warp name -> container id
}

func New() *Store {
	return &Store{
		containers: make(map[string]warpd.Container),
		roles:      make(map[string]warpd.Role),
		installed:  make(map[string]map[warpd.RecordKey]warpd.InstalledRouteRecord),
		warpByName: make(map[string]string),
	}
}

// Tx is the writer-side view passed to Apply. It is only valid for the
// duration of the Apply call.
type Tx struct {
	s *Store
}

// Apply runs fn under the writer lock. fn must not call back into Store
// methods that also acquire the lock.
func (s *Store) Apply(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Tx{s: s})
}

// UpsertContainer records c and its classified role, updating the
// secondary warp-by-name index when role is a RoleWarp.
func (tx *Tx) UpsertContainer(c warpd.Container, role warpd.Role) {
	if old, existed := tx.s.roles[c.ID]; existed {
		if _, ok := warpd.IsWarp(old); ok {
			delete(tx.s.warpByName, tx.s.containers[c.ID].Name)
		}
	}
	tx.s.containers[c.ID] = c
	tx.s.roles[c.ID] = role
	if _, ok := warpd.IsWarp(role); ok {
		tx.s.warpByName[c.Name] = c.ID
	}
}

// RemoveContainer drops c's container/role/warp-index entries and any
// installed route records stored for it. It does not touch kernel routes:
// callers remove those first (see reconcile's removeAllRoutes).
func (tx *Tx) RemoveContainer(id string) {
	if c, ok := tx.s.containers[id]; ok {
		delete(tx.s.warpByName, c.Name)
	}
	delete(tx.s.containers, id)
	delete(tx.s.roles, id)
	delete(tx.s.installed, id)
}

// SetInstalled replaces the full installed-route set for targetID.
func (tx *Tx) SetInstalled(targetID string, records []warpd.InstalledRouteRecord) {
	m := make(map[warpd.RecordKey]warpd.InstalledRouteRecord, len(records))
	for _, r := range records {
		m[r.Key()] = r
	}
	if len(m) == 0 {
		delete(tx.s.installed, targetID)
		return
	}
	tx.s.installed[targetID] = m
}

// --- read-only snapshot accessors ---

func (s *Store) Container(id string) (warpd.Container, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.containers[id]
	return c, ok
}

func (s *Store) Role(id string) (warpd.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	return r, ok
}

func (s *Store) WarpIDByName(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.warpByName[name]
	return id, ok
}

// TargetsForWarpName returns every known RoleTarget container whose
// WarpSelector equals warpName.
func (s *Store) TargetsForWarpName(warpName string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, r := range s.roles {
		if t, ok := warpd.IsTarget(r); ok && t.WarpSelector == warpName {
			ids = append(ids, id)
		}
	}
	return ids
}

// Installed returns a copy of the installed route records for targetID.
func (s *Store) Installed(targetID string) []warpd.InstalledRouteRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.installed[targetID]
	out := make([]warpd.InstalledRouteRecord, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	return out
}

// AllTargetIDs returns every container id currently classified RoleTarget.
func (s *Store) AllTargetIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, r := range s.roles {
		if _, ok := warpd.IsTarget(r); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
