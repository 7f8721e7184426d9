package route

import (
	"sync"

	"warpd"
)

// Fake is an in-memory Programmer used by tests in place of a netlink
// handle. It is not namespace-scoped: each Fake represents one namespace's
// route table. A mutex guards every field since a Fake handed to a
// reconcile.ProgrammerFactory is read and mutated from the worker
// goroutine runInNamespace spawns while a test goroutine may concurrently
// inspect Calls or arm a failure with SetInstallErr/SetRemoveErr.
type Fake struct {
	mu    sync.Mutex
	byKey map[warpd.RouteKey]warpd.RouteSpec

	// Calls records every Install/Remove invocation in order, for tests
	// that assert on the sequence of kernel mutations (or their absence).
	Calls []string

	// installErr/removeErr, when non-nil, are returned by the next call
	// to Install/Remove instead of mutating byKey, then cleared — one
	// armed failure per SetInstallErr/SetRemoveErr call, the same
	// one-shot-per-arm shape as the route-worker timeout in
	// internal/reconcile, so a test can drive a single failed attempt
	// without the Fake failing forever.
	installErr error
	removeErr  error
}

func NewFake() *Fake {
	return &Fake{byKey: make(map[warpd.RouteKey]warpd.RouteSpec)}
}

// SetInstallErr arms err to be returned by the next Install call in place
// of its normal outcome. Pass nil to disarm.
func (f *Fake) SetInstallErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installErr = err
}

// SetRemoveErr arms err to be returned by the next Remove call in place
// of its normal outcome. Pass nil to disarm.
func (f *Fake) SetRemoveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeErr = err
}

func (f *Fake) Install(spec warpd.RouteSpec) (InstallOutcome, *warpd.RouteSpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.installErr != nil {
		err := f.installErr
		f.installErr = nil
		return 0, nil, err
	}

	if spec.Destination.Addr().Is6() != spec.NextHop.Is6() {
		return 0, nil, &FamilyMismatchError{Spec: spec}
	}

	for k, existing := range f.byKey {
		if k.Family == spec.Family() && k.Destination == spec.Destination {
			if existing.Equal(spec) {
				return AlreadyPresent, nil, nil
			}
			old := existing
			delete(f.byKey, k)
			f.byKey[spec.Key()] = spec
			f.Calls = append(f.Calls, "replace:"+spec.String())
			return Replaced, &old, nil
		}
	}

	f.byKey[spec.Key()] = spec
	f.Calls = append(f.Calls, "add:"+spec.String())
	return Added, nil, nil
}

func (f *Fake) Remove(spec warpd.RouteSpec) (RemoveOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.removeErr != nil {
		err := f.removeErr
		f.removeErr = nil
		return 0, err
	}

	key := spec.Key()
	if _, ok := f.byKey[key]; !ok {
		return NotFound, nil
	}
	delete(f.byKey, key)
	f.Calls = append(f.Calls, "remove:"+spec.String())
	return Removed, nil
}

func (f *Fake) List() ([]warpd.RouteSpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]warpd.RouteSpec, 0, len(f.byKey))
	for _, s := range f.byKey {
		out = append(out, s)
	}
	return out, nil
}

// CallCount returns the number of recorded Install/Remove invocations so
// far, safe to call concurrently with an in-flight route job.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
