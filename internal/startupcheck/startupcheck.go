// Package startupcheck runs the daemon's preflight checks: the
// CAP_NET_ADMIN capability needed to program routes, and reachability of
// the Runtime Client. Both map to distinct process exit codes at this
// startup boundary rather than surfacing as ordinary reconcile errors.
package startupcheck

import (
	"context"
	"fmt"

	"warpd/internal/runtime"
)

// MissingCapabilityError reports that the process lacks CAP_NET_ADMIN.
type MissingCapabilityError struct {
	Err error
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("missing CAP_NET_ADMIN: %v", e.Err)
}
func (e *MissingCapabilityError) Unwrap() error { return e.Err }

// RuntimeUnavailableError reports that the Runtime Client could not be
// reached at startup.
type RuntimeUnavailableError struct {
	Err error
}

func (e *RuntimeUnavailableError) Error() string {
	return fmt.Sprintf("runtime client unavailable: %v", e.Err)
}
func (e *RuntimeUnavailableError) Unwrap() error { return e.Err }

// CheckCapabilities verifies the process holds CAP_NET_ADMIN in its
// effective set, without which every route install will fail with
// EPERM deep inside a namespace the daemon has already entered.
func CheckCapabilities() error {
	ok, err := hasNetAdmin()
	if err != nil {
		return &MissingCapabilityError{Err: err}
	}
	if !ok {
		return &MissingCapabilityError{Err: fmt.Errorf("CAP_NET_ADMIN not present in effective capability set")}
	}
	return nil
}

// CheckRuntime verifies the Runtime Client can enumerate containers,
// the same call the Reconciler makes to seed the Store.
func CheckRuntime(ctx context.Context, rt runtime.Client) error {
	if _, err := rt.ListContainers(ctx); err != nil {
		return &RuntimeUnavailableError{Err: err}
	}
	return nil
}
