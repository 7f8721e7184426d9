// Package route installs, removes, and lists kernel routes inside a
// namespace-scoped netlink handle. All operations are idempotent and
// family-aware; see Programmer for the exact semantics.
package route

import (
	"errors"
	"fmt"

	"warpd"
)

// InstallOutcome describes what Install actually did.
type InstallOutcome uint8

const (
	Added InstallOutcome = iota
	AlreadyPresent
	Replaced
)

// RemoveOutcome describes what Remove actually did.
type RemoveOutcome uint8

const (
	Removed RemoveOutcome = iota
	NotFound
)

// InsufficientPrivilegesError wraps a kernel EPERM/EACCES translating a
// missing capability into a distinct error type. The Reconciler does not
// branch on it: it is retried and logged like any other route failure and
// does not stop the daemon.
type InsufficientPrivilegesError struct {
	Op  string
	Err error
}

func (e *InsufficientPrivilegesError) Error() string {
	return fmt.Sprintf("insufficient privileges for %s: %v", e.Op, e.Err)
}

func (e *InsufficientPrivilegesError) Unwrap() error { return e.Err }

// FamilyMismatchError is returned when a RouteSpec's destination and
// next-hop families disagree.
type FamilyMismatchError struct {
	Spec warpd.RouteSpec
}

func (e *FamilyMismatchError) Error() string {
	return fmt.Sprintf("destination %s and next-hop %s are different address families", e.Spec.Destination, e.Spec.NextHop)
}

// Programmer is the kernel collaborator, scoped to a single target
// namespace by whatever handle its implementation wraps (see
// internal/netns for how that handle is obtained).
//
//   - Install is idempotent: an identical route already present is a
//     no-op returning AlreadyPresent. A route with the same destination
//     and family but a different next-hop is replaced atomically: add the
//     new route, then delete the old; if the add fails no state changes.
//   - Remove is idempotent: absence is NotFound, not an error.
type Programmer interface {
	Install(spec warpd.RouteSpec) (InstallOutcome, *warpd.RouteSpec, error)
	Remove(spec warpd.RouteSpec) (RemoveOutcome, error)
	List() ([]warpd.RouteSpec, error)
}

var ErrClosed = errors.New("route programmer closed")
