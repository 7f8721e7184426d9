// Package netns resolves a container's host PID to its network namespace
// and hands callers a scoped handle for kernel-facing operations, without
// ever switching the calling goroutine's own namespace.
package netns

import "fmt"

// GoneError indicates the container (or its namespace) disappeared
// between lookup and entry. Callers tolerate this as success during
// removal and as a skip during install, per the Reconciler's error
// taxonomy.
type GoneError struct {
	ContainerID string
	Err         error
}

func (e *GoneError) Error() string {
	return fmt.Sprintf("namespace for container %s is gone: %v", e.ContainerID, e.Err)
}

func (e *GoneError) Unwrap() error { return e.Err }

// Handle scopes kernel-facing operations to one container's network
// namespace. Close releases any file descriptors the handle owns; it must
// be called exactly once, on whichever goroutine obtained the handle —
// handles are not safe to share across goroutines that might migrate OS
// threads mid-use (see Provider).
type Handle interface {
	Close() error
}

// Provider opens namespace handles by container PID. Implementations must
// guarantee that, regardless of success, error, or cancellation, any
// thread-local kernel state the entry mutated is restored before Open
// returns control that isn't still inside an active Handle's lifetime.
type Provider interface {
	Open(containerID string, pid int) (Handle, error)
}
