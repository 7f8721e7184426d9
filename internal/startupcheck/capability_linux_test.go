//go:build linux

package startupcheck

import "testing"

func TestHasNetAdmin_Capget(t *testing.T) {
	// Capget always succeeds for the calling process on linux; this just
	// exercises the syscall path without asserting a specific capability
	// bit, since CI and developer sandboxes run with different effective
	// capability sets.
	if _, err := hasNetAdmin(); err != nil {
		t.Fatalf("hasNetAdmin: %v", err)
	}
}
