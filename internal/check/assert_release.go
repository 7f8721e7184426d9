//go:build !debug

// Package check provides precondition assertions for warpd's internal
// invariants, active in debug builds and compiled out of release builds.
package check

// Assert is a no-op in release builds.
func Assert(_ bool, _ string) {}

// Assertf is a no-op in release builds.
func Assertf(_ bool, _ string, _ ...any) {}
