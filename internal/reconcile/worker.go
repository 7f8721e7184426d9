package reconcile

import (
	"context"
	"runtime"
	"time"

	"warpd/internal/netns"
	"warpd/internal/route"
)

// runInNamespace opens containerID's namespace, builds a Route Programmer
// scoped to it, and runs fn, all on a single goroutine that pins its OS
// thread for the duration — namespace entry is a thread-local kernel
// effect, so it must never be exposed as a freely-suspending operation.
// The worker goroutine closes the handle on every exit path; when fn
// finishes before ctx is done, that happens before this function returns.
//
// If ctx is canceled or its deadline expires before fn finishes, this
// returns early with the context error; fn's goroutine keeps running to
// completion in the background and still closes its handle — the pinned
// thread is not forcibly reclaimed, since Go offers no mechanism to
// preempt a goroutine stuck in a syscall.
func runInNamespace(ctx context.Context, provider netns.Provider, factory ProgrammerFactory, containerID string, pid int, fn func(route.Programmer) error) error {
	done := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		handle, err := provider.Open(containerID, pid)
		if err != nil {
			done <- err
			return
		}
		defer handle.Close()

		prog := factory(handle)
		done <- fn(prog)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withRouteTimeout bounds a single namespace job to d, defaulting to 5s.
func withRouteTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

