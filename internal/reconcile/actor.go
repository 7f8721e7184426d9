package reconcile

import (
	"context"
	"sync"
)

// job is one unit of per-target work. Jobs for the same target id always
// run in the order they were enqueued.
type job func(context.Context)

// actor serializes work for one target container behind a FIFO job queue,
// so work for distinct targets proceeds concurrently while work for the
// same target always finalizes in order — the per-target actor design,
// used instead of a global lock on the Store. The queue is a slice with no
// capacity limit: at most one generic reconcile is pending at a time, but
// teardown jobs accumulate without bound. A generic
// reconcile job coalesces with one already queued (but not yet running)
// for this target, since reconcileTarget always reads the latest Store
// state and piling up duplicates is wasted work; a teardown job is never
// coalesced or dropped, so a start followed by a die for the same id
// always finalizes in that order.
type actor struct {
	id   string
	wake chan struct{}

	mu               sync.Mutex
	queue            []job
	reconcilePending bool
}

func newActor(id string) *actor {
	return &actor{id: id, wake: make(chan struct{}, 1)}
}

// enqueue appends j to the queue unconditionally.
func (a *actor) enqueue(j job) {
	a.mu.Lock()
	a.queue = append(a.queue, j)
	a.mu.Unlock()
	a.wakeUp()
}

// signalReconcile enqueues a generic reconcile pass, coalescing with one
// already queued for this target.
func (a *actor) signalReconcile(reconcile func(context.Context, string)) {
	a.mu.Lock()
	if a.reconcilePending {
		a.mu.Unlock()
		return
	}
	a.reconcilePending = true
	a.queue = append(a.queue, func(ctx context.Context) {
		a.mu.Lock()
		a.reconcilePending = false
		a.mu.Unlock()
		reconcile(ctx, a.id)
	})
	a.mu.Unlock()
	a.wakeUp()
}

func (a *actor) wakeUp() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *actor) run(ctx context.Context) {
	for {
		select {
		case <-a.wake:
			for {
				a.mu.Lock()
				if len(a.queue) == 0 {
					a.mu.Unlock()
					break
				}
				j := a.queue[0]
				a.queue = a.queue[1:]
				a.mu.Unlock()
				j(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}

// actorFor returns the actor for targetID, starting its run loop on first use.
func (r *Reconciler) actorFor(targetID string) *actor {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[targetID]
	if !ok {
		a = newActor(targetID)
		r.actors[targetID] = a
		ctx := r.actorCtx
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			a.run(ctx)
		}()
	}
	return a
}

// enqueueTargetReconcile starts (if needed) and signals the actor for
// targetID to run a generic convergence pass.
func (r *Reconciler) enqueueTargetReconcile(targetID string) {
	r.actorFor(targetID).signalReconcile(r.reconcileTargetSafely)
}

// enqueueTeardown starts (if needed) and queues a one-shot teardown job
// for targetID. It always runs, and always after any reconcile already
// queued for that target, so a die/destroy for a target is serialized
// with any start-triggered reconcile still in flight for the same id.
func (r *Reconciler) enqueueTeardown(targetID string) {
	r.actorFor(targetID).enqueue(func(ctx context.Context) {
		r.teardownTarget(ctx, targetID)
	})
}
