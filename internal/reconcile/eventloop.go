package reconcile

import (
	"context"
	"log/slog"

	"warpd"
	"warpd/internal/runtime"
	"warpd/internal/store"
)

// eventLoop consumes the Runtime Client's event stream until ctx is
// canceled, dispatching start/die/destroy to target reconciles and
// running a full reconcile on every synthesized reconnect.
func (r *Reconciler) eventLoop(ctx context.Context) error {
	events, errs := r.runtime.Events(ctx)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				select {
				case err := <-errs:
					return err
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			r.handleEvent(ctx, ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Reconciler) handleEvent(ctx context.Context, ev runtime.Event) {
	switch ev.Kind {
	case runtime.EventStart:
		r.handleStart(ctx, ev.ContainerID)
	case runtime.EventDie, runtime.EventDestroy:
		r.handleDieOrDestroy(ctx, ev.ContainerID)
	case runtime.EventReconnect:
		r.fullReconcile(ctx)
	}
}

func (r *Reconciler) handleStart(ctx context.Context, id string) {
	c, err := r.runtime.Inspect(ctx, id)
	if err != nil {
		slog.Error("inspect failed on start event", "container", id, "err", err)
		return
	}
	role := r.observe(c)

	if _, ok := warpd.IsWarp(role); ok {
		for _, targetID := range r.store.TargetsForWarpName(c.Name) {
			r.enqueueTargetReconcile(targetID)
		}
		return
	}
	if _, ok := warpd.IsTarget(role); ok {
		r.enqueueTargetReconcile(c.ID)
	}
}

func (r *Reconciler) handleDieOrDestroy(ctx context.Context, id string) {
	c, known := r.store.Container(id)
	role, _ := r.store.Role(id)

	if _, ok := warpd.IsTarget(role); ok {
		r.enqueueTeardown(id)
		return
	}
	var waiting []string
	if _, ok := warpd.IsWarp(role); ok && known {
		waiting = r.store.TargetsForWarpName(c.Name)
	}
	// Drop the warp before signaling its targets, so their reconciles find
	// no warp and remove the routes that pointed at it.
	r.store.Apply(func(tx *store.Tx) { tx.RemoveContainer(id) })
	for _, targetID := range waiting {
		r.enqueueTargetReconcile(targetID)
	}
}

// fullReconcile re-enumerates every container from the runtime and
// re-drives a reconcile for every known target, covering events missed
// during a stream disconnect.
func (r *Reconciler) fullReconcile(ctx context.Context) {
	slog.Info("reconnected, running full reconcile")
	containers, err := r.runtime.ListContainers(ctx)
	if err != nil {
		slog.Error("full reconcile: list containers failed", "err", err)
		return
	}

	seen := make(map[string]bool, len(containers))
	for _, c := range containers {
		seen[c.ID] = true
		r.observe(c)
	}

	// A warp that vanished during the gap is still indexed by name; drop it
	// so its targets' reconciles find no warp and remove their routes.
	for _, id := range r.store.AllTargetIDs() {
		warpID, ok := r.store.WarpIDByName(targetWarpSelector(r.store, id))
		if ok && !seen[warpID] {
			r.store.Apply(func(tx *store.Tx) { tx.RemoveContainer(warpID) })
		}
	}

	for _, id := range r.store.AllTargetIDs() {
		if !seen[id] {
			r.enqueueTeardown(id)
			continue
		}
		r.enqueueTargetReconcile(id)
	}
}
