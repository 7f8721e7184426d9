package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"warpd"
	"warpd/internal/netns"
	"warpd/internal/resolve"
	"warpd/internal/route"
	"warpd/internal/store"
)

// reconcileTargetSafely runs reconcileTarget and isolates any error to
// this target: a failure here must never stop the event loop from
// consuming subsequent events for other containers.
func (r *Reconciler) reconcileTargetSafely(ctx context.Context, targetID string) {
	if err := r.reconcileTarget(ctx, targetID); err != nil {
		slog.Error("reconcile failed", "target", targetID, "err", err)
	}
}

// reconcileTarget implements the target-reconcile algorithm: resolve the
// desired route set from the bound warp, diff it against what's
// installed, and apply the difference.
func (r *Reconciler) reconcileTarget(ctx context.Context, targetID string) error {
	target, ok := r.store.Container(targetID)
	if !ok {
		return nil // target is gone; nothing to do
	}

	warpName := targetWarpSelector(r.store, targetID)
	if warpName == "" {
		return nil // role changed since this job was enqueued
	}

	warpID, ok := r.store.WarpIDByName(warpName)
	if !ok {
		slog.Info("awaiting warp", "target", targetID, "warp_selector", warpName)
		_, err := r.removeAllRoutes(ctx, targetID, func() { r.enqueueTargetReconcile(targetID) })
		return err
	}

	warp, ok := r.store.Container(warpID)
	if !ok {
		_, err := r.removeAllRoutes(ctx, targetID, func() { r.enqueueTargetReconcile(targetID) })
		return err
	}
	warpRole, ok := warpd.IsWarp(mustRole(r.store, warpID))
	if !ok {
		_, err := r.removeAllRoutes(ctx, targetID, func() { r.enqueueTargetReconcile(targetID) })
		return err
	}

	desired, err := resolve.Resolve(target, warp, warpRole, r.rules)
	var ambiguous *resolve.AmbiguousWarpNetworkError
	if errors.As(err, &ambiguous) {
		slog.Error("ambiguous warp network, leaving existing routes untouched", "target", targetID, "warp", warpID, "candidates", ambiguous.CandidateNetworks)
		return nil
	}
	if err != nil {
		return err
	}

	installed := r.store.Installed(targetID)
	added, removed, kept := diffRoutes(targetID, desired, installed, warpID)

	return r.applyDiff(ctx, targetID, target.PID, warpID, warp.Name, added, removed, kept)
}

func targetWarpSelector(s *store.Store, targetID string) string {
	role, ok := s.Role(targetID)
	if !ok {
		return ""
	}
	t, ok := warpd.IsTarget(role)
	if !ok {
		return ""
	}
	return t.WarpSelector
}

func mustRole(s *store.Store, id string) warpd.Role {
	r, _ := s.Role(id)
	return r
}

// diffRoutes splits desired vs installed into additions, removals, and
// kept-but-stale records whose recorded warp id no longer matches —
// those are treated as delete+add.
func diffRoutes(targetID string, desired []warpd.RouteSpec, installed []warpd.InstalledRouteRecord, warpID string) (added []warpd.RouteSpec, removed []warpd.InstalledRouteRecord, kept []warpd.InstalledRouteRecord) {
	installedByKey := make(map[warpd.RecordKey]warpd.InstalledRouteRecord, len(installed))
	for _, rec := range installed {
		installedByKey[rec.Key()] = rec
	}

	desiredByKey := make(map[warpd.RecordKey]warpd.RouteSpec, len(desired))
	for _, spec := range desired {
		desiredByKey[warpd.RecordKey{TargetID: targetID, Destination: spec.Destination, Family: spec.Family()}] = spec
	}

	for key, spec := range desiredByKey {
		rec, ok := installedByKey[key]
		if !ok {
			added = append(added, spec)
			continue
		}
		if rec.WarpID != warpID || !rec.Spec.Equal(spec) {
			removed = append(removed, rec)
			added = append(added, spec)
			continue
		}
		kept = append(kept, rec)
	}
	for key, rec := range installedByKey {
		if _, ok := desiredByKey[key]; !ok {
			removed = append(removed, rec)
		}
	}
	return added, removed, kept
}

// applyDiff enters the target's namespace once and performs every
// addition and removal, then persists the resulting record set.
func (r *Reconciler) applyDiff(ctx context.Context, targetID string, pid int, warpID, warpAttachment string, added []warpd.RouteSpec, removed []warpd.InstalledRouteRecord, kept []warpd.InstalledRouteRecord) error {
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	jobCtx, cancel := withRouteTimeout(ctx, r.routeTimeout)
	defer cancel()

	var final []warpd.InstalledRouteRecord
	final = append(final, kept...)

	err := runInNamespace(jobCtx, r.nsProvider, r.programmerFactory, targetID, pid, func(prog route.Programmer) error {
		for _, rec := range removed {
			outcome, rerr := prog.Remove(rec.Spec)
			if rerr != nil {
				return rerr
			}
			if outcome == route.Removed {
				slog.Info("route removed", "target", targetID, "destination", rec.Spec.Destination, "next_hop", rec.Spec.NextHop)
			}
		}
		for _, spec := range added {
			outcome, old, aerr := prog.Install(spec)
			if aerr != nil {
				return aerr
			}
			switch outcome {
			case route.Added:
				slog.Info("route installed", "target", targetID, "destination", spec.Destination, "next_hop", spec.NextHop)
			case route.Replaced:
				slog.Info("route replaced", "target", targetID, "destination", spec.Destination, "next_hop", spec.NextHop, "previous_next_hop", old.NextHop)
			case route.AlreadyPresent:
			}
			final = append(final, warpd.InstalledRouteRecord{
				TargetID:       targetID,
				Spec:           spec,
				WarpID:         warpID,
				WarpAttachment: warpAttachment,
				InstalledAt:    r.clock(),
			})
		}
		return nil
	})

	if err != nil {
		var gone *netns.GoneError
		if errors.As(err, &gone) {
			slog.Info("namespace gone during install, skipping", "target", targetID)
			r.clearRetryState(targetID)
			return nil
		}
		retry := func() { r.enqueueTargetReconcile(targetID) }
		if errors.Is(err, context.DeadlineExceeded) {
			return r.scheduleTimeoutRetry(targetID, err, retry)
		}
		return r.scheduleRetry(targetID, err, retry)
	}

	r.clearRetryState(targetID)

	r.store.Apply(func(tx *store.Tx) {
		tx.SetInstalled(targetID, final)
	})
	return nil
}

// removeAllRoutes removes every InstalledRouteRecord for targetID. A
// vanished namespace is tolerated as success. onRetry is the job
// rescheduled when a removal fails for some other reason: callers pass
// a normal reconcile for the "awaiting warp" path and a repeat teardown
// for the die/destroy path, since a target whose container has already
// died must not be routed through an ordinary reconcileTarget that would
// try to resolve and reinstall routes for it.
//
// The returned bool reports whether targetID's route state is settled
// (every record removed, or the namespace confirmed gone) — false means
// a retry was scheduled or the retry budget was exhausted, and the
// caller must not treat targetID as torn down yet.
func (r *Reconciler) removeAllRoutes(ctx context.Context, targetID string, onRetry func()) (bool, error) {
	installed := r.store.Installed(targetID)
	if len(installed) == 0 {
		r.clearRetryState(targetID)
		return true, nil
	}
	target, ok := r.store.Container(targetID)
	if !ok {
		r.store.Apply(func(tx *store.Tx) { tx.SetInstalled(targetID, nil) })
		r.clearRetryState(targetID)
		return true, nil
	}

	jobCtx, cancel := withRouteTimeout(ctx, r.routeTimeout)
	defer cancel()

	err := runInNamespace(jobCtx, r.nsProvider, r.programmerFactory, targetID, target.PID, func(prog route.Programmer) error {
		for _, rec := range installed {
			if _, rerr := prog.Remove(rec.Spec); rerr != nil {
				return rerr
			}
			slog.Info("route removed", "target", targetID, "destination", rec.Spec.Destination)
		}
		return nil
	})

	if err != nil {
		var gone *netns.GoneError
		if errors.As(err, &gone) {
			r.store.Apply(func(tx *store.Tx) { tx.SetInstalled(targetID, nil) })
			r.clearRetryState(targetID)
			return true, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return false, r.scheduleTimeoutRetry(targetID, err, onRetry)
		}
		return false, r.scheduleRetry(targetID, err, onRetry)
	}

	r.store.Apply(func(tx *store.Tx) { tx.SetInstalled(targetID, nil) })
	r.clearRetryState(targetID)
	return true, nil
}

// teardownTarget is the terminal per-target job run on die/destroy (and on
// a reconnect gap that finds the target gone): best-effort route removal,
// followed by a drop from the Store — but only once route removal is
// actually settled (every record gone, or the namespace confirmed gone).
// If removal instead fails and schedules a retry (or exhausts its retry
// budget), the container and its InstalledRouteRecords are left in place:
// removeAllRoutes has already re-enqueued this same teardown job (or, on
// exhaustion, logged and stopped), and dropping the container now would
// both violate spec §3's lifecycle invariant — RemoveContainer also drops
// the records, leaving a live kernel route with no record behind it — and
// make that rescheduled retry's eventual teardownTarget a silent no-op
// against a row that no longer exists.
func (r *Reconciler) teardownTarget(ctx context.Context, targetID string) {
	settled, err := r.removeAllRoutes(ctx, targetID, func() { r.enqueueTeardown(targetID) })
	if err != nil {
		slog.Error("teardown failed", "target", targetID, "err", err)
	}
	if !settled {
		return
	}
	r.store.Apply(func(tx *store.Tx) { tx.RemoveContainer(targetID) })
}

// scheduleRetry counts this target's consecutive route failures and, if
// under the configured maximum, runs retry; otherwise it leaves a
// diagnostic and stops retrying until the next relevant event.
func (r *Reconciler) scheduleRetry(targetID string, cause error, retry func()) error {
	r.retryCountsMu.Lock()
	r.retryCounts[targetID]++
	count := r.retryCounts[targetID]
	r.retryCountsMu.Unlock()

	if count > r.maxRouteRetries {
		slog.Error("route operation failed, giving up after retries", "target", targetID, "attempts", count, "err", cause)
		return cause
	}
	slog.Warn("route operation failed, scheduling retry", "target", targetID, "attempt", count, "err", cause)
	retry()
	return nil
}

// scheduleTimeoutRetry reschedules targetID once after a route-worker
// timeout, per spec §5's single-reschedule timeout policy — distinct from
// scheduleRetry's N=3 generic route-failure budget (spec §7), so one slow
// operation doesn't consume from the same budget as three genuine
// failures. A second consecutive timeout for the same target falls
// through to the generic retry budget instead of rescheduling forever.
func (r *Reconciler) scheduleTimeoutRetry(targetID string, cause error, retry func()) error {
	r.retryCountsMu.Lock()
	already := r.timeoutRetried[targetID]
	r.timeoutRetried[targetID] = true
	r.retryCountsMu.Unlock()

	if already {
		return r.scheduleRetry(targetID, cause, retry)
	}
	slog.Warn("route worker timed out, rescheduling once", "target", targetID, "err", cause)
	retry()
	return nil
}

// clearRetryState resets both retry budgets for targetID, called whenever
// a route job settles successfully so a later failure starts with a full
// budget rather than inheriting an earlier, unrelated one.
func (r *Reconciler) clearRetryState(targetID string) {
	r.retryCountsMu.Lock()
	delete(r.retryCounts, targetID)
	delete(r.timeoutRetried, targetID)
	r.retryCountsMu.Unlock()
}
