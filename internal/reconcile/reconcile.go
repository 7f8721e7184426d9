// Package reconcile is the event loop and per-target convergence engine:
// it consumes runtime lifecycle events, updates the Store, and drives the
// Resolver and Route Programmer to converge installed routes with
// declared intent.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"warpd"
	"warpd/internal/check"
	"warpd/internal/classify"
	"warpd/internal/netns"
	"warpd/internal/route"
	"warpd/internal/runtime"
	"warpd/internal/store"
)

// ProgrammerFactory builds a namespace-scoped Route Programmer from a
// netns.Handle opened for one target container.
type ProgrammerFactory func(netns.Handle) route.Programmer

// Option configures a Reconciler, following the functional-options
// pattern used throughout this lineage's daemons for dependency injection.
type Option func(*Reconciler)

func WithRuntime(rt runtime.Client) Option {
	check.Assert(rt != nil, "WithRuntime: client must not be nil")
	return func(r *Reconciler) { r.runtime = rt }
}

func WithClassifier(c *classify.Classifier) Option {
	check.Assert(c != nil, "WithClassifier: classifier must not be nil")
	return func(r *Reconciler) { r.classifier = c }
}

func WithStore(s *store.Store) Option {
	check.Assert(s != nil, "WithStore: store must not be nil")
	return func(r *Reconciler) { r.store = s }
}

func WithNamespaceProvider(p netns.Provider) Option {
	check.Assert(p != nil, "WithNamespaceProvider: provider must not be nil")
	return func(r *Reconciler) { r.nsProvider = p }
}

func WithProgrammerFactory(f ProgrammerFactory) Option {
	check.Assert(f != nil, "WithProgrammerFactory: factory must not be nil")
	return func(r *Reconciler) { r.programmerFactory = f }
}

func WithRules(rules []warpd.RoutingRule) Option {
	return func(r *Reconciler) { r.rules = rules }
}

func WithClock(clock func() time.Time) Option {
	check.Assert(clock != nil, "WithClock: clock must not be nil")
	return func(r *Reconciler) { r.clock = clock }
}

func WithRouteTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.routeTimeout = d }
}

func WithMaxRouteRetries(n int) Option {
	return func(r *Reconciler) { r.maxRouteRetries = n }
}

func WithShutdownDrainDeadline(d time.Duration) Option {
	return func(r *Reconciler) { r.shutdownDrain = d }
}

// Reconciler is the event loop and per-target convergence engine.
type Reconciler struct {
	runtime           runtime.Client
	classifier        *classify.Classifier
	store             *store.Store
	nsProvider        netns.Provider
	programmerFactory ProgrammerFactory
	rules             []warpd.RoutingRule
	clock             func() time.Time

	routeTimeout    time.Duration
	maxRouteRetries int
	shutdownDrain   time.Duration

	mu       sync.Mutex
	actors   map[string]*actor
	wg       sync.WaitGroup
	actorCtx context.Context

	// retryCounts tracks consecutive generic route-operation failures per
	// target against maxRouteRetries (spec §7's N=3 budget). timeoutRetried
	// tracks, per target, whether this target has already consumed its
	// one-shot route-worker-timeout reschedule (spec §5) — a distinct,
	// uncounted budget so a single slow operation doesn't eat into the
	// same N retries as three genuine failures.
	retryCounts    map[string]int
	timeoutRetried map[string]bool
	retryCountsMu  sync.Mutex
}

func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		routeTimeout:    5 * time.Second,
		maxRouteRetries: 3,
		shutdownDrain:   10 * time.Second,
		clock:           time.Now,
		actors:          make(map[string]*actor),
		retryCounts:     make(map[string]int),
		timeoutRetried:  make(map[string]bool),
	}
	for _, o := range opts {
		o(r)
	}
	check.Assert(r.runtime != nil, "reconcile.New: runtime client is required")
	check.Assert(r.classifier != nil, "reconcile.New: classifier is required")
	check.Assert(r.store != nil, "reconcile.New: store is required")
	check.Assert(r.nsProvider != nil, "reconcile.New: namespace provider is required")
	check.Assert(r.programmerFactory != nil, "reconcile.New: programmer factory is required")
	return r
}

// Run seeds the Store from the runtime's current container list, then
// drives the event loop until ctx is canceled. On cancellation it drains
// per-target queues (bounded by shutdownDrain), best-effort removes all
// installed routes, then returns.
func (r *Reconciler) Run(ctx context.Context) error {
	r.mu.Lock()
	r.actorCtx = ctx
	r.mu.Unlock()

	if err := r.seed(ctx); err != nil {
		return err
	}
	err := r.eventLoop(ctx)
	r.shutdown()
	return err
}

func (r *Reconciler) shutdown() {
	drainCtx, cancel := context.WithTimeout(context.Background(), r.shutdownDrain)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-drainCtx.Done():
		slog.Warn("shutdown drain deadline exceeded, proceeding with best-effort cleanup")
	}

	for _, id := range r.store.AllTargetIDs() {
		// Best-effort, one attempt: the process is exiting, so a failed
		// removal has nowhere to retry to.
		r.removeAllRoutes(drainCtx, id, func() {})
	}
}

func (r *Reconciler) seed(ctx context.Context) error {
	containers, err := r.runtime.ListContainers(ctx)
	if err != nil {
		return err
	}
	for _, c := range containers {
		r.observe(c)
	}
	for _, id := range r.store.AllTargetIDs() {
		r.enqueueTargetReconcile(id)
	}
	return nil
}

// observe classifies c and upserts it into the Store. A malformed label
// demotes the container to Ignored and logs a warning rather than failing
// the caller.
func (r *Reconciler) observe(c warpd.Container) warpd.Role {
	role, err := r.classifier.Classify(c)
	if err != nil {
		slog.Warn("classification error, container ignored", "container", c.ID, "err", err)
	}
	r.store.Apply(func(tx *store.Tx) {
		tx.UpsertContainer(c, role)
	})
	slog.Info("container observed", "id", c.ID, "name", c.Name, "role", roleLabel(role))
	return role
}

func roleLabel(r warpd.Role) string {
	switch {
	case warpd.IsIgnored(r):
		return "ignored"
	default:
		if _, ok := warpd.IsWarp(r); ok {
			return "warp"
		}
		if _, ok := warpd.IsTarget(r); ok {
			return "target"
		}
		return "unknown"
	}
}
