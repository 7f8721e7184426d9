// Package runtime is the read-only collaborator over the container
// runtime: inspection, network attachments, and the lifecycle event
// stream the Reconciler consumes.
package runtime

import (
	"context"

	"warpd"
)

// EventKind enumerates the lifecycle transitions the Reconciler reacts to.
type EventKind uint8

const (
	EventStart EventKind = iota
	EventDie
	EventDestroy
	// EventReconnect is synthesized by the Client after the underlying
	// event stream recovers from a disconnect; it carries no ContainerID.
	EventReconnect
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventDie:
		return "die"
	case EventDestroy:
		return "destroy"
	case EventReconnect:
		return "reconnect"
	default:
		return "unknown"
	}
}

// Event is a single observed lifecycle transition.
type Event struct {
	Kind        EventKind
	ContainerID string
}

// Client is the Runtime Client collaborator: the seam between the
// Reconciler and whatever container runtime backs it.
type Client interface {
	// ListContainers enumerates all containers visible at the current
	// instant, used for startup seeding and full reconciles after reconnect.
	ListContainers(ctx context.Context) ([]warpd.Container, error)
	// Inspect returns full metadata for one container, including labels,
	// network attachments, and host PID.
	Inspect(ctx context.Context, id string) (warpd.Container, error)
	// Events streams lifecycle transitions until ctx is canceled or the
	// underlying connection breaks. On a transient break it reconnects
	// internally with internal/backoff's reconnect discipline and emits a
	// synthetic EventReconnect once the stream resumes.
	Events(ctx context.Context) (<-chan Event, <-chan error)
	Close() error
}
