package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"warpd"
	"warpd/internal/backoff"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	dockernetwork "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
)

// DockerClient implements Client using the Docker Engine API for
// container and network lifecycle calls.
type DockerClient struct {
	cli client.APIClient
}

func NewDockerClient(cli client.APIClient) *DockerClient {
	return &DockerClient{cli: cli}
}

// NewDockerClientFromEnv dials the daemon using the standard Docker
// environment variables (DOCKER_HOST, DOCKER_CERT_PATH, ...).
func NewDockerClientFromEnv() (*DockerClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return NewDockerClient(cli), nil
}

func (d *DockerClient) Close() error {
	return d.cli.Close()
}

func (d *DockerClient) ListContainers(ctx context.Context) ([]warpd.Container, error) {
	summaries, err := d.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]warpd.Container, 0, len(summaries))
	for _, s := range summaries {
		c, err := d.Inspect(ctx, s.ID)
		if err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (d *DockerClient) Inspect(ctx context.Context, id string) (warpd.Container, error) {
	info, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return warpd.Container{}, fmt.Errorf("inspect container %s: %w", id, err)
	}
	return toContainer(info), nil
}

func toContainer(info container.InspectResponse) warpd.Container {
	c := warpd.Container{
		ID:     info.ID,
		Name:   trimLeadingSlash(info.Name),
		Labels: map[string]string{},
		State:  lifecycleState(info),
	}
	if info.Config != nil {
		for k, v := range info.Config.Labels {
			c.Labels[k] = v
		}
	}
	if info.State != nil {
		c.PID = info.State.Pid
	}
	if info.NetworkSettings != nil {
		for name, ep := range info.NetworkSettings.Networks {
			c.Networks = append(c.Networks, toAttachment(name, ep))
		}
	}
	return c
}

func toAttachment(name string, ep *dockernetwork.EndpointSettings) warpd.NetworkAttachment {
	a := warpd.NetworkAttachment{Network: name}
	if ep == nil {
		return a
	}
	if addr, err := netip.ParseAddr(ep.IPAddress); err == nil && ep.IPAddress != "" {
		a.Address = addr
	} else if addr, err := netip.ParseAddr(ep.GlobalIPv6Address); err == nil && ep.GlobalIPv6Address != "" {
		a.Address = addr
	}
	if ep.IPPrefixLen != 0 && a.Address.IsValid() {
		if pfx, err := netip.ParsePrefix(fmt.Sprintf("%s/%d", a.Address, ep.IPPrefixLen)); err == nil {
			a.CIDR = pfx
		}
	}
	if ep.Gateway != "" {
		if gw, err := netip.ParseAddr(ep.Gateway); err == nil {
			a.Gateway = gw
		}
	}
	return a
}

func lifecycleState(info container.InspectResponse) warpd.LifecycleState {
	if info.State == nil {
		return warpd.StateUnknown
	}
	switch {
	case info.State.Running && !info.State.Paused:
		return warpd.StateRunning
	case info.State.Restarting:
		return warpd.StateStarting
	case info.State.Dead:
		return warpd.StateStopped
	default:
		return warpd.StateStopped
	}
}

func trimLeadingSlash(name string) string {
	if len(name) > 0 && name[0] == '/' {
		return name[1:]
	}
	return name
}

// Events streams container start/die/destroy events, reconnecting with
// internal/backoff's discipline on a broken stream and emitting a
// synthetic EventReconnect once resumed.
func (d *DockerClient) Events(ctx context.Context) (<-chan Event, <-chan error) {
	out := make(chan Event)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		b := backoff.New(500*time.Millisecond, 2, 30*time.Second)
		first := true
		for {
			if ctx.Err() != nil {
				errCh <- ctx.Err()
				return
			}
			if !first {
				select {
				case out <- Event{Kind: EventReconnect}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
			first = false

			if err := d.streamOnce(ctx, out); err != nil {
				if ctx.Err() != nil {
					errCh <- ctx.Err()
					return
				}
				delay := b.Next()
				slog.Warn("docker event stream broken, reconnecting", "err", err, "delay", delay)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
				continue
			}
			b.Reset()
		}
	}()

	return out, errCh
}

func (d *DockerClient) streamOnce(ctx context.Context, out chan<- Event) error {
	f := filters.NewArgs(filters.Arg("type", string(events.ContainerEventType)))
	msgs, errs := d.cli.Events(ctx, events.ListOptions{Filters: f})
	for {
		select {
		case msg := <-msgs:
			kind, ok := toEventKind(msg.Action)
			if !ok {
				continue
			}
			select {
			case out <- Event{Kind: kind, ContainerID: msg.Actor.ID}:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err := <-errs:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func toEventKind(action events.Action) (EventKind, bool) {
	switch action {
	case events.ActionStart:
		return EventStart, true
	case events.ActionDie:
		return EventDie, true
	case events.ActionDestroy:
		return EventDestroy, true
	default:
		return 0, false
	}
}
