package runtime

import (
	"context"
	"fmt"
	"sync"

	"warpd"
)

// Fake is an in-memory Client for tests: containers are seeded directly
// and events are delivered by calling Emit.
type Fake struct {
	mu         sync.Mutex
	containers map[string]warpd.Container
	subs       []chan Event
	closed     bool
}

func NewFake() *Fake {
	return &Fake{containers: make(map[string]warpd.Container)}
}

func (f *Fake) Put(c warpd.Container) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers[c.ID] = c
}

func (f *Fake) Delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.containers, id)
}

func (f *Fake) ListContainers(ctx context.Context) ([]warpd.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]warpd.Container, 0, len(f.containers))
	for _, c := range f.containers {
		out = append(out, c)
	}
	return out, nil
}

func (f *Fake) Inspect(ctx context.Context, id string) (warpd.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return warpd.Container{}, fmt.Errorf("container %s: not found", id)
	}
	return c, nil
}

func (f *Fake) Events(ctx context.Context) (<-chan Event, <-chan error) {
	ch := make(chan Event, 16)
	errCh := make(chan error, 1)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		errCh <- ctx.Err()
	}()
	return ch, errCh
}

// Emit delivers ev to every active subscriber, simulating a runtime event.
func (f *Fake) Emit(ev Event) {
	f.mu.Lock()
	subs := append([]chan Event{}, f.subs...)
	f.mu.Unlock()
	for _, ch := range subs {
		ch <- ev
	}
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
