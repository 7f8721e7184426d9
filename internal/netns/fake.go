package netns

// FakeProvider hands out no-op handles, optionally simulating a vanished
// container by container id.
type FakeProvider struct {
	GoneContainerIDs map[string]bool
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{GoneContainerIDs: make(map[string]bool)}
}

type fakeHandle struct {
	containerID string
}

func (fakeHandle) Close() error { return nil }

func (p *FakeProvider) Open(containerID string, pid int) (Handle, error) {
	if p.GoneContainerIDs[containerID] {
		return nil, &GoneError{ContainerID: containerID, Err: errGoneFake}
	}
	return fakeHandle{containerID: containerID}, nil
}

// FakeContainerID extracts the container id a FakeProvider opened h for,
// letting a test's ProgrammerFactory route to a per-container Fake
// Programmer the same way NetlinkHandle lets the real factory reach the
// namespace-scoped netlink.Handle.
func FakeContainerID(h Handle) (string, bool) {
	fh, ok := h.(fakeHandle)
	return fh.containerID, ok
}

var errGoneFake = fakeError("container vanished")

type fakeError string

func (e fakeError) Error() string { return string(e) }
