//go:build linux

package netns

import (
	"errors"
	"fmt"
	"os"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// LinuxProvider opens /proc/<pid>/ns/net and wraps it in a netlink.Handle
// bound to that namespace via NewHandleAt. Unlike netns.Set, this never
// touches the calling goroutine's own namespace — the handle's netlink
// socket is opened once, inside the target namespace, via a setns dance
// internal to NewHandleAt, and every subsequent call goes through that
// same socket. The only requirement this imposes on callers is pinning
// the OS thread for the handle's lifetime (see internal/reconcile's
// runInNamespace), since the setns-and-restore dance is thread-local.
type LinuxProvider struct{}

func NewLinuxProvider() *LinuxProvider { return &LinuxProvider{} }

type linuxHandle struct {
	ns *netlink.Handle
	fd netns.NsHandle
}

func (h *linuxHandle) Close() error {
	h.ns.Delete()
	return h.fd.Close()
}

// Netlink returns the namespace-scoped netlink handle for route.NewNetlinkProgrammer.
func (h *linuxHandle) Netlink() *netlink.Handle {
	return h.ns
}

func (p *LinuxProvider) Open(containerID string, pid int) (Handle, error) {
	path := fmt.Sprintf("/proc/%d/ns/net", pid)
	fd, err := netns.GetFromPath(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &GoneError{ContainerID: containerID, Err: err}
		}
		return nil, fmt.Errorf("open namespace for container %s: %w", containerID, err)
	}

	h, err := netlink.NewHandleAt(fd)
	if err != nil {
		_ = fd.Close()
		return nil, fmt.Errorf("bind netlink handle for container %s: %w", containerID, err)
	}

	return &linuxHandle{ns: h, fd: fd}, nil
}

// NetlinkHandle extracts the namespace-scoped netlink handle from h,
// returning false if h was not produced by LinuxProvider.
func NetlinkHandle(h Handle) (*netlink.Handle, bool) {
	lh, ok := h.(*linuxHandle)
	if !ok {
		return nil, false
	}
	return lh.ns, true
}
