//go:build !linux

package main

import (
	"fmt"
	"runtime"

	"warpd/internal/netns"
	"warpd/internal/reconcile"
	"warpd/internal/route"
)

// stubNamespaceProvider reports every Open call as unsupported: the
// routing-socket interface this daemon programs (RTNETLINK) has no
// portable equivalent, so non-Linux builds only exist to compile warpd's
// CLI scaffolding and tests, never to run the daemon.
type stubNamespaceProvider struct{}

func (stubNamespaceProvider) Open(containerID string, pid int) (netns.Handle, error) {
	return nil, fmt.Errorf("namespace entry is not supported on %s", runtime.GOOS)
}

func newNamespaceProvider() netns.Provider {
	return stubNamespaceProvider{}
}

func newProgrammerFactory() reconcile.ProgrammerFactory {
	return func(netns.Handle) route.Programmer {
		panic("warpd: route programming is not supported on " + runtime.GOOS)
	}
}
