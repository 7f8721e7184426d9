//go:build linux

package main

import (
	"warpd/internal/netns"
	"warpd/internal/reconcile"
	"warpd/internal/route"
)

// newNamespaceProvider returns the kernel-backed namespace provider. Only
// Linux programs routes via netlink, so every other platform gets the
// stub in platform_stub.go.
func newNamespaceProvider() netns.Provider {
	return netns.NewLinuxProvider()
}

// newProgrammerFactory binds a namespace handle to a netlink-backed
// Programmer. The type assertion only fails if newNamespaceProvider is
// ever swapped for something that doesn't hand out netns's linux handle,
// which would be a wiring bug, not a runtime condition.
func newProgrammerFactory() reconcile.ProgrammerFactory {
	return func(h netns.Handle) route.Programmer {
		nl, ok := netns.NetlinkHandle(h)
		if !ok {
			panic("warpd: programmer factory received a non-linux namespace handle")
		}
		return route.NewNetlinkProgrammer(nl)
	}
}
