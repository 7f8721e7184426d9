// Package warpd implements a daemon that observes a container runtime's
// lifecycle events and programs kernel routes inside target containers'
// network namespaces so their egress traffic is forwarded through a
// designated peer container.
package warpd

import "net/netip"

// LifecycleState is the observed state of a Container.
type LifecycleState uint8

const (
	StateUnknown LifecycleState = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s LifecycleState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// NetworkAttachment binds a Container to a named runtime network.
type NetworkAttachment struct {
	Network string
	Address netip.Addr
	CIDR    netip.Prefix
	Gateway netip.Addr // zero value if the runtime published none
}

// HasGateway reports whether the runtime published a gateway for this attachment.
func (a NetworkAttachment) HasGateway() bool {
	return a.Gateway.IsValid()
}

// Container is the runtime's view of a single container, as consumed by the
// Classifier, Resolver, and Reconciler.
type Container struct {
	ID          string
	Name        string
	Labels      map[string]string
	Networks    []NetworkAttachment
	State       LifecycleState
	PID         int // host PID backing the container's network namespace
	NamespaceID string
}

// AttachmentByNetwork returns the attachment on the named network, if any.
func (c Container) AttachmentByNetwork(name string) (NetworkAttachment, bool) {
	for _, a := range c.Networks {
		if a.Network == name {
			return a, true
		}
	}
	return NetworkAttachment{}, false
}

// AddressesInFamily returns every address the container holds in the given family.
func (c Container) AddressesInFamily(is6 bool) []netip.Addr {
	var out []netip.Addr
	for _, a := range c.Networks {
		if !a.Address.IsValid() {
			continue
		}
		if a.Address.Is6() == is6 {
			out = append(out, a.Address)
		}
	}
	return out
}
