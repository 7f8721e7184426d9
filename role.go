package warpd

// Role is the classification assigned to a Container by the Classifier.
// It is a closed sum of RoleWarp, RoleTarget, and RoleIgnored — the
// unexported marker method keeps the set from growing outside this
// package, the same way MachineEventKind closes over its constants in
// other daemons in this lineage.
type Role interface {
	roleKind() roleKind
}

type roleKind uint8

const (
	roleKindIgnored roleKind = iota
	roleKindWarp
	roleKindTarget
)

// RoleWarp marks a container as a next-hop candidate. PreferredNetwork is
// the network name taken from the configured network-preference label; it
// is empty when the container carries no such label.
type RoleWarp struct {
	PreferredNetwork string
}

func (RoleWarp) roleKind() roleKind { return roleKindWarp }

// RoleTarget marks a container whose egress should be routed via a warp
// peer. WarpSelector is the warp container name this target should bind to.
type RoleTarget struct {
	WarpSelector string
}

func (RoleTarget) roleKind() roleKind { return roleKindTarget }

// RoleIgnored marks a container the daemon takes no action on.
type RoleIgnored struct{}

func (RoleIgnored) roleKind() roleKind { return roleKindIgnored }

// IsWarp reports whether role is a RoleWarp and returns it.
func IsWarp(r Role) (RoleWarp, bool) {
	w, ok := r.(RoleWarp)
	return w, ok
}

// IsTarget reports whether role is a RoleTarget and returns it.
func IsTarget(r Role) (RoleTarget, bool) {
	t, ok := r.(RoleTarget)
	return t, ok
}

// IsIgnored reports whether role is RoleIgnored.
func IsIgnored(r Role) bool {
	_, ok := r.(RoleIgnored)
	return ok
}
