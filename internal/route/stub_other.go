//go:build !linux

package route

// This daemon's Route Programmer is Linux-only: the routing-socket
// interface it programs (RTNETLINK via vishvananda/netlink) has no
// portable equivalent. Non-Linux builds only compile the fake used by
// tests; see internal/route/fake.go.
