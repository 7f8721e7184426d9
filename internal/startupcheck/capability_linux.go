//go:build linux

package startupcheck

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// capNetAdmin is CAP_NET_ADMIN's bit position, per capability.h.
const capNetAdmin = 12

// hasNetAdmin probes the effective capability set the kernel enforces for
// this process right now — inherited/permitted capabilities can be
// dropped before they matter — via unix.Capget, the same
// golang.org/x/sys/unix dependency internal/route's netlink_linux.go uses
// for errno classification.
func hasNetAdmin() (bool, error) {
	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	var data [2]unix.CapUserData
	if err := unix.Capget(&hdr, &data[0]); err != nil {
		return false, fmt.Errorf("capget: %w", err)
	}
	return data[0].Effective&(1<<capNetAdmin) != 0, nil
}
