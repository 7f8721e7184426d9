//go:build !linux

package startupcheck

import "fmt"

func hasNetAdmin() (bool, error) {
	return false, fmt.Errorf("capability check is only implemented on linux")
}
