//go:build !(linux || darwin || freebsd)

package device

import "os"

// lockFile is a no-op where flock is unavailable.
func lockFile(_ *os.File, _ bool) error {
	return nil
}
