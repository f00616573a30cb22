//go:build unix

package cleanuplock

import "golang.org/x/sys/unix"

// processAlive sends signal 0, which checks for existence without affecting
// the process. EPERM means it exists but belongs to someone else.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
