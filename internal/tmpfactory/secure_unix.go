//go:build unix

package tmpfactory

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// secureRoot refuses a root owned by another user and strips group and other
// permission bits from one we own, since sibling directories may hold
// anything a run writes.
func secureRoot(root string) error {
	var st unix.Stat_t
	if err := unix.Stat(root, &st); err != nil {
		return fmt.Errorf("failed to stat root %s: %w", root, err)
	}
	if int(st.Uid) != unix.Getuid() {
		return fmt.Errorf("root %s is not owned by the current user", root)
	}
	if mode := uint32(st.Mode) & 0o777; mode&0o077 != 0 {
		if err := unix.Chmod(root, mode&^0o077); err != nil {
			return fmt.Errorf("failed to restrict permissions on root %s: %w", root, err)
		}
	}
	return nil
}
