// Package gc reclaims numbered directories that are no longer needed.
//
// A pass lists the "<prefix><N>" siblings under a root, keeps the newest
// keep of them unconditionally and deletes each older one that
// [EnsureDeletable] approves. Deletion is best-effort: every failure is
// logged and counted, never returned, and the directory simply becomes a
// candidate again on the next pass. Any number of processes may run passes
// against the same root concurrently.
package gc

import (
	"io/fs"
	"os"
	"time"

	"github.com/Iron-Ham/basetemp/internal/cleanuplock"
	"github.com/Iron-Ham/basetemp/internal/errors"
)

// EnsureDeletable decides whether dir may be deleted.
//
// A directory without a lock marker is deletable. A directory whose marker
// was last modified strictly before deadBefore is deletable too: its owner is
// presumed gone. Anything else, including a marker that exists but cannot be
// inspected, is not deletable.
//
// The threshold is always the caller's, typically "now minus a grace
// period". EnsureDeletable does not touch the filesystem beyond a stat.
func EnsureDeletable(dir string, deadBefore time.Time) bool {
	info, err := os.Lstat(cleanuplock.Path(dir))
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	return info.ModTime().Before(deadBefore)
}
