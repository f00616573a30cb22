// Package cleanuplock implements the advisory marker file that says "an owner
// considers this directory alive".
//
// A lock is a single file named [LockFileName] inside a numbered directory,
// created with O_EXCL so at most one exists at a time. Its content is the
// creating process's PID for diagnostics only; garbage collection looks at
// nothing but the marker's presence and modification time.
package cleanuplock

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Iron-Ham/basetemp/internal/errors"
)

// LockFileName is the name of the lock marker within a numbered directory.
const LockFileName = ".lock"

// Handle refers to a lock marker created by this process.
type Handle struct {
	// Dir is the directory the marker claims.
	Dir string
	// Path is the marker file itself.
	Path string
	// Created is the marker's modification time right after creation. It is
	// taken from the filesystem, not the process clock, so it is comparable
	// with timestamps other processes observe.
	Created time.Time
}

// Path returns the lock marker path for dir.
func Path(dir string) string {
	return filepath.Join(dir, LockFileName)
}

// Create claims dir by exclusively creating its lock marker.
//
// If a marker already exists the result is a *errors.ResourceBusyError
// ("cannot create lockfile in <dir>") matching errors.ErrResourceBusy. Other
// failures are returned wrapped.
func Create(dir string) (*Handle, error) {
	lockPath := Path(dir)

	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, errors.NewResourceBusyError(dir).WithCause(err)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	_, writeErr := fmt.Fprintf(f, "%d\n", os.Getpid())
	closeErr := f.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	info, err := os.Stat(lockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat lock file: %w", err)
	}

	return &Handle{
		Dir:     dir,
		Path:    lockPath,
		Created: info.ModTime(),
	}, nil
}

// Release removes the lock marker. It is safe to call repeatedly and on a
// marker that is already gone.
func Release(h *Handle) error {
	if h == nil || h.Path == "" {
		return nil
	}
	if err := os.Remove(h.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Release removes the lock marker; see the package-level Release.
func (h *Handle) Release() error {
	return Release(h)
}

// Info describes a lock marker found on disk.
type Info struct {
	Path string
	// ModTime is the marker's modification time, the only liveness signal.
	ModTime time.Time
	// PID is the process that wrote the marker, or 0 if the content could not
	// be parsed.
	PID int
}

// Read inspects the lock marker in dir. It returns an error matching
// fs.ErrNotExist when dir holds no marker.
func Read(dir string) (*Info, error) {
	lockPath := Path(dir)

	info, err := os.Stat(lockPath)
	if err != nil {
		return nil, err
	}

	li := &Info{Path: lockPath, ModTime: info.ModTime()}
	if data, err := os.ReadFile(lockPath); err == nil {
		if pid, err := strconv.Atoi(string(bytes.TrimSpace(data))); err == nil && pid > 0 {
			li.PID = pid
		}
	}
	return li, nil
}

// OwnerAlive reports whether the process recorded in the marker still exists
// on this host. It is a diagnostic only: PIDs are reused and may belong to
// another machine sharing the filesystem, so deletability never depends on it.
func (i *Info) OwnerAlive() bool {
	if i == nil || i.PID <= 0 {
		return false
	}
	return processAlive(i.PID)
}
