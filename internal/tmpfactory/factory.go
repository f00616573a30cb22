// Package tmpfactory hands out the per-run base temporary directory and
// fresh directories beneath it.
//
// A Factory either wipes and recreates an explicitly given base path, or
// allocates the next numbered directory under a shared root, locks it for
// the lifetime of the process and garbage collects older runs. Every path it
// returns is fully symlink-resolved.
package tmpfactory

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/basetemp/internal/cleanuplock"
	"github.com/Iron-Ham/basetemp/internal/errors"
	"github.com/Iron-Ham/basetemp/internal/gc"
	"github.com/Iron-Ham/basetemp/internal/logging"
	"github.com/Iron-Ham/basetemp/internal/numdir"
	"github.com/Iron-Ham/basetemp/internal/registrar"
)

// Defaults applied by New to zero-valued Options.
const (
	DefaultPrefix      = "run-"
	DefaultKeep        = 3
	DefaultLockTimeout = 72 * time.Hour
)

// DefaultRoot returns the root used when Options.Root is empty. It is per
// user so that ownership checks on the root cannot lock other users out.
func DefaultRoot() string {
	return filepath.Join(os.TempDir(), "basetemp-of-"+userName())
}

func userName() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, u.Username)
}

// Options configures a Factory.
type Options struct {
	// Given is an explicit base directory. When set it is removed and
	// recreated, and no numbering, locking or collection takes place.
	Given string

	// Root is where numbered base directories are allocated.
	Root string

	// Prefix names numbered base directories "<Prefix><N>".
	Prefix string

	// Keep is how many of the newest numbered directories survive collection.
	// Zero keeps none besides locked ones.
	Keep int

	// LockTimeout is how long after the newest allocation an older lock is
	// still considered live.
	LockTimeout time.Duration

	// Registrar receives lock removal for the base directory. When nil the
	// lock outlives the process and must be released by the caller through
	// Factory.Lock.
	Registrar *registrar.Registrar

	Logger  *logging.Logger
	Metrics *gc.Metrics
}

// Factory creates temporary directories for one run. It is safe for
// concurrent use.
type Factory struct {
	opts      Options
	logger    *logging.Logger
	allocator *numdir.Allocator
	collector *gc.Collector

	mu       sync.Mutex
	basetemp string
	lock     *cleanuplock.Handle
}

// New creates a Factory. Nothing touches the filesystem until BaseTemp or
// Mktemp is called.
func New(opts Options) *Factory {
	if opts.Root == "" {
		opts.Root = DefaultRoot()
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	opts.Keep = max(opts.Keep, 0)

	return &Factory{
		opts:      opts,
		logger:    opts.Logger,
		allocator: numdir.NewAllocator(opts.Logger),
		collector: gc.NewCollector(opts.Logger, opts.Metrics),
	}
}

// Options returns the effective options after defaults were applied.
func (f *Factory) Options() Options {
	return f.opts
}

// BaseTemp returns the base temporary directory for this run, creating it on
// the first call. Later calls return the same path.
func (f *Factory) BaseTemp() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.basetemp != "" {
		return f.basetemp, nil
	}

	var (
		path string
		err  error
	)
	if f.opts.Given != "" {
		path, err = f.resetGiven(f.opts.Given)
	} else {
		path, err = f.allocateNumbered()
	}
	if err != nil {
		return "", err
	}

	f.basetemp = path
	f.logger.Info("base temp directory ready", "dir", path)
	return path, nil
}

// Lock returns the lock held on the numbered base directory, or nil when
// BaseTemp has not allocated one.
func (f *Factory) Lock() *cleanuplock.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lock
}

func (f *Factory) resetGiven(given string) (string, error) {
	abs, err := filepath.Abs(given)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve base temp %s", given)
	}
	if err := os.RemoveAll(abs); err != nil {
		return "", errors.Wrapf(err, "failed to clear base temp %s", abs)
	}
	if err := os.MkdirAll(abs, numdir.DirPerm); err != nil {
		return "", errors.Wrapf(err, "failed to create base temp %s", abs)
	}
	return filepath.EvalSymlinks(abs)
}

func (f *Factory) allocateNumbered() (string, error) {
	if err := os.MkdirAll(f.opts.Root, numdir.DirPerm); err != nil {
		return "", errors.Wrapf(err, "failed to create root %s", f.opts.Root)
	}
	root, err := filepath.EvalSymlinks(f.opts.Root)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve root %s", f.opts.Root)
	}
	if err := secureRoot(root); err != nil {
		return "", err
	}

	d, h, err := f.makeNumberedDirWithCleanup(root, f.opts.Prefix, f.opts.Keep, f.opts.LockTimeout)
	if err != nil {
		return "", err
	}
	f.lock = h
	return filepath.EvalSymlinks(d.Path)
}

// MakeNumberedDirWithCleanup allocates "<root>/<prefix><N>", locks it,
// registers the lock's removal with the Factory's Registrar and then
// collects older siblings, keeping keep of them. Locks last touched more than
// lockTimeout before the new directory was created count as dead.
//
// Allocation and locking are retried together up to numdir.MaxAllocAttempts
// times; errors that retrying cannot fix are returned immediately.
func (f *Factory) MakeNumberedDirWithCleanup(root, prefix string, keep int, lockTimeout time.Duration) (*numdir.Dir, error) {
	d, _, err := f.makeNumberedDirWithCleanup(root, prefix, keep, lockTimeout)
	return d, err
}

func (f *Factory) makeNumberedDirWithCleanup(root, prefix string, keep int, lockTimeout time.Duration) (*numdir.Dir, *cleanuplock.Handle, error) {
	log := f.logger.WithRoot(root).WithPrefix(prefix)

	var lastErr error
	for attempt := 1; attempt <= numdir.MaxAllocAttempts; attempt++ {
		d, err := f.allocator.Allocate(root, prefix)
		if err != nil {
			lastErr = err
			if !errors.IsRetryable(err) {
				break
			}
			continue
		}

		h, err := cleanuplock.Create(d.Path)
		if err != nil {
			lastErr = err
			log.Debug("failed to lock new directory, retrying", "dir", d.Path, "attempt", attempt, "error", err.Error())
			if !errors.Is(err, errors.ErrResourceBusy) {
				break
			}
			continue
		}
		if f.opts.Registrar != nil {
			f.opts.Registrar.Register(h)
		}

		// Measured on the filesystem clock so hosts sharing root agree.
		created := h.Created
		if info, err := os.Stat(d.Path); err == nil {
			created = info.ModTime()
		}
		f.collector.Cleanup(root, prefix, keep, created.Add(-lockTimeout))

		return d, h, nil
	}
	return nil, nil, lastErr
}

// Mktemp creates a directory directly under the base temp directory.
//
// With numbered set the directory is "<basename><N>" with the next free N,
// otherwise it is exactly basename and must not exist yet. basename must be a
// single relative path component.
func (f *Factory) Mktemp(basename string, numbered bool) (string, error) {
	if err := validateBasename(basename); err != nil {
		return "", err
	}

	base, err := f.BaseTemp()
	if err != nil {
		return "", err
	}

	if numbered {
		d, err := f.allocator.Allocate(base, basename)
		if err != nil {
			return "", err
		}
		return d.Path, nil
	}

	path := filepath.Join(base, basename)
	if err := os.Mkdir(path, numdir.DirPerm); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", path)
	}
	f.logger.Debug("created temp directory", "dir", path)
	return path, nil
}

func validateBasename(basename string) error {
	if basename == "" || basename == "." || basename == ".." ||
		filepath.IsAbs(basename) || filepath.Base(basename) != basename {
		return fmt.Errorf("%w: %q is not a normalized and relative path", errors.ErrInvalidInput, basename)
	}
	return nil
}
