package numdir

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Iron-Ham/basetemp/internal/errors"
	"github.com/Iron-Ham/basetemp/internal/logging"
)

// MaxAllocAttempts bounds how many exclusive-create attempts a single
// allocation makes before giving up with an AllocationError.
const MaxAllocAttempts = 10

// DirPerm is the mode numbered directories are created with.
const DirPerm fs.FileMode = 0o700

// Allocator creates numbered directories. The zero value is usable and does
// not log.
type Allocator struct {
	logger *logging.Logger

	// mkdir is os.Mkdir outside of tests.
	mkdir func(name string, perm fs.FileMode) error
}

// NewAllocator creates an Allocator. logger may be nil.
func NewAllocator(logger *logging.Logger) *Allocator {
	return &Allocator{logger: logger}
}

// Allocate creates a fresh "<root>/<prefix><N>" directory with a sequence
// number above every existing sibling and returns it.
func Allocate(root, prefix string) (*Dir, error) {
	return (&Allocator{}).Allocate(root, prefix)
}

// Allocate creates a fresh "<root>/<prefix><N>" directory.
//
// Each attempt re-lists root and tries max(highest existing + 1, previous
// candidate + 1), so every retry targets a strictly larger number. A name
// collision (another process created the same candidate first) triggers a
// retry; any other filesystem error, such as a missing or read-only root,
// fails immediately. After MaxAllocAttempts collisions the call fails with an
// AllocationError matching errors.ErrAllocationExhausted.
func (a *Allocator) Allocate(root, prefix string) (*Dir, error) {
	log := a.logger.WithRoot(root).WithPrefix(prefix)
	mkdir := a.mkdir
	if mkdir == nil {
		mkdir = os.Mkdir
	}

	next := 0
	for attempt := 1; attempt <= MaxAllocAttempts; attempt++ {
		highest, err := maxNum(root, prefix)
		if err != nil {
			return nil, errors.NewAllocationError(root, prefix, err).WithAttempts(attempt)
		}
		if highest == math.MaxInt || next < 0 {
			err := fmt.Errorf("sequence numbers exhausted for prefix %q", prefix)
			log.Error("numbered directory allocation failed", "error", err.Error())
			return nil, errors.NewAllocationError(root, prefix, err).WithAttempts(attempt)
		}
		next = max(next, highest+1)

		path := filepath.Join(root, prefix+strconv.Itoa(next))
		err = mkdir(path, DirPerm)
		if err == nil {
			d := &Dir{Root: root, Prefix: prefix, Num: next, Path: path}
			if info, statErr := os.Stat(path); statErr == nil {
				d.ModTime = info.ModTime()
			}
			UpdateCurrentLink(root, prefix, path)
			log.Info("allocated numbered directory", "dir", path, "num", next, "attempt", attempt)
			return d, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			log.Error("numbered directory allocation failed", "candidate", path, "error", err.Error())
			return nil, errors.NewAllocationError(root, prefix, err).WithAttempts(attempt)
		}

		log.Debug("numbered directory taken, retrying", "num", next, "attempt", attempt)
		next++
	}

	log.Warn("numbered directory allocation exhausted", "attempts", MaxAllocAttempts)
	return nil, errors.NewAllocationError(root, prefix, nil).WithAttempts(MaxAllocAttempts)
}
