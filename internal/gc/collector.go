package gc

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/basetemp/internal/errors"
	"github.com/Iron-Ham/basetemp/internal/logging"
	"github.com/Iron-Ham/basetemp/internal/numdir"
)

// GarbagePrefix names directories that a pass has renamed out of the numbered
// sequence and is in the middle of removing.
const GarbagePrefix = "garbage-"

// Action is what a pass does with one numbered directory.
type Action int

const (
	// ActionKeep retains a directory inside the keep window.
	ActionKeep Action = iota
	// ActionLocked retains an older directory whose lock is still live.
	ActionLocked
	// ActionDelete removes an older directory.
	ActionDelete
)

// String returns the action's display name.
func (a Action) String() string {
	switch a {
	case ActionKeep:
		return "keep"
	case ActionLocked:
		return "locked"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Decision pairs a numbered directory with the action a pass would take.
type Decision struct {
	Dir    *numdir.Dir
	Action Action
}

// Result summarizes a collection pass.
type Result struct {
	// Scanned is the number of numbered directories found.
	Scanned int
	// Kept were inside the keep window.
	Kept int
	// Locked were outside the keep window but still locked.
	Locked int
	// Removed were deleted.
	Removed int
	// Vanished disappeared before this pass could remove them, usually
	// because a concurrent pass got there first.
	Vanished int
	// Failed could not be removed; they are retried by the next pass.
	Failed int
	// GarbageSwept counts leftover garbage directories removed.
	GarbageSwept int
	// Errors describes each failure.
	Errors []string
}

// Collector runs garbage collection passes. The zero value is usable.
type Collector struct {
	logger  *logging.Logger
	metrics *Metrics

	now       func() time.Time
	rename    func(oldpath, newpath string) error
	removeAll func(path string) error
}

// NewCollector creates a Collector. Both logger and metrics may be nil.
func NewCollector(logger *logging.Logger, metrics *Metrics) *Collector {
	return &Collector{
		logger:  logger,
		metrics: metrics,
	}
}

// Cleanup runs a pass with no logging and no metrics.
func Cleanup(root, prefix string, keep int, deadBefore time.Time) Result {
	return (&Collector{}).Cleanup(root, prefix, keep, deadBefore)
}

// Plan lists the numbered directories under root and decides what a pass
// with the same arguments would do to each, without changing anything. The
// decisions are ordered newest first. A negative keep is treated as zero.
func (c *Collector) Plan(root, prefix string, keep int, deadBefore time.Time) ([]Decision, error) {
	dirs, err := numdir.List(root, prefix)
	if err != nil {
		return nil, err
	}

	keep = max(keep, 0)
	decisions := make([]Decision, 0, len(dirs))
	for i, d := range dirs {
		action := ActionKeep
		if i >= keep {
			if EnsureDeletable(d.Path, deadBefore) {
				action = ActionDelete
			} else {
				action = ActionLocked
			}
		}
		decisions = append(decisions, Decision{Dir: d, Action: action})
	}
	return decisions, nil
}

// Cleanup keeps the keep highest-numbered "<prefix><N>" directories under
// root and removes every older one whose lock is absent or was last touched
// before deadBefore. It then sweeps garbage left behind by interrupted
// passes and drops a dangling "current" link.
//
// Cleanup never fails. Problems are logged, counted in the Result and left
// for the next pass.
func (c *Collector) Cleanup(root, prefix string, keep int, deadBefore time.Time) Result {
	now := c.clock()
	start := now()
	log := c.logger.WithRoot(root).WithPrefix(prefix)

	var res Result
	decisions, err := c.Plan(root, prefix, keep, deadBefore)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("garbage collection could not list root", "error", err.Error())
			res.Errors = append(res.Errors, err.Error())
		}
		c.finish(log, res, start, now())
		return res
	}

	res.Scanned = len(decisions)
	for _, d := range decisions {
		switch d.Action {
		case ActionKeep:
			res.Kept++
		case ActionLocked:
			res.Locked++
			log.Debug("skipping locked directory", "dir", d.Dir.Path)
		case ActionDelete:
			c.remove(log, root, d.Dir.Path, &res)
		}
	}

	c.sweepGarbage(log, root, deadBefore, &res)
	pruneCurrentLink(root, prefix)

	c.finish(log, res, start, now())
	return res
}

// remove moves path out of the numbered sequence and deletes it. The rename
// is atomic, so when passes race only one of them claims the directory and a
// half-removed tree never looks like a numbered sibling.
func (c *Collector) remove(log *logging.Logger, root, path string, res *Result) {
	rename := c.rename
	if rename == nil {
		rename = os.Rename
	}

	garbage := filepath.Join(root, GarbagePrefix+uuid.NewString())
	if err := rename(path, garbage); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.Vanished++
			log.Debug("directory vanished before removal", "dir", path)
			return
		}
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", path, err))
		log.Warn("failed to claim directory for removal", "dir", path, "error", err.Error())
		return
	}

	if err := c.removeTree(garbage); err != nil {
		if _, statErr := os.Lstat(garbage); errors.Is(statErr, fs.ErrNotExist) {
			// A concurrent sweep finished the removal.
			res.Vanished++
			log.Debug("garbage removed by another pass", "dir", path, "garbage", garbage)
			return
		}
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", path, err))
		log.Warn("failed to remove directory", "dir", path, "garbage", garbage, "error", err.Error())
		return
	}

	res.Removed++
	log.Info("removed numbered directory", "dir", path)
}

// IsGarbageName reports whether name is one remove would produce:
// GarbagePrefix followed by a UUID. Such a name never parses as a numbered
// directory, since a UUID is not a plain decimal.
func IsGarbageName(name string) bool {
	suffix, ok := strings.CutPrefix(name, GarbagePrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(suffix)
	return err == nil && len(suffix) == 36
}

// sweepGarbage removes garbage directories left by passes that were
// interrupted between rename and removal. Only names produced by remove are
// touched, so numbered directories of any prefix are left alone.
func (c *Collector) sweepGarbage(log *logging.Logger, root string, deadBefore time.Time, res *Result) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() || !IsGarbageName(entry.Name()) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if !EnsureDeletable(path, deadBefore) {
			continue
		}
		if err := c.removeTree(path); err != nil {
			log.Debug("failed to sweep garbage", "dir", path, "error", err.Error())
			continue
		}
		res.GarbageSwept++
		log.Debug("swept garbage directory", "dir", path)
	}
}

func (c *Collector) removeTree(path string) error {
	removeAll := c.removeAll
	if removeAll == nil {
		removeAll = os.RemoveAll
	}
	return removeAll(path)
}

func (c *Collector) clock() func() time.Time {
	if c.now != nil {
		return c.now
	}
	return time.Now
}

func (c *Collector) finish(log *logging.Logger, res Result, start, end time.Time) {
	c.metrics.RecordRun(res, end.Sub(start), end)
	log.Debug("garbage collection finished",
		"scanned", res.Scanned,
		"kept", res.Kept,
		"locked", res.Locked,
		"removed", res.Removed,
		"failed", res.Failed,
		"garbage_swept", res.GarbageSwept,
	)
}

// pruneCurrentLink removes the "current" link when its target is gone.
func pruneCurrentLink(root, prefix string) {
	link := filepath.Join(root, numdir.CurrentLinkName(prefix))
	info, err := os.Lstat(link)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return
	}
	if _, err := os.Stat(link); errors.Is(err, fs.ErrNotExist) {
		_ = os.Remove(link)
	}
}
