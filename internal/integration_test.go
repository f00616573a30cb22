// Package internal contains integration tests that verify the numbered
// directory packages work together across several cooperating runs sharing
// one root.
package internal

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/basetemp/internal/cleanuplock"
	"github.com/Iron-Ham/basetemp/internal/gc"
	"github.com/Iron-Ham/basetemp/internal/numdir"
	"github.com/Iron-Ham/basetemp/internal/registrar"
	"github.com/Iron-Ham/basetemp/internal/tmpfactory"
)

// run models one process: its own registrar identity and factory over a
// shared root.
type run struct {
	reg     *registrar.Registrar
	factory *tmpfactory.Factory
}

func newRun(root string, id int, keep int) *run {
	reg := registrar.New(registrar.Token("run-"+strconv.Itoa(id)), nil)
	return &run{
		reg: reg,
		factory: tmpfactory.New(tmpfactory.Options{
			Root:        root,
			Prefix:      "session-",
			Keep:        keep,
			LockTimeout: time.Hour,
			Registrar:   reg,
		}),
	}
}

// exit runs the process's exit actions as the process itself would.
func (r *run) exit() {
	r.reg.RunAll(r.reg.Identity())
}

func sessionNames(t *testing.T, root string) []string {
	t.Helper()

	dirs, err := numdir.List(root, "session-")
	if err != nil {
		t.Fatalf("List(%s) error = %v", root, err)
	}
	names := make([]string, 0, len(dirs))
	for _, d := range dirs {
		names = append(names, d.Name())
	}
	return names
}

// TestSequentialRuns walks several runs through their lifecycle and checks
// that a live run's directory is never collected while finished runs beyond
// the keep window are.
func TestSequentialRuns(t *testing.T) {
	root := t.TempDir()

	first := newRun(root, 1, 0)
	firstDir, err := first.factory.BaseTemp()
	if err != nil {
		t.Fatalf("first BaseTemp() error = %v", err)
	}

	// The first run is still alive, so its lock protects it from a run
	// that keeps nothing.
	second := newRun(root, 2, 0)
	if _, err := second.factory.BaseTemp(); err != nil {
		t.Fatalf("second BaseTemp() error = %v", err)
	}
	if got, want := sessionNames(t, root), []string{"session-1", "session-0"}; !slices.Equal(got, want) {
		t.Fatalf("after second run = %v, want %v", got, want)
	}

	first.exit()
	if _, err := os.Stat(cleanuplock.Path(firstDir)); !os.IsNotExist(err) {
		t.Fatalf("first run's lock survived its exit: %v", err)
	}

	// A forked child of the second run must not release its parent's lock.
	second.reg.RunAll(registrar.Token("forked-child"))

	third := newRun(root, 3, 1)
	if _, err := third.factory.BaseTemp(); err != nil {
		t.Fatalf("third BaseTemp() error = %v", err)
	}
	if got, want := sessionNames(t, root), []string{"session-2", "session-1"}; !slices.Equal(got, want) {
		t.Errorf("after third run = %v, want %v", got, want)
	}

	second.exit()
	third.exit()

	fourth := newRun(root, 4, 2)
	if _, err := fourth.factory.BaseTemp(); err != nil {
		t.Fatalf("fourth BaseTemp() error = %v", err)
	}
	defer fourth.exit()
	if got, want := sessionNames(t, root), []string{"session-3", "session-2"}; !slices.Equal(got, want) {
		t.Errorf("after fourth run = %v, want %v", got, want)
	}
}

// TestConcurrentRuns starts many runs at once against one root. Every run
// must get its own directory and no live directory may be collected by a
// sibling.
func TestConcurrentRuns(t *testing.T) {
	root := t.TempDir()
	const n = 8

	var (
		mu   sync.Mutex
		runs []*run
		dirs []string
	)

	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			// The keep window covers every sibling: a directory is briefly
			// unlocked between its mkdir and its lock.
			r := newRun(root, i, n)
			dir, err := r.factory.BaseTemp()
			if err != nil {
				return err
			}
			mu.Lock()
			runs = append(runs, r)
			dirs = append(dirs, dir)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent BaseTemp() error = %v", err)
	}

	slices.Sort(dirs)
	if len(slices.Compact(slices.Clone(dirs))) != n {
		t.Fatalf("runs shared directories: %v", dirs)
	}
	for _, dir := range dirs {
		if _, err := os.Stat(cleanuplock.Path(dir)); err != nil {
			t.Errorf("live directory %s lost its lock: %v", filepath.Base(dir), err)
		}
	}

	for _, r := range runs {
		r.exit()
	}

	res := gc.NewCollector(nil, nil).Cleanup(root, "session-", 2, time.Now().Add(-time.Hour))
	if res.Removed != n-2 {
		t.Errorf("Cleanup() removed %d, want %d (%+v)", res.Removed, n-2, res)
	}
	if got := sessionNames(t, root); len(got) != 2 {
		t.Errorf("remaining = %v, want 2 directories", got)
	}
}

// TestAbandonedLock covers a run that crashed without removing its lock. The
// lock keeps its directory for the lock timeout and no longer.
func TestAbandonedLock(t *testing.T) {
	root := t.TempDir()

	crashed := newRun(root, 1, 0)
	crashedDir, err := crashed.factory.BaseTemp()
	if err != nil {
		t.Fatal(err)
	}
	// The crashed run never calls exit.

	next := newRun(root, 2, 0)
	if _, err := next.factory.BaseTemp(); err != nil {
		t.Fatal(err)
	}
	next.exit()
	if _, err := os.Stat(crashedDir); err != nil {
		t.Fatalf("fresh abandoned lock did not protect its directory: %v", err)
	}

	aged := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(cleanuplock.Path(crashedDir), aged, aged); err != nil {
		t.Fatal(err)
	}

	last := newRun(root, 3, 0)
	if _, err := last.factory.BaseTemp(); err != nil {
		t.Fatal(err)
	}
	defer last.exit()
	if _, err := os.Stat(crashedDir); !os.IsNotExist(err) {
		t.Errorf("stale abandoned lock still protects %s: %v", filepath.Base(crashedDir), err)
	}
}
