package tmpfactory

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/basetemp/internal/cleanuplock"
	"github.com/Iron-Ham/basetemp/internal/errors"
	"github.com/Iron-Ham/basetemp/internal/numdir"
	"github.com/Iron-Ham/basetemp/internal/registrar"
	"github.com/Iron-Ham/basetemp/internal/testutil"
)

// realDir resolves symlinks in a test directory, which on macOS lives under
// a symlinked /var.
func realDir(t *testing.T, dir string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("EvalSymlinks(%s) error = %v", dir, err)
	}
	return resolved
}

func TestNew_Defaults(t *testing.T) {
	f := New(Options{Keep: -1})
	opts := f.Options()

	if opts.Prefix != DefaultPrefix {
		t.Errorf("Prefix = %q, want %q", opts.Prefix, DefaultPrefix)
	}
	if opts.LockTimeout != DefaultLockTimeout {
		t.Errorf("LockTimeout = %v, want %v", opts.LockTimeout, DefaultLockTimeout)
	}
	if opts.Keep != 0 {
		t.Errorf("Keep = %d, want 0", opts.Keep)
	}
	if opts.Root != DefaultRoot() {
		t.Errorf("Root = %q, want %q", opts.Root, DefaultRoot())
	}
	if !strings.HasPrefix(filepath.Base(opts.Root), "basetemp-of-") {
		t.Errorf("default root %q is not per user", opts.Root)
	}
}

func TestBaseTemp_Numbered(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	reg := registrar.New(registrar.CurrentToken(), nil)
	f := New(Options{Root: root, Prefix: "run-", Keep: 3, Registrar: reg})

	base, err := f.BaseTemp()
	if err != nil {
		t.Fatalf("BaseTemp() error = %v", err)
	}

	if got, want := base, filepath.Join(realDir(t, root), "run-0"); got != want {
		t.Errorf("BaseTemp() = %q, want %q", got, want)
	}
	if _, err := os.Stat(cleanuplock.Path(base)); err != nil {
		t.Errorf("base temp is not locked: %v", err)
	}
	if f.Lock() == nil || f.Lock().Dir == "" {
		t.Error("Lock() = nil after numbered allocation")
	}
	if reg.Pending() != 1 {
		t.Errorf("Pending() = %d, want lock removal registered", reg.Pending())
	}

	again, err := f.BaseTemp()
	if err != nil {
		t.Fatalf("second BaseTemp() error = %v", err)
	}
	if again != base {
		t.Errorf("BaseTemp() not cached: %q then %q", base, again)
	}

	reg.RunAll(registrar.CurrentToken())
	if _, err := os.Stat(cleanuplock.Path(base)); !os.IsNotExist(err) {
		t.Errorf("lock survived RunAll: %v", err)
	}
}

func TestBaseTemp_RestrictsRootPermissions(t *testing.T) {
	testutil.SkipOnWindows(t)

	root := filepath.Join(t.TempDir(), "root")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(root, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := New(Options{Root: root}).BaseTemp(); err != nil {
		t.Fatalf("BaseTemp() error = %v", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("root mode = %o, want group and other bits cleared", perm)
	}
}

func TestBaseTemp_CollectsOldRuns(t *testing.T) {
	root := realDir(t, t.TempDir())
	testutil.MakeNumbered(t, root, "run-", 5)

	base, err := New(Options{Root: root, Keep: 2}).BaseTemp()
	if err != nil {
		t.Fatalf("BaseTemp() error = %v", err)
	}
	if filepath.Base(base) != "run-5" {
		t.Errorf("BaseTemp() = %q, want run-5", base)
	}

	dirs, err := numdir.List(root, "run-")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, d := range dirs {
		got = append(got, d.Name())
	}
	if want := []string{"run-5", "run-4"}; !slices.Equal(got, want) {
		t.Errorf("remaining = %v, want %v", got, want)
	}
}

func TestBaseTemp_LiveLockSurvivesCollection(t *testing.T) {
	root := realDir(t, t.TempDir())
	paths := testutil.MakeNumbered(t, root, "run-", 3)

	// run-0 was locked recently by another run; run-1 by a run long gone.
	if _, err := cleanuplock.Create(paths[0]); err != nil {
		t.Fatal(err)
	}
	stale, err := cleanuplock.Create(paths[1])
	if err != nil {
		t.Fatal(err)
	}
	testutil.AgeFile(t, stale.Path, 10*24*time.Hour)

	if _, err := New(Options{Root: root, Keep: 0, LockTimeout: time.Hour}).BaseTemp(); err != nil {
		t.Fatalf("BaseTemp() error = %v", err)
	}

	if _, err := os.Stat(paths[0]); err != nil {
		t.Errorf("directory with live lock removed: %v", err)
	}
	if _, err := os.Stat(paths[1]); !os.IsNotExist(err) {
		t.Errorf("directory with stale lock kept: %v", err)
	}
	if _, err := os.Stat(paths[2]); !os.IsNotExist(err) {
		t.Errorf("unlocked directory kept: %v", err)
	}
}

func TestBaseTemp_Given(t *testing.T) {
	given := filepath.Join(t.TempDir(), "given")
	testutil.WriteFile(t, given, "stale/file.txt", "left over")

	f := New(Options{Given: given, Root: filepath.Join(t.TempDir(), "unused")})
	base, err := f.BaseTemp()
	if err != nil {
		t.Fatalf("BaseTemp() error = %v", err)
	}

	if base != realDir(t, given) {
		t.Errorf("BaseTemp() = %q, want %q", base, given)
	}
	if names := testutil.Names(t, base); len(names) != 0 {
		t.Errorf("given base temp not emptied: %v", names)
	}
	if f.Lock() != nil {
		t.Error("given base temp must not be locked")
	}
	if _, err := os.Stat(f.Options().Root); !os.IsNotExist(err) {
		t.Error("root created although a base temp was given")
	}
}

func TestBaseTemp_RootIsFile(t *testing.T) {
	root := testutil.WriteFile(t, t.TempDir(), "root", "not a directory")

	if _, err := New(Options{Root: root}).BaseTemp(); err == nil {
		t.Fatal("BaseTemp() error = nil, want error")
	}
}

func TestMakeNumberedDirWithCleanup(t *testing.T) {
	root := realDir(t, t.TempDir())
	reg := registrar.New("me", nil)
	f := New(Options{Registrar: reg})

	var dirs []*numdir.Dir
	for i := 0; i < 4; i++ {
		d, err := f.MakeNumberedDirWithCleanup(root, "job-", 10, time.Hour)
		if err != nil {
			t.Fatalf("MakeNumberedDirWithCleanup() #%d error = %v", i, err)
		}
		dirs = append(dirs, d)
	}

	for i, d := range dirs {
		if d.Num != i {
			t.Errorf("dir %d Num = %d", i, d.Num)
		}
		if _, err := os.Stat(cleanuplock.Path(d.Path)); err != nil {
			t.Errorf("%s not locked: %v", d.Name(), err)
		}
	}
	if got := len(reg.Entries()); got != 4 {
		t.Errorf("registrations = %d, want 4", got)
	}
}

func TestMakeNumberedDirWithCleanup_MissingRoot(t *testing.T) {
	f := New(Options{})
	_, err := f.MakeNumberedDirWithCleanup(filepath.Join(t.TempDir(), "missing"), "x-", 1, time.Hour)
	if err == nil {
		t.Fatal("MakeNumberedDirWithCleanup() error = nil, want error")
	}
	var allocErr *errors.AllocationError
	if !errors.As(err, &allocErr) {
		t.Errorf("error = %v, want *AllocationError", err)
	}
}

func TestMktemp(t *testing.T) {
	given := filepath.Join(t.TempDir(), "base")
	f := New(Options{Given: given})

	numbered := []string{}
	for i := 0; i < 3; i++ {
		p, err := f.Mktemp("world-", true)
		if err != nil {
			t.Fatalf("Mktemp(numbered) error = %v", err)
		}
		numbered = append(numbered, filepath.Base(p))
	}
	if want := []string{"world-0", "world-1", "world-2"}; !slices.Equal(numbered, want) {
		t.Errorf("numbered = %v, want %v", numbered, want)
	}

	p, err := f.Mktemp("exact", false)
	if err != nil {
		t.Fatalf("Mktemp(exact) error = %v", err)
	}
	if filepath.Base(p) != "exact" {
		t.Errorf("Mktemp(exact) = %q", p)
	}
	if _, err := f.Mktemp("exact", false); err == nil {
		t.Error("Mktemp(exact) twice error = nil, want error")
	}
}

func TestMktemp_InvalidBasename(t *testing.T) {
	f := New(Options{Given: filepath.Join(t.TempDir(), "base")})

	tests := []string{
		"",
		".",
		"..",
		"../escape",
		"nested/name",
		filepath.Join(t.TempDir(), "abs"),
	}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.Mktemp(name, false)
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("Mktemp(%q) error = %v, want ErrInvalidInput", name, err)
			}
		})
	}

	if _, err := os.Stat(f.Options().Given); !os.IsNotExist(err) {
		t.Error("invalid basename must be rejected before creating the base temp")
	}
}
