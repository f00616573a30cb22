// Package testutil provides testing utilities for basetemp tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"testing"
	"time"
)

// MakeNumbered creates "<root>/<prefix>0" through "<root>/<prefix>{n-1}"
// directly with os.Mkdir and returns their paths in creation order.
func MakeNumbered(t *testing.T, root, prefix string, n int) []string {
	t.Helper()

	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p := filepath.Join(root, prefix+strconv.Itoa(i))
		if err := os.Mkdir(p, 0o700); err != nil {
			t.Fatalf("failed to create %s: %v", p, err)
		}
		paths = append(paths, p)
	}
	return paths
}

// AgeFile moves the access and modification times of path back by age.
func AgeFile(t *testing.T, path string, age time.Duration) time.Time {
	t.Helper()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat %s: %v", path, err)
	}
	aged := info.ModTime().Add(-age)
	if err := os.Chtimes(path, aged, aged); err != nil {
		t.Fatalf("failed to age %s: %v", path, err)
	}
	return aged
}

// Names returns the sorted base names of every entry directly under dir.
func Names(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names
}

// WriteFile creates a file with content under dir, creating parents.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()

	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("failed to create parent of %s: %v", p, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", p, err)
	}
	return p
}

// SkipOnWindows skips tests that depend on POSIX semantics (symlinks without
// privileges, permission bits, signal 0 probes).
func SkipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("not supported on windows")
	}
}

// SkipIfRoot skips tests that rely on permission denials, which root bypasses.
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed when running as root")
	}
}
