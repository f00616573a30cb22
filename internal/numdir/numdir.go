// Package numdir allocates uniquely numbered sibling directories
// ("<prefix><N>") under a shared root.
//
// Many independent processes may allocate under the same root and prefix at
// once. There is no coordinator: each allocation lists the existing siblings,
// picks the next number and claims it with an exclusive mkdir, retrying on the
// next number when another process wins the race. Successful allocations never
// share a sequence number; the numbering may have gaps where older
// directories were garbage collected.
package numdir

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Dir is a numbered directory "<Root>/<Prefix><Num>".
type Dir struct {
	Root   string
	Prefix string
	Num    int
	Path   string
	// ModTime is the directory's own modification time as seen when it was
	// listed or created.
	ModTime time.Time
}

// Name returns the directory's base name.
func (d *Dir) Name() string {
	return d.Prefix + strconv.Itoa(d.Num)
}

// ParseNum extracts N from a name of the form "<prefix><N>". Only canonical
// non-negative decimal suffixes are accepted; signs, spaces, leading zeros
// and empty suffixes are rejected, so each N has exactly one name.
func ParseNum(name, prefix string) (int, bool) {
	suffix, ok := strings.CutPrefix(name, prefix)
	if !ok || suffix == "" {
		return 0, false
	}
	if len(suffix) > 1 && suffix[0] == '0' {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return n, true
}

// List returns the numbered directories under root that match prefix,
// ordered by sequence number, highest (newest) first. Entries that are not
// directories are skipped.
func List(root, prefix string) ([]*Dir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var dirs []*Dir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, ok := ParseNum(entry.Name(), prefix)
		if !ok {
			continue
		}

		d := &Dir{
			Root:   root,
			Prefix: prefix,
			Num:    n,
			Path:   filepath.Join(root, entry.Name()),
		}
		if info, err := entry.Info(); err == nil {
			d.ModTime = info.ModTime()
		}
		dirs = append(dirs, d)
	}

	slices.SortFunc(dirs, func(a, b *Dir) int {
		return b.Num - a.Num
	})
	return dirs, nil
}

// maxNum returns the highest sequence number of any entry under root that
// matches prefix, or -1 if there is none. Non-directory entries count too:
// their names are just as unavailable to mkdir.
func maxNum(root, prefix string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return -1, err
	}

	highest := -1
	for _, entry := range entries {
		if n, ok := ParseNum(entry.Name(), prefix); ok && n > highest {
			highest = n
		}
	}
	return highest, nil
}

// CurrentLinkName is the name of the convenience symlink pointing at the most
// recently allocated directory for prefix.
func CurrentLinkName(prefix string) string {
	return prefix + "current"
}

// UpdateCurrentLink points "<root>/<prefix>current" at target. The link is a
// convenience for humans; failures (including platforms without symlink
// support) are ignored.
func UpdateCurrentLink(root, prefix, target string) {
	link := filepath.Join(root, CurrentLinkName(prefix))
	if info, err := os.Lstat(link); err == nil {
		if info.Mode()&fs.ModeSymlink == 0 {
			return
		}
		if err := os.Remove(link); err != nil {
			return
		}
	}
	_ = os.Symlink(filepath.Base(target), link)
}
