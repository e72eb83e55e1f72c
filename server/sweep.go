package server

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Sweep removes working contexts older than minAge that a crashed process
// left under root. Several services may share root: whoever holds the lock
// sweeps and the others skip. Live contexts are never older than the
// request timeout, so minAge must be well above it.
func Sweep(root string, minAge time.Duration) (removed int, err error) {
	lock := flock.New(filepath.Join(root, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return 0, errors.Wrap(err, "acquire work dir lock")
	}
	if !locked {
		return 0, nil
	}
	defer lock.Unlock()

	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, errors.Wrap(err, "read work dir")
	}

	type dirInfo struct {
		name  string
		mtime time.Time
	}
	var dirs []dirInfo
	for _, e := range entries {
		if e.IsDir() && isContextDir(e.Name()) {
			if info, err := e.Info(); err == nil {
				dirs = append(dirs, dirInfo{e.Name(), info.ModTime()})
			}
		}
	}

	// oldest first, stop at the first one still fresh
	cutoff := time.Now().Add(-minAge)
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].mtime.Before(dirs[j].mtime) })
	for _, d := range dirs {
		if !d.mtime.Before(cutoff) {
			break
		}
		path := filepath.Join(root, d.name)
		if err := os.RemoveAll(path); err != nil {
			tlog.Printw("remove stale working context", "path", path, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}
