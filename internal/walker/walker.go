// Package walker enumerates regular files under a set of root
// directories, honoring an exclusion set and tolerating per-directory
// errors without aborting the whole walk.
package walker

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jonathanrlemos/ezbackup/internal/log"
)

// Entry describes one file the walker yields.
type Entry struct {
	AbsPath string
	Info    fs.FileInfo
}

// ErrorHook is called for a directory that could not be opened or read;
// the walk continues with the next sibling regardless of the hook's
// behavior.
type ErrorHook func(path string, err error)

// Walker enumerates files under Roots, skipping any directory whose
// absolute path is byte-exact present in Exclude, and any directory whose
// last path component is "lost+found".
type Walker struct {
	Roots   []string
	Exclude map[string]struct{}
	OnError ErrorHook
}

// New builds a Walker over roots, excluding the given absolute directory
// paths.
func New(roots []string, exclude []string) *Walker {
	set := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		set[e] = struct{}{}
	}
	return &Walker{Roots: roots, Exclude: set}
}

// Walk invokes yield for every regular file found under w.Roots, in
// depth-first order per root. Sibling order is whatever the OS/filepath
// layer returns; callers needing a stable order should sort downstream
// (the DigestIndex external sort reimposes order).
//
// Symlinks are yielded as their own entries and are never followed into
// their targets, which avoids cycles entirely.
func (w *Walker) Walk(yield func(Entry) error) error {
	for _, root := range w.Roots {
		if err := w.walkRoot(root, yield); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) walkRoot(root string, yield func(Entry) error) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		w.reportError(root, err)
		return nil
	}

	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.reportError(path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != abs {
				if _, excluded := w.Exclude[path]; excluded {
					return filepath.SkipDir
				}
				if filepath.Base(path) == "lost+found" {
					return filepath.SkipDir
				}
			}
			return nil
		}

		info, ierr := d.Info()
		if ierr != nil {
			w.reportError(path, ierr)
			return nil
		}

		// Symlinks and other non-regular entries are yielded as leaves,
		// not descended into — WalkDir already never follows them.
		if !info.Mode().IsRegular() && info.Mode()&os.ModeSymlink == 0 {
			return nil
		}

		return yield(Entry{AbsPath: path, Info: info})
	})
}

func (w *Walker) reportError(path string, err error) {
	log.Warn("walk error", log.String("path", path), log.Err(err))
	if w.OnError != nil {
		w.OnError(path, err)
	}
}
