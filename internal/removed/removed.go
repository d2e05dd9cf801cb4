// Package removed derives the set of paths present in a prior DigestIndex
// but absent from the current one, via a linear merge walk over both
// sorted streams.
package removed

import (
	"bufio"
	"os"
	"strings"

	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
	"github.com/jonathanrlemos/ezbackup/internal/index"
)

// cursor pulls one sorted index file's records one at a time, keyed on
// path only (the hex value doesn't matter for a set difference).
type cursor struct {
	f       *os.File
	scanner *bufio.Scanner
	path    string
	done    bool
}

func openCursor(path string) (*cursor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ezerrors.NewIoError("open", path, err)
	}
	c := &cursor{f: f, scanner: bufio.NewScanner(f)}
	c.scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if err := c.advance(); err != nil {
		c.f.Close()
		return nil, err
	}
	return c, nil
}

func (c *cursor) advance() error {
	for c.scanner.Scan() {
		line := c.scanner.Text()
		if line == "" {
			continue
		}
		i := strings.IndexByte(line, 0)
		if i < 0 {
			return ezerrors.NewFormatError("digest index record", errNoSeparator{})
		}
		c.path = line[:i]
		return nil
	}
	if err := c.scanner.Err(); err != nil {
		return ezerrors.NewIoError("read", c.f.Name(), err)
	}
	c.done = true
	return nil
}

func (c *cursor) close() { c.f.Close() }

type errNoSeparator struct{}

func (errNoSeparator) Error() string { return "missing NUL separator" }

// Derive walks prior and current in sorted order and writes every path
// present in prior but absent from current to outPath, one per line, in
// sorted order. Runs in O(n+m) time, O(1) memory beyond the two cursors.
// prior may be nil, in which case outPath is created empty (nothing was
// removed, since there was nothing before this run).
func Derive(prior, current *index.Index, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return ezerrors.NewIoError("create", outPath, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	if prior == nil {
		return w.Flush()
	}

	p, err := openCursor(prior.Path())
	if err != nil {
		return err
	}
	defer p.close()

	c, err := openCursor(current.Path())
	if err != nil {
		return err
	}
	defer c.close()

	for !p.done {
		switch {
		case c.done || p.path < c.path:
			if _, werr := w.WriteString(p.path + "\n"); werr != nil {
				return ezerrors.NewIoError("write", outPath, werr)
			}
			if err := p.advance(); err != nil {
				return err
			}
		case p.path == c.path:
			if err := p.advance(); err != nil {
				return err
			}
			if err := c.advance(); err != nil {
				return err
			}
		default: // p.path > c.path
			if err := c.advance(); err != nil {
				return err
			}
		}
	}

	return w.Flush()
}
