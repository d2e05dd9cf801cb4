// Package index implements DigestIndex: an append-then-sort structure
// that stores (path, hex) records, sorts them via a bounded-memory
// external merge sort, and supports binary-search point lookups and
// in-order iteration over the sorted result.
//
// Record format is textual and deterministic: "<path>\0<hex>\n". Paths
// containing '\0' or '\n' are rejected at append time.
package index

import (
	"bufio"
	"container/heap"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
	"github.com/jonathanrlemos/ezbackup/internal/util"
)

// Record is one (path, hex) pair.
type Record struct {
	Path string
	Hex  string
}

func (r Record) encode() string {
	return r.Path + "\x00" + r.Hex + "\n"
}

func decodeLine(line string) (Record, error) {
	line = strings.TrimSuffix(line, "\n")
	i := strings.IndexByte(line, 0)
	if i < 0 {
		return Record{}, ezerrors.NewFormatError("digest index record", fmt.Errorf("missing NUL separator"))
	}
	return Record{Path: line[:i], Hex: line[i+1:]}, nil
}

// Writer appends (path, hex) records to an on-disk log. It is not sorted;
// call Sort to produce a queryable Index.
type Writer struct {
	f *os.File
	w *bufio.Writer
}

// NewWriter creates an append log at path.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, ezerrors.NewIoError("create", path, err)
	}
	return &Writer{f: f, w: bufio.NewWriter(f)}, nil
}

// Append writes a (path, hex) record. Paths containing '\0' or '\n' are
// rejected with FormatError.
func (w *Writer) Append(path, hex string) error {
	if strings.ContainsAny(path, "\x00\n") {
		return ezerrors.NewFormatError("digest index record", fmt.Errorf("path contains NUL or newline: %q", path))
	}
	if _, err := w.w.WriteString(Record{Path: path, Hex: hex}.encode()); err != nil {
		return ezerrors.NewIoError("write", w.f.Name(), err)
	}
	return nil
}

// Close flushes and closes the append log. The file remains on disk for
// Sort to consume.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return ezerrors.NewIoError("write", w.f.Name(), err)
	}
	if err := w.f.Close(); err != nil {
		return ezerrors.NewIoError("close", w.f.Name(), err)
	}
	return nil
}

// Path returns the append log's file path.
func (w *Writer) Path() string { return w.f.Name() }

// Sort performs a bounded-memory external merge sort over the append log
// at logPath, writing the sorted result to outPath. runSizeBytes caps how
// much of the log is held in memory per run (each run is quicksorted via
// sort.Slice and spilled to its own temp file); 0 selects
// util.DefaultRunSizeBytes. Run temp files are created alongside outPath
// and removed before Sort returns, on every exit path.
func Sort(logPath, outPath string, runSizeBytes int) error {
	if runSizeBytes <= 0 {
		runSizeBytes = util.DefaultRunSizeBytes
	}

	in, err := os.Open(logPath)
	if err != nil {
		return ezerrors.NewIoError("open", logPath, err)
	}
	defer in.Close()

	var runFiles []string
	defer func() {
		for _, rf := range runFiles {
			os.Remove(rf)
		}
	}()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		batch    []Record
		batchLen int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
		rf, err := writeRun(outPath, batch)
		if err != nil {
			return err
		}
		runFiles = append(runFiles, rf)
		batch = nil
		batchLen = 0
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		rec, derr := decodeLine(line)
		if derr != nil {
			return derr
		}
		batch = append(batch, rec)
		batchLen += len(line) + 1
		if batchLen >= runSizeBytes {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if serr := scanner.Err(); serr != nil {
		return ezerrors.NewIoError("read", logPath, serr)
	}
	if err := flush(); err != nil {
		return err
	}

	return mergeRuns(runFiles, outPath)
}

func writeRun(outPath string, recs []Record) (string, error) {
	f, err := os.CreateTemp(tempDirFor(outPath), "ezbackup-run-*")
	if err != nil {
		return "", ezerrors.NewIoError("create", "", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range recs {
		if _, err := w.WriteString(r.encode()); err != nil {
			return "", ezerrors.NewIoError("write", f.Name(), err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", ezerrors.NewIoError("write", f.Name(), err)
	}
	return f.Name(), nil
}

func tempDirFor(path string) string {
	dir := path
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' {
			return dir[:i]
		}
	}
	return "."
}

// runCursor tracks one run file's current head record during the k-way
// merge.
type runCursor struct {
	scanner *bufio.Scanner
	file    *os.File
	head    Record
	done    bool
}

type mergeHeap []*runCursor

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].head.Path < h[j].head.Path }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(*runCursor)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (c *runCursor) advance() error {
	if c.scanner.Scan() {
		rec, err := decodeLine(c.scanner.Text())
		if err != nil {
			return err
		}
		c.head = rec
		return nil
	}
	if err := c.scanner.Err(); err != nil {
		return ezerrors.NewIoError("read", c.file.Name(), err)
	}
	c.done = true
	return nil
}

func mergeRuns(runFiles []string, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return ezerrors.NewIoError("create", outPath, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	var cursors []*runCursor
	for _, rf := range runFiles {
		f, err := os.Open(rf)
		if err != nil {
			return ezerrors.NewIoError("open", rf, err)
		}
		defer f.Close()
		c := &runCursor{scanner: bufio.NewScanner(f), file: f}
		c.scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		if err := c.advance(); err != nil {
			return err
		}
		if !c.done {
			cursors = append(cursors, c)
		}
	}

	h := mergeHeap(cursors)
	heap.Init(&h)

	for h.Len() > 0 {
		top := h[0]
		if _, err := w.WriteString(top.head.encode()); err != nil {
			return ezerrors.NewIoError("write", outPath, err)
		}
		if err := top.advance(); err != nil {
			return err
		}
		if top.done {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}

	if err := w.Flush(); err != nil {
		return ezerrors.NewIoError("write", outPath, err)
	}
	return nil
}

// Index is a read-only handle over a sorted DigestIndex file, supporting
// binary-search lookup and sequential iteration.
type Index struct {
	path string
	f    *os.File
	size int64
}

// Open opens a previously sorted index file for querying.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ezerrors.NewIoError("open", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ezerrors.NewIoError("stat", path, err)
	}
	return &Index{path: path, f: f, size: info.Size()}, nil
}

// Close releases the underlying file handle.
func (idx *Index) Close() error {
	return idx.f.Close()
}

// Path returns the sorted index file's path.
func (idx *Index) Path() string { return idx.path }

// Lookup performs a binary search over record boundaries for path,
// returning its hex digest and true on a hit, or false on a miss.
func (idx *Index) Lookup(path string) (hex string, ok bool, err error) {
	lo, hi := int64(0), idx.size
	for lo < hi {
		mid := lo + (hi-lo)/2
		rec, recStart, recErr := idx.recordAt(mid)
		if recErr != nil {
			return "", false, recErr
		}
		if rec == nil {
			hi = mid
			continue
		}
		switch {
		case rec.Path == path:
			return rec.Hex, true, nil
		case rec.Path < path:
			lo = recStart + int64(len(rec.encode()))
		default:
			hi = mid
		}
	}
	return "", false, nil
}

// recordAt seeks to byte offset, scans forward to the next record
// boundary, and parses the record found there. It returns (nil, _, nil)
// if offset lands at or past EOF with no further record.
func (idx *Index) recordAt(offset int64) (*Record, int64, error) {
	if offset >= idx.size {
		return nil, offset, nil
	}

	start := offset
	if offset > 0 {
		if _, err := idx.f.Seek(offset-1, io.SeekStart); err != nil {
			return nil, 0, ezerrors.NewIoError("seek", idx.path, err)
		}
		r := bufio.NewReader(idx.f)
		prev, err := r.ReadByte()
		if err != nil {
			return nil, 0, ezerrors.NewIoError("read", idx.path, err)
		}
		consumed := int64(1)
		if prev != '\n' {
			for {
				b, rerr := r.ReadByte()
				if rerr == io.EOF {
					return nil, offset, nil
				}
				if rerr != nil {
					return nil, 0, ezerrors.NewIoError("read", idx.path, rerr)
				}
				consumed++
				if b == '\n' {
					break
				}
			}
		}
		start = offset - 1 + consumed
	}

	if start >= idx.size {
		return nil, start, nil
	}

	if _, err := idx.f.Seek(start, io.SeekStart); err != nil {
		return nil, 0, ezerrors.NewIoError("seek", idx.path, err)
	}
	r := bufio.NewReader(idx.f)
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, 0, ezerrors.NewIoError("read", idx.path, err)
	}
	if line == "" {
		return nil, start, nil
	}
	rec, derr := decodeLine(line)
	if derr != nil {
		return nil, 0, derr
	}
	return &rec, start, nil
}

// Iterate streams records in sorted order, calling yield for each.
func (idx *Index) Iterate(yield func(Record) error) error {
	if _, err := idx.f.Seek(0, io.SeekStart); err != nil {
		return ezerrors.NewIoError("seek", idx.path, err)
	}
	scanner := bufio.NewScanner(idx.f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		rec, err := decodeLine(line)
		if err != nil {
			return err
		}
		if err := yield(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return ezerrors.NewIoError("read", idx.path, err)
	}
	return nil
}
