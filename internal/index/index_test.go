package index

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func buildIndex(t *testing.T, dir string, records []Record, runSize int) *Index {
	t.Helper()
	logPath := filepath.Join(dir, "log")
	sortedPath := filepath.Join(dir, "sorted")

	w, err := NewWriter(logPath)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, r := range records {
		if err := w.Append(r.Path, r.Hex); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := Sort(logPath, sortedPath, runSize); err != nil {
		t.Fatalf("Sort: %v", err)
	}

	idx, err := Open(sortedPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return idx
}

func TestAppendRejectsEmbeddedDelimiters(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(filepath.Join(dir, "log"))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Append("path\x00withNUL", "abc"); err == nil {
		t.Error("expected error for path containing NUL")
	}
	if err := w.Append("path\nwithNewline", "abc"); err == nil {
		t.Error("expected error for path containing newline")
	}
}

func TestSortAndIterateOrdered(t *testing.T) {
	dir := t.TempDir()
	records := []Record{
		{Path: "/z/file", Hex: "1"},
		{Path: "/a/file", Hex: "2"},
		{Path: "/m/file", Hex: "3"},
	}
	idx := buildIndex(t, dir, records, 0)
	defer idx.Close()

	var got []string
	err := idx.Iterate(func(r Record) error {
		got = append(got, r.Path)
		return nil
	})
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}

	want := []string{"/a/file", "/m/file", "/z/file"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLookupHitAndMiss(t *testing.T) {
	dir := t.TempDir()
	records := []Record{
		{Path: "/etc/passwd", Hex: "aaa"},
		{Path: "/etc/shadow", Hex: "bbb"},
		{Path: "/home/user/file.txt", Hex: "ccc"},
	}
	idx := buildIndex(t, dir, records, 0)
	defer idx.Close()

	hex, ok, err := idx.Lookup("/etc/shadow")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok || hex != "bbb" {
		t.Errorf("Lookup(/etc/shadow) = %s, %v, want bbb, true", hex, ok)
	}

	_, ok, err = idx.Lookup("/does/not/exist")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Error("Lookup should miss for absent path")
	}
}

func TestExternalSortManyRecordsSmallRuns(t *testing.T) {
	dir := t.TempDir()

	n := 5000
	rng := rand.New(rand.NewSource(1))
	seen := make(map[string]bool, n)
	var records []Record
	for len(records) < n {
		p := fmt.Sprintf("/data/%08x/%08x", rng.Uint32(), rng.Uint32())
		if seen[p] {
			continue
		}
		seen[p] = true
		records = append(records, Record{Path: p, Hex: fmt.Sprintf("%x", rng.Uint64())})
	}

	// Force many small runs to exercise the k-way merge.
	idx := buildIndex(t, dir, records, 4096)
	defer idx.Close()

	var got []string
	err := idx.Iterate(func(r Record) error {
		got = append(got, r.Path)
		return nil
	})
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(got) != n {
		t.Fatalf("expected %d records, got %d", n, len(got))
	}
	if !sort.StringsAreSorted(got) {
		t.Fatal("iterated records are not sorted")
	}

	// Spot-check lookups across the range.
	for i := 0; i < n; i += n / 20 {
		want := records[i]
		hex, ok, lerr := idx.Lookup(want.Path)
		if lerr != nil {
			t.Fatalf("Lookup: %v", lerr)
		}
		if !ok {
			t.Fatalf("Lookup(%s) missed", want.Path)
		}
		if hex != want.Hex {
			t.Fatalf("Lookup(%s) = %s, want %s", want.Path, hex, want.Hex)
		}
	}
}

func TestSortCleansUpRunFiles(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log")
	sortedPath := filepath.Join(dir, "sorted")

	w, err := NewWriter(logPath)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 200; i++ {
		w.Append(fmt.Sprintf("/p/%04d", i), "x")
	}
	w.Close()

	if err := Sort(logPath, sortedPath, 32); err != nil {
		t.Fatalf("Sort: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "log" && e.Name() != "sorted" {
			t.Errorf("leftover temp file not cleaned up: %s", e.Name())
		}
	}
}
