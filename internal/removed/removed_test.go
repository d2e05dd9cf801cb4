package removed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonathanrlemos/ezbackup/internal/index"
)

func buildSorted(t *testing.T, dir, name string, paths []string) *index.Index {
	t.Helper()
	logPath := filepath.Join(dir, name+".log")
	sortedPath := filepath.Join(dir, name+".sorted")

	w, err := index.NewWriter(logPath)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, p := range paths {
		if err := w.Append(p, "hex"); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := index.Sort(logPath, sortedPath, 0); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	idx, err := index.Open(sortedPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return idx
}

func TestDeriveRemoved(t *testing.T) {
	dir := t.TempDir()
	prior := buildSorted(t, dir, "prior", []string{"/a", "/b", "/c", "/d"})
	defer prior.Close()
	current := buildSorted(t, dir, "current", []string{"/a", "/c"})
	defer current.Close()

	outPath := filepath.Join(dir, "removed.txt")
	if err := Derive(prior, current, outPath); err != nil {
		t.Fatalf("Derive: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	want := []string{"/b", "/d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDeriveNothingRemoved(t *testing.T) {
	dir := t.TempDir()
	prior := buildSorted(t, dir, "prior", []string{"/a", "/b"})
	defer prior.Close()
	current := buildSorted(t, dir, "current", []string{"/a", "/b", "/c"})
	defer current.Close()

	outPath := filepath.Join(dir, "removed.txt")
	if err := Derive(prior, current, outPath); err != nil {
		t.Fatalf("Derive: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty removed list, got %q", data)
	}
}

func TestDeriveNilPrior(t *testing.T) {
	dir := t.TempDir()
	current := buildSorted(t, dir, "current", []string{"/a"})
	defer current.Close()

	outPath := filepath.Join(dir, "removed.txt")
	if err := Derive(nil, current, outPath); err != nil {
		t.Fatalf("Derive: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty removed list when prior is nil, got %q", data)
	}
}
