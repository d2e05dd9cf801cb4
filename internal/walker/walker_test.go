package walker

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestWalkYieldsRegularFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "b")

	w := New([]string{root}, nil)

	var got []string
	err := w.Walk(func(e Entry) error {
		got = append(got, e.AbsPath)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	sort.Strings(got)

	want := []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub", "b.txt"),
	}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestWalkSkipsExcludedDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep", "k.txt"), "k")
	writeFile(t, filepath.Join(root, "skip", "s.txt"), "s")

	excludeAbs := filepath.Join(root, "skip")
	w := New([]string{root}, []string{excludeAbs})

	var got []string
	err := w.Walk(func(e Entry) error {
		got = append(got, e.AbsPath)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	for _, p := range got {
		if filepath.Dir(p) == excludeAbs {
			t.Errorf("excluded directory %s should not have been walked, found %s", excludeAbs, p)
		}
	}
	if len(got) != 1 || got[0] != filepath.Join(root, "keep", "k.txt") {
		t.Errorf("unexpected walk result: %v", got)
	}
}

func TestWalkSkipsLostAndFound(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "lost+found", "orphan"), "x")
	writeFile(t, filepath.Join(root, "normal.txt"), "y")

	w := New([]string{root}, nil)

	var got []string
	err := w.Walk(func(e Entry) error {
		got = append(got, e.AbsPath)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(got) != 1 || got[0] != filepath.Join(root, "normal.txt") {
		t.Errorf("expected only normal.txt, got %v", got)
	}
}

func TestWalkTolerateUnreadableDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.txt"), "ok")
	badDir := filepath.Join(root, "noperm")
	if err := os.MkdirAll(badDir, 0000); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	defer os.Chmod(badDir, 0755)

	var errs []string
	w := New([]string{root}, nil)
	w.OnError = func(path string, err error) {
		errs = append(errs, path)
	}

	var got []string
	err := w.Walk(func(e Entry) error {
		got = append(got, e.AbsPath)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk should tolerate unreadable directories, got: %v", err)
	}

	found := false
	for _, p := range got {
		if p == filepath.Join(root, "ok.txt") {
			found = true
		}
	}
	if !found {
		t.Error("ok.txt should still be yielded despite sibling error")
	}
}
