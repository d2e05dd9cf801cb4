package digest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReaderKnownVectors(t *testing.T) {
	cases := []struct {
		alg  Algorithm
		want string
	}{
		{MD5, "5eb63bbbe01eeed093cb22bb8f5acdc3"},
		{SHA1, "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"},
		{SHA256, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}

	for _, tc := range cases {
		t.Run(string(tc.alg), func(t *testing.T) {
			got, err := Reader(strings.NewReader("hello world"), tc.alg)
			if err != nil {
				t.Fatalf("Reader: %v", err)
			}
			if got != tc.want {
				t.Errorf("%s(%q) = %s, want %s", tc.alg, "hello world", got, tc.want)
			}
		})
	}
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := File(path, SHA256)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Errorf("File() = %s, want %s", got, want)
	}
}

func TestUnknownAlgorithm(t *testing.T) {
	if _, err := New("crc32"); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
	if Valid("crc32") {
		t.Fatal("crc32 should not be a valid algorithm")
	}
	if !Valid(SHA256) {
		t.Fatal("sha256 should be valid")
	}
}

func TestFileMissingReturnsIoError(t *testing.T) {
	_, err := File("/nonexistent/path/does/not/exist", SHA256)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
