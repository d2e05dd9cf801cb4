package backup

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonathanrlemos/ezbackup/internal/archive"
	"github.com/jonathanrlemos/ezbackup/internal/config"
	"github.com/jonathanrlemos/ezbackup/internal/digest"
)

func readTarMember(t *testing.T, path, logicalPath string) []byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err != nil {
			t.Fatalf("member %s not found in %s: %v", logicalPath, path, err)
		}
		if hdr.Name == logicalPath {
			var buf bytes.Buffer
			buf.ReadFrom(tr)
			return buf.Bytes()
		}
	}
}

func TestRunFirstBackupIsAllNew(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("file a"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "b.txt"), []byte("file b"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	opts := config.Options{
		Directories:     []string{srcDir},
		HashAlgorithm:   digest.SHA256,
		Compression:     archive.None,
		OutputDirectory: outDir,
	}

	finalPath, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	checksums := readTarMember(t, finalPath, "/checksums")
	lines := strings.Split(strings.TrimRight(string(checksums), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 checksum records, got %d: %q", len(lines), checksums)
	}

	aPayload := readTarMember(t, finalPath, "/files"+filepath.Join(srcDir, "a.txt"))
	if string(aPayload) != "file a" {
		t.Errorf("a.txt payload = %q, want %q", aPayload, "file a")
	}
}

func TestRunIncrementalSkipsUnchangedAndTracksRemoved(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(srcDir, "stable.txt"), []byte("stable"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "deleteme.txt"), []byte("gone soon"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	opts := config.Options{
		Directories:     []string{srcDir},
		HashAlgorithm:   digest.SHA256,
		Compression:     archive.None,
		OutputDirectory: outDir,
	}

	firstPath, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	if err := os.Remove(filepath.Join(srcDir, "deleteme.txt")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "changed.txt"), []byte("new content"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	opts.PrevBackup = firstPath
	secondPath, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	removedList := readTarMember(t, secondPath, "/removed")
	if !strings.Contains(string(removedList), filepath.Join(srcDir, "deleteme.txt")) {
		t.Errorf("removed list should contain deleteme.txt, got %q", removedList)
	}

	checksums := readTarMember(t, secondPath, "/checksums")
	lines := strings.Split(strings.TrimRight(string(checksums), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 checksum records (stable + changed), got %d: %q", len(lines), checksums)
	}

	// stable.txt is unchanged, so it should not be re-streamed into the
	// second archive's /files payload.
	f, err := os.Open(secondPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	tr := tar.NewReader(f)
	foundStable := false
	for {
		hdr, terr := tr.Next()
		if terr != nil {
			break
		}
		if hdr.Name == "/files"+filepath.Join(srcDir, "stable.txt") {
			foundStable = true
		}
	}
	if foundStable {
		t.Error("unchanged file stable.txt should not be re-streamed into the incremental archive")
	}
}
