// Package backup implements BackupOrchestrator: the single-pass pipeline
// that ties FileWalker, Digest, DigestIndex, ChangeDetector,
// RemovedDeriver, ArchiveWriter, and CryptoPipe together into one backup
// run.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonathanrlemos/ezbackup/internal/archive"
	"github.com/jonathanrlemos/ezbackup/internal/change"
	"github.com/jonathanrlemos/ezbackup/internal/config"
	"github.com/jonathanrlemos/ezbackup/internal/crypto"
	"github.com/jonathanrlemos/ezbackup/internal/digest"
	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
	"github.com/jonathanrlemos/ezbackup/internal/index"
	"github.com/jonathanrlemos/ezbackup/internal/log"
	"github.com/jonathanrlemos/ezbackup/internal/removed"
	"github.com/jonathanrlemos/ezbackup/internal/walker"
)

// ProgressReporter receives per-file and per-phase progress during a run.
// All methods must tolerate being called with a nil receiver's worth of
// no-ops; NoopReporter provides that default.
type ProgressReporter interface {
	FileStarted(path string, size int64)
	FileDone(path string, status change.Status)
	FileWarn(path string, err error)
	Phase(name string)
}

// NoopReporter implements ProgressReporter by doing nothing.
type NoopReporter struct{}

func (NoopReporter) FileStarted(path string, size int64)        {}
func (NoopReporter) FileDone(path string, status change.Status) {}
func (NoopReporter) FileWarn(path string, err error)             {}
func (NoopReporter) Phase(name string)                           {}

// Run executes one backup pass per spec.md §4.8 and returns the path of
// the final archive.
func Run(ctx context.Context, opts config.Options, reporter ProgressReporter) (finalPath string, err error) {
	if reporter == nil {
		reporter = NoopReporter{}
	}

	// opts.Password is read at most twice (Step 3's decrypt of the prior
	// archive, Step 9's encrypt of the new one) and must survive both
	// reads intact: EncryptFile/DecryptFile derive keys from a private
	// copy and never touch the caller's buffer. Scrub it here, once,
	// after every use (including Step 10's persist) has finished.
	defer crypto.ScrubPassword(opts.Password)

	// Step 1: resolve output directory.
	reporter.Phase("resolve-output")
	outputDir := opts.OutputDirectory
	if outputDir == "" {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", ezerrors.NewIoError("resolve-home", "", herr)
		}
		outputDir = filepath.Join(home, "Backups")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", ezerrors.NewIoError("mkdir", outputDir, err)
	}

	// Step 2: compute the default archive name.
	finalPath = defaultArchiveName(outputDir, opts.Compression, opts.Cipher, time.Now().Unix())

	hashAlg := opts.HashAlgorithm
	if hashAlg == "" {
		hashAlg = digest.Default
	}

	// Step 3: open the prior archive's digest index, if any.
	var priorIndex *index.Index
	if opts.PrevBackup != "" {
		priorIndex, err = openPriorIndex(opts)
		if err != nil {
			return "", err
		}
	}
	if priorIndex != nil {
		defer os.Remove(priorIndex.Path())
		defer priorIndex.Close()
	}

	tempDir := os.TempDir()

	// Step 4: open a fresh ArchiveWriter over a temp file.
	reporter.Phase("create-archive")
	tempArchivePath, terr := tempFilePath(tempDir, "ezbackup-archive-*")
	if terr != nil {
		return "", terr
	}
	aw, err := archive.Create(tempArchivePath, opts.Compression, opts.CompressionLevel)
	if err != nil {
		os.Remove(tempArchivePath)
		return "", err
	}
	defer shred(tempArchivePath)

	currentLogPath, lerr := tempFilePath(tempDir, "ezbackup-index-*")
	if lerr != nil {
		aw.Close()
		return "", lerr
	}
	defer os.Remove(currentLogPath)

	indexWriter, err := index.NewWriter(currentLogPath)
	if err != nil {
		aw.Close()
		return "", err
	}

	// Step 5: walk configured roots.
	reporter.Phase("walk")
	w := walker.New(opts.Directories, opts.Exclude)
	walkErr := w.Walk(func(entry walker.Entry) error {
		if err := ctx.Err(); err != nil {
			return ezerrors.Wrap(ezerrors.ErrUserAbort, "backup cancelled during walk")
		}

		reporter.FileStarted(entry.AbsPath, entry.Info.Size())

		hex, derr := digest.File(entry.AbsPath, hashAlg)
		if derr != nil {
			reporter.FileWarn(entry.AbsPath, derr)
			log.Warn("digest failed, skipping file", log.String("path", entry.AbsPath), log.Err(derr))
			return nil
		}

		status, cerr := change.Classify(entry.AbsPath, hex, priorIndex)
		if cerr != nil {
			reporter.FileWarn(entry.AbsPath, cerr)
			log.Warn("classify failed, skipping file", log.String("path", entry.AbsPath), log.Err(cerr))
			return nil
		}

		if change.ShouldStream(status) {
			if serr := streamFileIntoArchive(aw, entry); serr != nil {
				reporter.FileWarn(entry.AbsPath, serr)
				log.Warn("archive add_stream failed, skipping file", log.String("path", entry.AbsPath), log.Err(serr))
				return nil
			}
		}

		if aerr := indexWriter.Append(entry.AbsPath, hex); aerr != nil {
			reporter.FileWarn(entry.AbsPath, aerr)
			log.Warn("index append failed", log.String("path", entry.AbsPath), log.Err(aerr))
			return nil
		}

		reporter.FileDone(entry.AbsPath, status)
		return nil
	})
	if walkErr != nil {
		indexWriter.Close()
		aw.Close()
		return "", walkErr
	}
	if err := indexWriter.Close(); err != nil {
		aw.Close()
		return "", err
	}

	// Step 6: sort the current index and add it to the archive.
	reporter.Phase("sort-index")
	currentSortedPath, serr := tempFilePath(tempDir, "ezbackup-sorted-*")
	if serr != nil {
		aw.Close()
		return "", serr
	}
	defer os.Remove(currentSortedPath)

	if err := index.Sort(currentLogPath, currentSortedPath, 0); err != nil {
		aw.Close()
		return "", err
	}

	currentIndex, err := index.Open(currentSortedPath)
	if err != nil {
		aw.Close()
		return "", err
	}
	defer currentIndex.Close()

	if err := addFileToArchive(aw, currentSortedPath, "/checksums"); err != nil {
		aw.Close()
		return "", err
	}

	// Step 7: derive the removed list and add it.
	reporter.Phase("derive-removed")
	removedPath, rerr := tempFilePath(tempDir, "ezbackup-removed-*")
	if rerr != nil {
		aw.Close()
		return "", rerr
	}
	defer os.Remove(removedPath)

	if err := removed.Derive(priorIndex, currentIndex, removedPath); err != nil {
		aw.Close()
		return "", err
	}
	if err := addFileToArchive(aw, removedPath, "/removed"); err != nil {
		aw.Close()
		return "", err
	}

	// Step 8: close the archive.
	reporter.Phase("close-archive")
	if err := aw.Close(); err != nil {
		return "", err
	}

	// Step 9: encrypt or rename into place. Either way tempArchivePath no
	// longer needs to exist afterward; the deferred shred handles the
	// encrypt case, and rename/copyAndRemove already consume it directly.
	reporter.Phase("finalize")
	if opts.Cipher != "" {
		if err := crypto.EncryptFile(tempArchivePath, finalPath, opts.Password, opts.Cipher, crypto.Options{}); err != nil {
			os.Remove(finalPath)
			return "", err
		}
	} else {
		if err := os.Rename(tempArchivePath, finalPath); err != nil {
			if cerr := copyAndRemove(tempArchivePath, finalPath); cerr != nil {
				return "", cerr
			}
		}
	}

	// Step 10: persist Options with the new prev_backup.
	reporter.Phase("persist-config")
	if opts.ConfigPath != "" {
		persisted := opts
		persisted.PrevBackup = finalPath
		if perr := config.Save(opts.ConfigPath, persisted); perr != nil {
			log.Warn("failed to persist config", log.Err(perr))
		}
	}

	return finalPath, nil
}

func defaultArchiveName(outputDir string, compression archive.Compression, cipher crypto.CipherID, timestamp int64) string {
	name := fmt.Sprintf("backup-%d.tar", timestamp)
	if ext := compression.Extension(); ext != "" {
		name += "." + ext
	}
	if cipher != "" {
		name += "." + string(cipher)
	}
	return filepath.Join(outputDir, name)
}

func openPriorIndex(opts config.Options) (*index.Index, error) {
	tempDir := os.TempDir()

	archivePath := opts.PrevBackup
	if opts.Cipher != "" {
		decryptedPath, err := tempFilePath(tempDir, "ezbackup-prior-*")
		if err != nil {
			return nil, err
		}
		defer shred(decryptedPath)

		if err := crypto.DecryptFile(opts.PrevBackup, decryptedPath, opts.Password, opts.Cipher, crypto.Options{}); err != nil {
			return nil, err
		}
		archivePath = decryptedPath
	}

	priorIndexPath, err := tempFilePath(tempDir, "ezbackup-prior-index-*")
	if err != nil {
		return nil, err
	}

	if err := archive.ExtractOne(archivePath, opts.Compression, "/checksums", priorIndexPath); err != nil {
		os.Remove(priorIndexPath)
		return nil, err
	}

	idx, err := index.Open(priorIndexPath)
	if err != nil {
		os.Remove(priorIndexPath)
		return nil, err
	}
	return idx, nil
}

// shred overwrites a temp file with random bytes before unlinking it, for
// the decrypted-prior-archive temp file which briefly holds plaintext.
func shred(path string) {
	info, err := os.Stat(path)
	if err == nil {
		if f, ferr := os.OpenFile(path, os.O_WRONLY, 0600); ferr == nil {
			random, rerr := crypto.RandomBytes(int(info.Size()))
			if rerr == nil {
				f.Write(random)
			}
			f.Close()
		}
	}
	os.Remove(path)
}

func tempFilePath(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", ezerrors.NewIoError("create", dir, err)
	}
	path := f.Name()
	f.Close()
	return path, nil
}

func streamFileIntoArchive(aw *archive.Writer, entry walker.Entry) error {
	symlinkTarget := ""
	if entry.Info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(entry.AbsPath)
		if err != nil {
			return ezerrors.NewIoError("readlink", entry.AbsPath, err)
		}
		symlinkTarget = target
	}

	meta := archive.MetadataFromFileInfo(entry.Info, symlinkTarget)
	logicalPath := "/files" + entry.AbsPath

	if symlinkTarget != "" {
		return aw.AddStream(nil, logicalPath, meta)
	}

	f, err := os.Open(entry.AbsPath)
	if err != nil {
		return ezerrors.NewIoError("open", entry.AbsPath, err)
	}
	defer f.Close()

	return aw.AddStream(f, logicalPath, meta)
}

func addFileToArchive(aw *archive.Writer, path, logicalPath string) error {
	f, err := os.Open(path)
	if err != nil {
		return ezerrors.NewIoError("open", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ezerrors.NewIoError("stat", path, err)
	}

	meta := archive.MetadataFromFileInfo(info, "")
	return aw.AddStream(f, logicalPath, meta)
}

func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return ezerrors.NewIoError("open", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return ezerrors.NewIoError("create", dst, err)
	}
	defer out.Close()

	buf := make([]byte, 64*1024)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return ezerrors.NewIoError("write", dst, werr)
			}
		}
		if rerr != nil {
			break
		}
	}

	os.Remove(src)
	return nil
}
