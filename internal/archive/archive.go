// Package archive implements ArchiveWriter: a thin policy layer over a
// streaming tar container with a pluggable compression filter chain
// (none, gzip, bzip2, xz, lz4).
//
// Logical-path conventions: file payloads live at "/files/<abs path>",
// the sorted digest index at "/checksums", and the removed-path list at
// "/removed". Uniqueness of logical paths within one archive is the
// caller's responsibility.
package archive

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
	"github.com/jonathanrlemos/ezbackup/internal/util"
)

// permMask is applied to a file's mode bits before they're stored in the
// tar header, per the spec's "mode masked to 01777" rule (permission
// bits plus the sticky/setgid/setuid bits, dropping file-type bits which
// tar's Typeflag already encodes).
const permMask = 01777

// unixMode converts a Go fs.FileMode to the unix permission bits tar
// stores, including sticky/setuid/setgid. FileMode.Perm() only keeps the
// low 9 permission bits and silently drops those three, which a plain
// "Perm() & permMask" would never restore since they'd already be gone.
func unixMode(m os.FileMode) int64 {
	perm := int64(m.Perm())
	if m&os.ModeSetuid != 0 {
		perm |= 04000
	}
	if m&os.ModeSetgid != 0 {
		perm |= 02000
	}
	if m&os.ModeSticky != 0 {
		perm |= 01000
	}
	return perm & permMask
}

// Metadata carries the header fields AddStream writes for one member.
type Metadata struct {
	Size      int64
	Mode      os.FileMode
	ModTime   int64 // unix seconds
	AccessTime int64
	ChangeTime int64
	Uid       int
	Gid       int
	Uname     string
	Gname     string
	Symlink   string // non-empty if this entry is a symlink target
}

// MetadataFromFileInfo builds Metadata from a file's fs.FileInfo,
// resolving owner/group names and access/change times where the
// platform's stat structure exposes them (Linux/unix; zero elsewhere).
func MetadataFromFileInfo(info fs.FileInfo, symlinkTarget string) Metadata {
	uid, gid, uname, gname, atime, ctime := platformMetadata(info.Sys())
	return Metadata{
		Size:       info.Size(),
		Mode:       info.Mode(),
		ModTime:    info.ModTime().Unix(),
		AccessTime: atime.Unix(),
		ChangeTime: ctime.Unix(),
		Uid:        uid,
		Gid:        gid,
		Uname:      uname,
		Gname:      gname,
		Symlink:    symlinkTarget,
	}
}

// Writer creates and populates a tar archive under an optional
// compression filter. Call Close on every exit path; a half-written
// archive is not valid.
type Writer struct {
	f        *os.File
	compress io.WriteCloser
	tw       *tar.Writer
	path     string
	closed   bool
}

// Create opens outPath and prepares a tar container wrapped in
// compression's filter at the given level (0 = library default; xz
// ignores level).
func Create(outPath string, compression Compression, level int) (*Writer, error) {
	f, err := os.Create(outPath)
	if err != nil {
		return nil, ezerrors.NewIoError("create", outPath, err)
	}

	cw, err := newCompressWriter(f, compression, level)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{
		f:        f,
		compress: cw,
		tw:       tar.NewWriter(cw),
		path:     outPath,
	}, nil
}

// AddStream writes a header derived from meta at logicalPath, then copies
// r's bytes as the entry payload in buffer-sized chunks.
func (w *Writer) AddStream(r io.Reader, logicalPath string, meta Metadata) error {
	hdr := &tar.Header{
		Name:       logicalPath,
		Size:       meta.Size,
		Mode:       unixMode(meta.Mode),
		ModTime:    time.Unix(meta.ModTime, 0),
		AccessTime: time.Unix(meta.AccessTime, 0),
		ChangeTime: time.Unix(meta.ChangeTime, 0),
		Uid:        meta.Uid,
		Gid:        meta.Gid,
		Uname:      meta.Uname,
		Gname:      meta.Gname,
		Typeflag:   tar.TypeReg,
	}
	if meta.Symlink != "" {
		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = meta.Symlink
		hdr.Size = 0
	}

	if err := w.tw.WriteHeader(hdr); err != nil {
		return ezerrors.NewIoError("write", w.path, err)
	}

	if hdr.Typeflag == tar.TypeSymlink {
		return nil
	}

	buf := util.GetChunkBuffer()
	defer util.PutChunkBuffer(buf)

	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := w.tw.Write(buf[:n]); werr != nil {
				return ezerrors.NewIoError("write", w.path, werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return ezerrors.NewIoError("read", logicalPath, rerr)
		}
	}
	return nil
}

// Close flushes and finalizes the tar stream and the compression filter,
// then closes the underlying file. Must be called on every exit path.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	if err := w.tw.Close(); err != nil && firstErr == nil {
		firstErr = ezerrors.NewIoError("close", w.path, err)
	}
	if err := w.compress.Close(); err != nil && firstErr == nil {
		firstErr = ezerrors.NewIoError("close", w.path, err)
	}
	if err := w.f.Close(); err != nil && firstErr == nil {
		firstErr = ezerrors.NewIoError("close", w.path, err)
	}
	return firstErr
}

// ExtractOne scans archivePath for the first entry named logicalPath and
// writes its payload to outPath, then stops. Used to recover the prior
// run's digest index ("/checksums") from the decrypted previous archive.
func ExtractOne(archivePath string, compression Compression, logicalPath, outPath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return ezerrors.NewIoError("open", archivePath, err)
	}
	defer f.Close()

	dr, err := newDecompressReader(f, compression)
	if err != nil {
		return err
	}
	defer dr.Close()

	tr := tar.NewReader(dr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return ezerrors.NewFormatError("archive", errMemberNotFound(logicalPath))
		}
		if err != nil {
			return ezerrors.NewFormatError("archive", err)
		}
		if hdr.Name != logicalPath {
			continue
		}

		out, err := os.Create(outPath)
		if err != nil {
			return ezerrors.NewIoError("create", outPath, err)
		}
		defer out.Close()

		buf := util.GetChunkBuffer()
		defer util.PutChunkBuffer(buf)

		if _, err := io.CopyBuffer(out, tr, buf); err != nil {
			return ezerrors.NewIoError("write", outPath, err)
		}
		return nil
	}
}

type errMemberNotFound string

func (e errMemberNotFound) Error() string { return "archive member not found: " + string(e) }

// filesPrefix is the logical-path namespace AddStream writes file
// payloads under; ExtractAll only restores members under it, skipping
// the /checksums and /removed bookkeeping entries.
const filesPrefix = "/files"

// ExtractAll restores every "/files/*" member of archivePath to its
// original absolute path, rooted under destDir when destDir is
// non-empty (otherwise restored in place). It is a best-effort reversal
// of AddStream: symlinks are recreated, and ordinary files are created
// with their stored permission bits plus owner read/write (subject to the
// umask; an already existing file keeps its mode) and get their mtime
// restored. The first member that fails to restore ends the extraction:
// its error is returned together with the paths restored before it.
// Returns the restored paths in archive order.
func ExtractAll(archivePath string, compression Compression, destDir string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, ezerrors.NewIoError("open", archivePath, err)
	}
	defer f.Close()

	dr, err := newDecompressReader(f, compression)
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	buf := util.GetChunkBuffer()
	defer util.PutChunkBuffer(buf)

	var restored []string
	tr := tar.NewReader(dr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return restored, ezerrors.NewFormatError("archive", err)
		}
		if len(hdr.Name) <= len(filesPrefix) || hdr.Name[:len(filesPrefix)] != filesPrefix {
			continue
		}

		sourcePath := hdr.Name[len(filesPrefix):]
		outPath := sourcePath
		if destDir != "" {
			outPath = destDir + sourcePath
		}

		if err := os.MkdirAll(pathDir(outPath), 0755); err != nil {
			return restored, ezerrors.NewIoError("mkdir", pathDir(outPath), err)
		}

		switch hdr.Typeflag {
		case tar.TypeSymlink:
			os.Remove(outPath)
			if err := os.Symlink(hdr.Linkname, outPath); err != nil {
				return restored, ezerrors.NewIoError("symlink", outPath, err)
			}
		default:
			out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&permMask|0600)
			if err != nil {
				return restored, ezerrors.NewIoError("create", outPath, err)
			}
			if _, err := io.CopyBuffer(out, tr, buf); err != nil {
				out.Close()
				return restored, ezerrors.NewIoError("write", outPath, err)
			}
			out.Close()
			os.Chtimes(outPath, hdr.ModTime, hdr.ModTime)
		}

		restored = append(restored, outPath)
	}

	return restored, nil
}

func pathDir(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return "/"
	}
	return p[:i]
}
