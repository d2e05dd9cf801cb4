package archive

import (
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
)

// Compression names a filter in the ArchiveWriter's compression chain.
type Compression string

const (
	None    Compression = "none"
	Gzip    Compression = "gzip"
	Bzip2   Compression = "bzip2"
	Xz      Compression = "xz"
	Lz4     Compression = "lz4"
	Default             = Gzip
)

// Extension returns the filename extension conventionally associated with
// c (used when the orchestrator names the default archive path), or ""
// for None.
func (c Compression) Extension() string {
	switch c {
	case Gzip:
		return "gz"
	case Bzip2:
		return "bz2"
	case Xz:
		return "xz"
	case Lz4:
		return "lz4"
	default:
		return ""
	}
}

// Valid reports whether c is a registered compression identifier.
func Valid(c Compression) bool {
	switch c {
	case None, Gzip, Bzip2, Xz, Lz4:
		return true
	default:
		return false
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type nopReadCloser struct{ io.Reader }

func (nopReadCloser) Close() error { return nil }

// newCompressWriter wraps w with c's compression filter. level is the
// compressor's own integer level knob; 0 means "library default" and is
// only meaningful at the CLI layer — passing it straight through here
// yields each library's own default behavior for 0. Xz has no level knob
// here: level is ignored and the xz writer's defaults always apply.
func newCompressWriter(w io.Writer, c Compression, level int) (io.WriteCloser, error) {
	switch c {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		if level == 0 {
			return pgzip.NewWriter(w), nil
		}
		gw, err := pgzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, ezerrors.NewIoError("compress", "", err)
		}
		return gw, nil
	case Bzip2:
		cfg := &bzip2.WriterConfig{}
		if level != 0 {
			cfg.Level = level
		}
		bw, err := bzip2.NewWriter(w, cfg)
		if err != nil {
			return nil, ezerrors.NewIoError("compress", "", err)
		}
		return bw, nil
	case Xz:
		cfg := xz.WriterConfig{}
		xw, err := cfg.NewWriter(w)
		if err != nil {
			return nil, ezerrors.NewIoError("compress", "", err)
		}
		return xw, nil
	case Lz4:
		lw := lz4.NewWriter(w)
		if level != 0 {
			if err := lw.Apply(lz4.CompressionLevelOption(lz4.CompressionLevel(level))); err != nil {
				return nil, ezerrors.NewIoError("compress", "", err)
			}
		}
		return lw, nil
	default:
		return nil, ezerrors.NewIoError("compress", "", errUnknownCompression(c))
	}
}

// newDecompressReader wraps r with c's decompression filter.
func newDecompressReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case None, "":
		return nopReadCloser{r}, nil
	case Gzip:
		gr, err := pgzip.NewReader(r)
		if err != nil {
			return nil, ezerrors.NewIoError("decompress", "", err)
		}
		return gr, nil
	case Bzip2:
		br, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, ezerrors.NewIoError("decompress", "", err)
		}
		return br, nil
	case Xz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, ezerrors.NewIoError("decompress", "", err)
		}
		return nopReadCloser{xr}, nil
	case Lz4:
		return nopReadCloser{lz4.NewReader(r)}, nil
	default:
		return nil, ezerrors.NewIoError("decompress", "", errUnknownCompression(c))
	}
}

type errUnknownCompression Compression

func (e errUnknownCompression) Error() string { return "unknown compression: " + string(e) }
