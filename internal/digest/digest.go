// Package digest computes streaming content digests over file bytes using
// a configurable algorithm, producing lowercase hex output.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"os"

	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
	"github.com/jonathanrlemos/ezbackup/internal/util"
)

// Algorithm names a supported digest function.
type Algorithm string

const (
	MD5     Algorithm = "md5"
	SHA1    Algorithm = "sha1"
	SHA256  Algorithm = "sha256"
	SHA512  Algorithm = "sha512"
	Default           = SHA256
)

var constructors = map[Algorithm]func() hash.Hash{
	MD5:    md5.New,
	SHA1:   sha1.New,
	SHA256: sha256.New,
	SHA512: sha512.New,
}

// Valid reports whether alg names a registered algorithm.
func Valid(alg Algorithm) bool {
	_, ok := constructors[alg]
	return ok
}

// New returns a hash.Hash for alg, or a CryptoError if alg is unregistered.
func New(alg Algorithm) (hash.Hash, error) {
	ctor, ok := constructors[alg]
	if !ok {
		return nil, ezerrors.NewCryptoError("digest", errUnknownAlgorithm(alg))
	}
	return ctor(), nil
}

type errUnknownAlgorithm Algorithm

func (e errUnknownAlgorithm) Error() string { return "unknown digest algorithm: " + string(e) }

// File streams path through alg in DefaultChunkSize chunks and returns the
// lowercase hex digest. Read failures are reported as IoError; hash
// construction failures as CryptoError.
func File(path string, alg Algorithm) (string, error) {
	h, err := New(alg)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", ezerrors.NewIoError("open", path, err)
	}
	defer f.Close()

	buf := util.GetChunkBuffer()
	defer util.PutChunkBuffer(buf)

	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", ezerrors.NewIoError("read", path, rerr)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Reader streams r through alg and returns the lowercase hex digest.
func Reader(r io.Reader, alg Algorithm) (string, error) {
	h, err := New(alg)
	if err != nil {
		return "", err
	}
	buf := util.GetChunkBuffer()
	defer util.PutChunkBuffer(buf)

	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", ezerrors.NewIoError("read", "", rerr)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
