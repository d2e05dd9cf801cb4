package crypto

import (
	"crypto/md5"
	"crypto/sha256"
	"hash"

	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
)

// DigestFunc names a hash algorithm usable by DeriveKey, matching the
// digest identifiers accepted by the legacy cipher utility's -md flag.
type DigestFunc string

const (
	DigestMD5    DigestFunc = "md5"
	DigestSHA256 DigestFunc = "sha256"
)

func newHash(name DigestFunc) (hash.Hash, error) {
	switch name {
	case DigestMD5:
		return md5.New(), nil
	case DigestSHA256, "":
		return sha256.New(), nil
	default:
		return nil, ezerrors.NewCryptoError("kdf", errUnknownDigest(string(name)))
	}
}

type errUnknownDigest string

func (e errUnknownDigest) Error() string { return "unknown digest: " + string(e) }

// DeriveKey reproduces the legacy EVP_BytesToKey construction used by the
// command-line cipher utility this format stays wire-compatible with:
// repeatedly hash (previous digest || password || salt), starting with an
// empty previous digest, concatenating successive digest blocks until at
// least keyLen+ivLen bytes have been produced, then splitting the result
// into the key and IV. rounds is the total number of times each block is
// hashed before being appended, i.e. rounds-1 rehashes after the first
// hash (the utility's -iter equivalent; defaulting to 1 reproduces
// classic EVP_BytesToKey exactly).
func DeriveKey(digest DigestFunc, password, salt []byte, keyLen, ivLen, rounds int) (key, iv []byte, err error) {
	if rounds < 1 {
		rounds = 1
	}

	h, err := newHash(digest)
	if err != nil {
		return nil, nil, err
	}

	needed := keyLen + ivLen
	var (
		out  []byte
		prev []byte
	)
	for len(out) < needed {
		h.Reset()
		h.Write(prev)
		h.Write(password)
		h.Write(salt)
		block := h.Sum(nil)

		for i := 1; i < rounds; i++ {
			h.Reset()
			h.Write(block)
			block = h.Sum(nil)
		}

		out = append(out, block...)
		prev = block
	}

	key = make([]byte, keyLen)
	iv = make([]byte, ivLen)
	copy(key, out[:keyLen])
	copy(iv, out[keyLen:needed])

	SecureZero(out)
	return key, iv, nil
}
