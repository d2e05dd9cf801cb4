package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
)

// SaltSize is the size in bytes of the salt embedded in the "Salted__"
// archive header, matching the legacy cipher utility's OpenSSL-derived
// framing.
const SaltSize = 8

// RandomBytes returns n cryptographically random bytes. It reads from
// crypto/rand.Reader first; if that fails (some minimal or sandboxed
// environments stub out the CSPRNG syscall), it falls back to reading
// directly from /dev/urandom.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err == nil {
		return b, nil
	}

	f, err := os.Open("/dev/urandom")
	if err != nil {
		return nil, fmt.Errorf("crypto: no random source available: %w", err)
	}
	defer f.Close()

	if _, err := io.ReadFull(f, b); err != nil {
		return nil, fmt.Errorf("crypto: reading /dev/urandom: %w", err)
	}
	return b, nil
}

// RandomSalt returns a fresh SaltSize salt for a new archive header.
func RandomSalt() ([]byte, error) {
	return RandomBytes(SaltSize)
}
