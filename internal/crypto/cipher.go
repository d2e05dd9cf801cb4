package crypto

import (
	stdcipher "crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20"

	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
)

// CipherID names one of the registered ciphers. These identifiers are
// stored in the config file's ENC_ALGORITHM key and on the CLI's
// -e/--encryption flag.
type CipherID string

const (
	CipherAES128CBC CipherID = "aes-128-cbc"
	CipherAES192CBC CipherID = "aes-192-cbc"
	CipherAES256CBC CipherID = "aes-256-cbc"
	CipherChaCha20  CipherID = "chacha20"
	DefaultCipherID          = CipherAES256CBC
)

// cipherSpec describes the key and IV sizes a CipherID requires, and
// whether it operates as a block cipher (CBC, needing PKCS7 padding at
// end of stream) or a true stream cipher (chacha20, no padding).
type cipherSpec struct {
	keyLen    int
	ivLen     int
	blockMode bool
}

var cipherSpecs = map[CipherID]cipherSpec{
	CipherAES128CBC: {keyLen: 16, ivLen: stdcipher.BlockSize, blockMode: true},
	CipherAES192CBC: {keyLen: 24, ivLen: stdcipher.BlockSize, blockMode: true},
	CipherAES256CBC: {keyLen: 32, ivLen: stdcipher.BlockSize, blockMode: true},
	CipherChaCha20:  {keyLen: chacha20.KeySize, ivLen: chacha20.NonceSize, blockMode: false},
}

// KeySizes returns the key and IV lengths DeriveKey must produce for id.
func KeySizes(id CipherID) (keyLen, ivLen int, err error) {
	spec, ok := cipherSpecs[id]
	if !ok {
		return 0, 0, ezerrors.NewCryptoError("cipher", errUnknownCipher(id))
	}
	return spec.keyLen, spec.ivLen, nil
}

// IsBlockMode reports whether id requires PKCS7 padding (CBC ciphers) as
// opposed to being a true stream cipher (chacha20).
func IsBlockMode(id CipherID) (bool, error) {
	spec, ok := cipherSpecs[id]
	if !ok {
		return false, ezerrors.NewCryptoError("cipher", errUnknownCipher(id))
	}
	return spec.blockMode, nil
}

// BlockSize returns the cipher's block size, used for CBC padding.
func BlockSize(id CipherID) (int, error) {
	switch id {
	case CipherAES128CBC, CipherAES192CBC, CipherAES256CBC:
		return stdcipher.BlockSize, nil
	case CipherChaCha20:
		return 1, nil
	default:
		return 0, ezerrors.NewCryptoError("cipher", errUnknownCipher(id))
	}
}

type errUnknownCipher CipherID

func (e errUnknownCipher) Error() string { return "unknown cipher: " + string(e) }

// streamEncrypter abstracts chacha20's XORKeyStream and AES-CBC's block
// mode behind one push-bytes-out interface CryptoPipe drives uniformly.
type streamEncrypter interface {
	// Encrypt consumes input and returns ciphertext. Block ciphers accept
	// input of any length, holding back a trailing partial block until a
	// later call; when final is true, PKCS7 padding is applied to what is
	// held back.
	Encrypt(plaintext []byte, final bool) ([]byte, error)
}

type streamDecrypter interface {
	// Decrypt consumes ciphertext and returns plaintext, stripping PKCS7
	// padding when final is true.
	Decrypt(ciphertext []byte, final bool) ([]byte, error)
}

type chachaEncrypter struct{ s *chacha20.Cipher }

func (c *chachaEncrypter) Encrypt(p []byte, _ bool) ([]byte, error) {
	out := make([]byte, len(p))
	c.s.XORKeyStream(out, p)
	return out, nil
}

type chachaDecrypter struct{ s *chacha20.Cipher }

func (c *chachaDecrypter) Decrypt(p []byte, _ bool) ([]byte, error) {
	out := make([]byte, len(p))
	c.s.XORKeyStream(out, p)
	return out, nil
}

type cbcEncrypter struct {
	mode      cipher.BlockMode
	blockSize int
	pending   []byte
}

func (c *cbcEncrypter) Encrypt(p []byte, final bool) ([]byte, error) {
	c.pending = append(c.pending, p...)
	if !final {
		n := (len(c.pending) / c.blockSize) * c.blockSize
		if n == 0 {
			return nil, nil
		}
		chunk := c.pending[:n]
		c.pending = append([]byte(nil), c.pending[n:]...)
		out := make([]byte, len(chunk))
		c.mode.CryptBlocks(out, chunk)
		return out, nil
	}

	padded := pkcs7Pad(c.pending, c.blockSize)
	out := make([]byte, len(padded))
	c.mode.CryptBlocks(out, padded)
	c.pending = nil
	return out, nil
}

type cbcDecrypter struct {
	mode      cipher.BlockMode
	blockSize int
	pending   []byte
}

func (c *cbcDecrypter) Decrypt(p []byte, final bool) ([]byte, error) {
	c.pending = append(c.pending, p...)
	if !final {
		n := (len(c.pending) / c.blockSize) * c.blockSize
		if n == 0 {
			return nil, nil
		}
		chunk := c.pending[:n]
		c.pending = append([]byte(nil), c.pending[n:]...)
		out := make([]byte, len(chunk))
		c.mode.CryptBlocks(out, chunk)
		return out, nil
	}

	if len(c.pending) == 0 || len(c.pending)%c.blockSize != 0 {
		return nil, ezerrors.NewCryptoError("cipher", errShortCiphertext{})
	}
	out := make([]byte, len(c.pending))
	c.mode.CryptBlocks(out, c.pending)
	c.pending = nil
	return pkcs7Unpad(out, c.blockSize)
}

type errShortCiphertext struct{}

func (errShortCiphertext) Error() string { return "ciphertext is not a multiple of the block size" }

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - (len(data) % blockSize)
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ezerrors.NewCryptoError("cipher", errBadPadding{})
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, ezerrors.NewCryptoError("cipher", errBadPadding{})
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ezerrors.NewCryptoError("cipher", errBadPadding{})
		}
	}
	return data[:len(data)-padLen], nil
}

type errBadPadding struct{}

func (errBadPadding) Error() string { return "invalid PKCS7 padding" }

// newEncrypter builds a streamEncrypter for id using key and iv.
func newEncrypter(id CipherID, key, iv []byte) (streamEncrypter, error) {
	switch id {
	case CipherAES128CBC, CipherAES192CBC, CipherAES256CBC:
		block, err := stdcipher.NewCipher(key)
		if err != nil {
			return nil, ezerrors.NewCryptoError("cipher", err)
		}
		return &cbcEncrypter{mode: cipher.NewCBCEncrypter(block, iv), blockSize: block.BlockSize()}, nil
	case CipherChaCha20:
		s, err := chacha20.NewUnauthenticatedCipher(key, iv)
		if err != nil {
			return nil, ezerrors.NewCryptoError("cipher", err)
		}
		return &chachaEncrypter{s: s}, nil
	default:
		return nil, ezerrors.NewCryptoError("cipher", errUnknownCipher(id))
	}
}

// newDecrypter builds a streamDecrypter for id using key and iv.
func newDecrypter(id CipherID, key, iv []byte) (streamDecrypter, error) {
	switch id {
	case CipherAES128CBC, CipherAES192CBC, CipherAES256CBC:
		block, err := stdcipher.NewCipher(key)
		if err != nil {
			return nil, ezerrors.NewCryptoError("cipher", err)
		}
		return &cbcDecrypter{mode: cipher.NewCBCDecrypter(block, iv), blockSize: block.BlockSize()}, nil
	case CipherChaCha20:
		s, err := chacha20.NewUnauthenticatedCipher(key, iv)
		if err != nil {
			return nil, ezerrors.NewCryptoError("cipher", err)
		}
		return &chachaDecrypter{s: s}, nil
	default:
		return nil, ezerrors.NewCryptoError("cipher", errUnknownCipher(id))
	}
}
