package crypto

import (
	"fmt"

	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
)

type keyState int

const (
	stateNew keyState = iota
	stateCipherSet
	stateSalted
	stateReady
	stateTerminal
)

func (s keyState) String() string {
	switch s {
	case stateNew:
		return "NEW"
	case stateCipherSet:
		return "CIPHER_SET"
	case stateSalted:
		return "CIPHER_SET+SALT"
	case stateReady:
		return "READY"
	case stateTerminal:
		return "TERMINAL"
	default:
		return "UNKNOWN"
	}
}

// CryptoKeys holds password-derived key material and walks the
// NEW -> CIPHER_SET -> CIPHER_SET+SALT -> READY -> TERMINAL state machine.
// Calling a method out of order returns a CryptoStateError rather than
// silently operating on zero-value keys. The zero value is NEW.
type CryptoKeys struct {
	state  keyState
	cipher CipherID
	salt   []byte
	key    *KeyMaterial
	iv     *KeyMaterial
}

// NewCryptoKeys returns a fresh handle in state NEW.
func NewCryptoKeys() *CryptoKeys {
	return &CryptoKeys{state: stateNew}
}

func (k *CryptoKeys) requireState(want keyState) error {
	if k.state != want {
		return ezerrors.NewCryptoStateError(k.state.String(), want.String())
	}
	return nil
}

// SetCipher selects the cipher algorithm. NEW -> CIPHER_SET.
func (k *CryptoKeys) SetCipher(id CipherID) error {
	if err := k.requireState(stateNew); err != nil {
		return err
	}
	if _, err := KeySizes(id); err != nil {
		return err
	}
	k.cipher = id
	k.state = stateCipherSet
	return nil
}

// GenerateSalt produces a fresh random salt for encrypting a new archive.
// CIPHER_SET -> CIPHER_SET+SALT.
func (k *CryptoKeys) GenerateSalt() error {
	if err := k.requireState(stateCipherSet); err != nil {
		return err
	}
	salt, err := RandomSalt()
	if err != nil {
		return ezerrors.NewCryptoError("gen_salt", err)
	}
	k.salt = salt
	k.state = stateSalted
	return nil
}

// ExtractSalt adopts a salt read from an existing archive's header, for
// decrypting. CIPHER_SET -> CIPHER_SET+SALT.
func (k *CryptoKeys) ExtractSalt(salt []byte) error {
	if err := k.requireState(stateCipherSet); err != nil {
		return err
	}
	if len(salt) != SaltSize {
		return ezerrors.NewCryptoError("extract_salt", fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt)))
	}
	k.salt = append([]byte(nil), salt...)
	k.state = stateSalted
	return nil
}

// Salt returns the handle's salt. Valid once CIPHER_SET+SALT is reached.
func (k *CryptoKeys) Salt() []byte {
	return k.salt
}

// DeriveKeys runs the legacy KDF over password and the handle's salt,
// producing key and IV material sized for the selected cipher.
// CIPHER_SET+SALT -> READY.
func (k *CryptoKeys) DeriveKeys(password []byte, digest DigestFunc, rounds int) error {
	if err := k.requireState(stateSalted); err != nil {
		return err
	}
	keyLen, ivLen, err := KeySizes(k.cipher)
	if err != nil {
		return err
	}
	key, iv, err := DeriveKey(digest, password, k.salt, keyLen, ivLen, rounds)
	if err != nil {
		return ezerrors.NewCryptoError("derive_keys", err)
	}
	// NewKeyMaterial copies key/iv into their own owned buffers and zeros
	// on Scrub, independent of whatever DeriveKey's caller does with its
	// own copies.
	k.key = NewKeyMaterial(key)
	k.iv = NewKeyMaterial(iv)
	k.state = stateReady
	return nil
}

// Encrypter returns a streamEncrypter bound to this handle's key and IV.
// Requires READY.
func (k *CryptoKeys) Encrypter() (streamEncrypter, error) {
	if err := k.requireState(stateReady); err != nil {
		return nil, err
	}
	return newEncrypter(k.cipher, k.key.Bytes(), k.iv.Bytes())
}

// Decrypter returns a streamDecrypter bound to this handle's key and IV.
// Requires READY.
func (k *CryptoKeys) Decrypter() (streamDecrypter, error) {
	if err := k.requireState(stateReady); err != nil {
		return nil, err
	}
	return newDecrypter(k.cipher, k.key.Bytes(), k.iv.Bytes())
}

// Scrub zeros all key material and transitions READY -> TERMINAL. The
// handle cannot be reused afterward. Safe to call more than once.
func (k *CryptoKeys) Scrub() {
	if k.state == stateTerminal {
		return
	}
	k.key.Close()
	k.iv.Close()
	SecureZero(k.salt)
	k.key = nil
	k.iv = nil
	k.state = stateTerminal
}
