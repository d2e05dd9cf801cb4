// Package crypto implements the CryptoPipe subsystem: password-derived key
// material, salted streaming encrypt/decrypt framed for interop with a
// widely deployed command-line cipher utility, and the memory hygiene
// rules around both.
package crypto

import "crypto/subtle"

// SecureZero overwrites a byte slice so key material doesn't linger in
// memory past its useful life. Go's GC and the optimizer give no hard
// guarantee of erasure, but routing the zero-fill through
// subtle.ConstantTimeCopy keeps the compiler from eliding it as dead
// stores into a slice nobody reads again.
func SecureZero(b []byte) {
	if len(b) == 0 {
		return
	}
	zeros := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zeros)
}

// SecureZeroMultiple zeros several buffers in one call.
func SecureZeroMultiple(slices ...[]byte) {
	for _, s := range slices {
		SecureZero(s)
	}
}

// KeyMaterial wraps sensitive key data with automatic zeroing on Close.
type KeyMaterial struct {
	data   []byte
	closed bool
}

// NewKeyMaterial copies data into an owned, zeroable buffer.
func NewKeyMaterial(data []byte) *KeyMaterial {
	if data == nil {
		return &KeyMaterial{}
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return &KeyMaterial{data: copied}
}

// Bytes returns the underlying data, or nil once Close has been called
// (or on a nil receiver, for a handle that was never populated).
func (km *KeyMaterial) Bytes() []byte {
	if km == nil || km.closed {
		return nil
	}
	return km.data
}

// Close zeros the data and marks the material closed. Idempotent, and
// safe to call on a nil receiver.
func (km *KeyMaterial) Close() {
	if km == nil || km.closed || km.data == nil {
		return
	}
	SecureZero(km.data)
	km.data = nil
	km.closed = true
}
