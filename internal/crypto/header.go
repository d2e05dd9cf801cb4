package crypto

import (
	"bytes"
	"io"

	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
)

// saltedMagic is the literal 8-byte header every encrypted archive starts
// with, matching the legacy cipher utility's "Salted__" framing byte for
// byte (ASCII, no terminator).
var saltedMagic = []byte("Salted__")

// writeHeader writes the 8-byte magic and salt to w.
func writeHeader(w io.Writer, salt []byte) error {
	if _, err := w.Write(saltedMagic); err != nil {
		return ezerrors.NewIoError("write", "", err)
	}
	if _, err := w.Write(salt); err != nil {
		return ezerrors.NewIoError("write", "", err)
	}
	return nil
}

// readHeader reads and validates the 8-byte magic, then reads the
// following SaltSize bytes as the salt. Returns FormatError if the magic
// doesn't match.
func readHeader(r io.Reader) (salt []byte, err error) {
	magic := make([]byte, len(saltedMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, ezerrors.NewIoError("read", "", err)
	}
	if !bytes.Equal(magic, saltedMagic) {
		return nil, ezerrors.NewFormatError("archive header", errBadMagic{})
	}

	salt = make([]byte, SaltSize)
	if _, err := io.ReadFull(r, salt); err != nil {
		return nil, ezerrors.NewIoError("read", "", err)
	}
	return salt, nil
}

type errBadMagic struct{}

func (errBadMagic) Error() string { return `expected literal "Salted__"` }
