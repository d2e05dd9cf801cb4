package crypto

import (
	"io"
	"os"

	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
	"github.com/jonathanrlemos/ezbackup/internal/log"
	"github.com/jonathanrlemos/ezbackup/internal/util"
)

// Options configures key derivation for a CryptoPipe call. The zero value
// selects sha256 with 1 round, matching classic EVP_BytesToKey.
type Options struct {
	Digest DigestFunc
	Rounds int
}

func (o Options) normalized() Options {
	if o.Digest == "" {
		o.Digest = DigestSHA256
	}
	if o.Rounds < 1 {
		o.Rounds = 1
	}
	return o
}

// EncryptFile reads the plaintext at srcPath and writes
// "Salted__" || salt(8) || ciphertext to dstPath under cipherID, deriving
// keys from password via the legacy EVP_BytesToKey construction. password
// is never mutated: derivation runs against a private copy, which is
// scrubbed once keys are derived (or on any failure before that point).
// The caller retains ownership of password and is responsible for
// scrubbing it once it is truly done with it. On any failure, dstPath is
// removed before returning.
func EncryptFile(srcPath, dstPath string, password []byte, cipherID CipherID, opts Options) (err error) {
	opts = opts.normalized()

	release, rerr := suppressCoreDumps()
	if rerr != nil {
		log.Warn("failed to disable core dumps", log.Err(rerr))
	} else {
		defer release()
	}

	keys := NewCryptoKeys()
	defer keys.Scrub()

	if err := keys.SetCipher(cipherID); err != nil {
		return err
	}
	if err := keys.GenerateSalt(); err != nil {
		return err
	}

	pwCopy := append([]byte(nil), password...)
	derr := keys.DeriveKeys(pwCopy, opts.Digest, opts.Rounds)
	ScrubPassword(pwCopy)
	if derr != nil {
		return derr
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return ezerrors.NewIoError("open", srcPath, err)
	}
	defer in.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return ezerrors.NewIoError("create", dstPath, err)
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(dstPath)
		}
	}()

	if err = writeHeader(out, keys.Salt()); err != nil {
		return err
	}

	enc, err := keys.Encrypter()
	if err != nil {
		return err
	}

	buf := util.GetChunkBuffer()
	defer util.PutChunkBuffer(buf)

	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			ct, eerr := enc.Encrypt(buf[:n], false)
			if eerr != nil {
				err = ezerrors.NewCryptoError("encrypt", eerr)
				return err
			}
			if len(ct) > 0 {
				if _, werr := out.Write(ct); werr != nil {
					err = ezerrors.NewIoError("write", dstPath, werr)
					return err
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			err = ezerrors.NewIoError("read", srcPath, rerr)
			return err
		}
	}

	final, err := enc.Encrypt(nil, true)
	if err != nil {
		err = ezerrors.NewCryptoError("encrypt_final", err)
		return err
	}
	if len(final) > 0 {
		if _, werr := out.Write(final); werr != nil {
			err = ezerrors.NewIoError("write", dstPath, werr)
			return err
		}
	}

	return nil
}

// DecryptFile reads an encrypted archive at srcPath, verifies the
// "Salted__" header, derives keys from password and the embedded salt,
// and writes the recovered plaintext to dstPath. Returns FormatError if
// the header magic doesn't match, and a CryptoError wrapped with an
// "authentication failed" message when the final padding check fails,
// which is how a wrong password usually shows up (ErrAuthFailed itself is
// not part of the returned chain). As with
// EncryptFile, password is never mutated: derivation runs against a
// private copy, leaving the caller's buffer intact and the caller's
// responsibility to scrub.
func DecryptFile(srcPath, dstPath string, password []byte, cipherID CipherID, opts Options) (err error) {
	opts = opts.normalized()

	release, rerr := suppressCoreDumps()
	if rerr != nil {
		log.Warn("failed to disable core dumps", log.Err(rerr))
	} else {
		defer release()
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return ezerrors.NewIoError("open", srcPath, err)
	}
	defer in.Close()

	salt, err := readHeader(in)
	if err != nil {
		return err
	}

	keys := NewCryptoKeys()
	defer keys.Scrub()

	if err := keys.SetCipher(cipherID); err != nil {
		return err
	}
	if err := keys.ExtractSalt(salt); err != nil {
		return err
	}

	pwCopy := append([]byte(nil), password...)
	derr := keys.DeriveKeys(pwCopy, opts.Digest, opts.Rounds)
	ScrubPassword(pwCopy)
	if derr != nil {
		return derr
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return ezerrors.NewIoError("create", dstPath, err)
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(dstPath)
		}
	}()

	dec, err := keys.Decrypter()
	if err != nil {
		return err
	}

	buf := util.GetChunkBuffer()
	defer util.PutChunkBuffer(buf)

	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			pt, derr := dec.Decrypt(buf[:n], false)
			if derr != nil {
				err = ezerrors.NewCryptoError("decrypt", derr)
				return err
			}
			if len(pt) > 0 {
				if _, werr := out.Write(pt); werr != nil {
					err = ezerrors.NewIoError("write", dstPath, werr)
					return err
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			err = ezerrors.NewIoError("read", srcPath, rerr)
			return err
		}
	}

	final, ferr := dec.Decrypt(nil, true)
	if ferr != nil {
		err = ezerrors.Wrap(ezerrors.NewCryptoError("decrypt_final", ferr), "authentication failed, wrong password or corrupt archive")
		return err
	}
	if len(final) > 0 {
		if _, werr := out.Write(final); werr != nil {
			err = ezerrors.NewIoError("write", dstPath, werr)
			return err
		}
	}

	return nil
}
