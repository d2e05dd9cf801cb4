package crypto

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("abcdefgh")
	key1, iv1, err := DeriveKey(DigestSHA256, []byte("swordfish"), salt, 32, 16, 1)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	key2, iv2, err := DeriveKey(DigestSHA256, []byte("swordfish"), salt, 32, 16, 1)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if !bytes.Equal(key1, key2) || !bytes.Equal(iv1, iv2) {
		t.Error("DeriveKey should be deterministic for the same inputs")
	}

	key3, _, err := DeriveKey(DigestSHA256, []byte("Swordfish"), salt, 32, 16, 1)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if bytes.Equal(key1, key3) {
		t.Error("different passwords must derive different keys")
	}
}

func TestDeriveKeyLength(t *testing.T) {
	salt := []byte("12345678")
	key, iv, err := DeriveKey(DigestSHA256, []byte("pw"), salt, 32, 16, 3)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("expected 32-byte key, got %d", len(key))
	}
	if len(iv) != 16 {
		t.Errorf("expected 16-byte iv, got %d", len(iv))
	}
}

func TestCryptoKeysStateMachine(t *testing.T) {
	k := NewCryptoKeys()

	if err := k.GenerateSalt(); err == nil {
		t.Fatal("GenerateSalt before SetCipher should fail")
	}
	var stateErr *ezerrors.CryptoStateError
	if err := k.GenerateSalt(); !ezerrors.As(err, &stateErr) {
		t.Fatalf("expected CryptoStateError, got %T", err)
	}

	if err := k.SetCipher(CipherAES256CBC); err != nil {
		t.Fatalf("SetCipher: %v", err)
	}
	if err := k.SetCipher(CipherAES256CBC); err == nil {
		t.Fatal("SetCipher twice should fail")
	}

	if err := k.DeriveKeys([]byte("pw"), DigestSHA256, 1); err == nil {
		t.Fatal("DeriveKeys before salt should fail")
	}

	if err := k.GenerateSalt(); err != nil {
		t.Fatalf("GenerateSalt: %v", err)
	}
	if len(k.Salt()) != SaltSize {
		t.Errorf("expected %d-byte salt, got %d", SaltSize, len(k.Salt()))
	}

	if err := k.DeriveKeys([]byte("pw"), DigestSHA256, 1); err != nil {
		t.Fatalf("DeriveKeys: %v", err)
	}

	if _, err := k.Encrypter(); err != nil {
		t.Fatalf("Encrypter: %v", err)
	}

	k.Scrub()
	if _, err := k.Encrypter(); err == nil {
		t.Fatal("Encrypter after Scrub should fail")
	}

	k.Scrub() // idempotent
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.tar")
	enc := filepath.Join(dir, "plain.tar.enc")
	dec := filepath.Join(dir, "plain.tar.dec")

	payload := bytes.Repeat([]byte("ezbackup payload data "), 5000)
	if err := os.WriteFile(src, payload, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	pw := []byte("swordfish")
	if err := EncryptFile(src, enc, pw, CipherAES256CBC, Options{}); err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	header, err := os.ReadFile(enc)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(header[:8], []byte("Salted__")) {
		t.Fatalf("expected Salted__ header, got %q", header[:8])
	}
	if len(header) < 16 {
		t.Fatalf("encrypted file too short: %d bytes", len(header))
	}

	if err := DecryptFile(enc, dec, []byte("swordfish"), CipherAES256CBC, Options{}); err != nil {
		t.Fatalf("DecryptFile: %v", err)
	}

	got, err := os.ReadFile(dec)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("round-tripped payload does not match original")
	}
}

func TestDecryptWrongPasswordFails(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.tar")
	enc := filepath.Join(dir, "plain.tar.enc")
	dec := filepath.Join(dir, "plain.tar.dec")

	if err := os.WriteFile(src, []byte("some archive content here"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := EncryptFile(src, enc, []byte("swordfish"), CipherAES256CBC, Options{}); err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	err := DecryptFile(enc, dec, []byte("Swordfish"), CipherAES256CBC, Options{})
	if err == nil {
		t.Fatal("decrypting with the wrong password should fail")
	}
	if _, statErr := os.Stat(dec); statErr == nil {
		t.Error("partial output should be removed on decrypt failure")
	}
}

func TestDecryptBadMagicIsFormatError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notanarchive")
	dec := filepath.Join(dir, "out")

	if err := os.WriteFile(src, []byte("not a salted header at all.........."), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	err := DecryptFile(src, dec, []byte("pw"), CipherAES256CBC, Options{})
	var fmtErr *ezerrors.FormatError
	if !ezerrors.As(err, &fmtErr) {
		t.Fatalf("expected FormatError, got %T: %v", err, err)
	}
}

func TestScrubPasswordOverwrites(t *testing.T) {
	pw := make([]byte, 20)
	copy(pw, []byte("hunter2"))
	pw = pw[:len("hunter2")]

	ScrubPassword(pw[:cap(pw)][:20])

	if string(pw[:cap(pw)][:7]) == "hunter2" {
		t.Error("ScrubPassword should have overwritten the password bytes")
	}
}

func TestKeyMaterialClose(t *testing.T) {
	km := NewKeyMaterial([]byte("secret key bytes"))
	if km.Bytes() == nil {
		t.Fatal("Bytes should return data before Close")
	}
	km.Close()
	if km.Bytes() != nil {
		t.Error("Bytes should return nil after Close")
	}
	km.Close() // idempotent
}
