// Package config reads and writes ezbackup's persisted configuration
// file, by convention at $HOME/.ezbackup. The on-disk format is a
// bespoke, binary-safe sequence of length-prefixed key/value entries: it
// predates (and isn't compatible with) TOML/YAML/JSON, so this package
// hand-rolls the reader/writer rather than reaching for a markup library.
// Each token (key, then value) is framed as a 4-byte big-endian length
// followed by that many raw bytes, so a value is free to contain NUL (or
// any other byte) without being mistaken for a record boundary -- this
// matters for DIRECTORIES/EXCLUDE, whose value is itself several paths
// joined by NUL.
package config

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonathanrlemos/ezbackup/internal/archive"
	"github.com/jonathanrlemos/ezbackup/internal/crypto"
	"github.com/jonathanrlemos/ezbackup/internal/digest"
	ezerrors "github.com/jonathanrlemos/ezbackup/internal/errors"
)

// Key names used in the persisted file.
const (
	keyDirectories      = "DIRECTORIES"
	keyExclude          = "EXCLUDE"
	keyHashAlgorithm    = "HASH_ALGORITHM"
	keyEncAlgorithm     = "ENC_ALGORITHM"
	keyEncPassword      = "ENC_PASSWORD"
	keyCompressionType  = "C_TYPE"
	keyCompressionLevel = "C_LEVEL"
	keyCompressionFlags = "C_FLAGS"
	keyOutputDirectory  = "OUTPUT_DIRECTORY"
	keyPrevBackup       = "PREV_BACKUP"
	keyVerbose          = "FLAGS"
	cloudKeyPrefix      = "CO_"
)

// Options holds the full set of knobs for one backup or restore run,
// whether populated from CLI flags or loaded from the config file.
type Options struct {
	Directories       []string
	Exclude           []string
	HashAlgorithm     digest.Algorithm
	Cipher            crypto.CipherID // empty means no encryption
	Password          []byte
	Compression       archive.Compression
	CompressionLevel  int
	OutputDirectory   string
	PrevBackup        string // path of the prior archive, empty if none
	Verbose           bool
	CloudOptions      map[string]string // CO_* passthrough for internal/upload
	Username          string            // cloud upload username, passthrough only
	ConfigPath        string            // where to persist this Options on success; not itself persisted
}

// DefaultPath returns $HOME/.ezbackup, falling back to the current user's
// home directory from the passwd database if HOME is unset.
func DefaultPath() (string, error) {
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".ezbackup"), nil
	}
	u, err := user.Current()
	if err != nil {
		return "", ezerrors.NewConfigError("", err)
	}
	return filepath.Join(u.HomeDir, ".ezbackup"), nil
}

// Load reads Options from path. A missing file is not an error: it
// returns a zero-value Options so a first run can proceed with CLI flags
// alone.
func Load(path string) (Options, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Options{CloudOptions: map[string]string{}}, nil
	}
	if err != nil {
		return Options{}, ezerrors.NewConfigError("", err)
	}
	defer f.Close()

	opts := Options{CloudOptions: map[string]string{}}
	r := bufio.NewReader(f)

	for {
		key, err := readToken(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Options{}, ezerrors.NewConfigError("", err)
		}
		value, verr := readToken(r)
		if verr != nil {
			return Options{}, ezerrors.NewConfigError(key, errTruncatedValue{})
		}

		if err := applyKey(&opts, key, value); err != nil {
			return Options{}, err
		}
	}

	return opts, nil
}

type errTruncatedValue struct{}

func (errTruncatedValue) Error() string { return "truncated entry: missing value" }

// readToken reads one length-prefixed token: a 4-byte big-endian length
// followed by that many bytes, which may contain any byte value
// including NUL. io.EOF is returned (unwrapped) only when zero bytes of
// a fresh token could be read; a length header with no matching payload
// is a truncated-entry error rather than a clean EOF.
func readToken(r *bufio.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return "", errTruncatedValue{}
		}
		return "", err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errTruncatedValue{}
	}
	return string(buf), nil
}

func applyKey(opts *Options, key, value string) error {
	switch {
	case key == keyDirectories:
		opts.Directories = splitMultiValue(value)
	case key == keyExclude:
		opts.Exclude = splitMultiValue(value)
	case key == keyHashAlgorithm:
		opts.HashAlgorithm = digest.Algorithm(value)
	case key == keyEncAlgorithm:
		opts.Cipher = crypto.CipherID(value)
	case key == keyEncPassword:
		if value == "" {
			break
		}
		pw, err := hex.DecodeString(value)
		if err != nil {
			return ezerrors.NewConfigError(keyEncPassword, err)
		}
		opts.Password = pw
	case key == keyCompressionType:
		opts.Compression = archive.Compression(value)
	case key == keyCompressionLevel:
		lvl, err := strconv.Atoi(value)
		if err != nil {
			return ezerrors.NewConfigError(keyCompressionLevel, err)
		}
		opts.CompressionLevel = lvl
	case key == keyCompressionFlags:
		// Reserved for compressor-specific flags; accepted and discarded
		// on load, and never written by Save.
	case key == keyOutputDirectory:
		opts.OutputDirectory = value
	case key == keyPrevBackup:
		opts.PrevBackup = value
	case key == keyVerbose:
		opts.Verbose = value == "1"
	case strings.HasPrefix(key, cloudKeyPrefix):
		opts.CloudOptions[strings.TrimPrefix(key, cloudKeyPrefix)] = value
	default:
		return ezerrors.NewConfigError(key, errUnknownKey(key))
	}
	return nil
}

type errUnknownKey string

func (e errUnknownKey) Error() string { return "unknown config key: " + string(e) }

// splitMultiValue splits a DIRECTORIES/EXCLUDE value, which is itself
// several paths joined by NUL. Safe now that the outer framing is
// length-prefixed rather than NUL-terminated: an embedded NUL here can't
// be mistaken for a record boundary.
func splitMultiValue(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, "\x00")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Save writes opts to path, creating parent directories as needed and
// truncating any existing file.
func Save(path string, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return ezerrors.NewConfigError("", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return ezerrors.NewConfigError("", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	writeEntry(w, keyDirectories, joinMultiValue(opts.Directories))
	writeEntry(w, keyExclude, joinMultiValue(opts.Exclude))
	writeEntry(w, keyHashAlgorithm, string(opts.HashAlgorithm))
	writeEntry(w, keyEncAlgorithm, string(opts.Cipher))
	writeEntry(w, keyEncPassword, hex.EncodeToString(opts.Password))
	writeEntry(w, keyCompressionType, string(opts.Compression))
	writeEntry(w, keyCompressionLevel, strconv.Itoa(opts.CompressionLevel))
	writeEntry(w, keyOutputDirectory, opts.OutputDirectory)
	writeEntry(w, keyPrevBackup, opts.PrevBackup)
	if opts.Verbose {
		writeEntry(w, keyVerbose, "1")
	} else {
		writeEntry(w, keyVerbose, "0")
	}
	for k, v := range opts.CloudOptions {
		writeEntry(w, cloudKeyPrefix+k, v)
	}

	if err := w.Flush(); err != nil {
		return ezerrors.NewConfigError("", err)
	}
	return nil
}

func writeEntry(w *bufio.Writer, key, value string) {
	writeToken(w, key)
	writeToken(w, value)
}

func writeToken(w *bufio.Writer, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	w.Write(lenBuf[:])
	w.WriteString(s)
}

func joinMultiValue(values []string) string {
	return strings.Join(values, "\x00")
}
