package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/jonathanrlemos/ezbackup/internal/crypto"
)

var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordEmpty    = errors.New("password cannot be empty")
)

// isTerminal returns true if stdin is a terminal (not piped/redirected).
func isTerminal() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// readPasswordSecure reads a password from stdin without echo, falling
// back to a plain line read when stdin isn't a terminal.
func readPasswordSecure(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	if !isTerminal() {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		return []byte(line), nil
	}

	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return pw, nil
}

// ReadPasswordInteractive prompts for a password. If confirm is true, it
// asks a second time and requires the two to match (for backup, where a
// typo would lock the user out of their own archive).
func ReadPasswordInteractive(confirm bool) ([]byte, error) {
	password, err := readPasswordSecure("Password: ")
	if err != nil {
		return nil, err
	}
	if len(password) == 0 {
		return nil, ErrPasswordEmpty
	}

	if confirm {
		confirmation, err := readPasswordSecure("Confirm password: ")
		if err != nil {
			return nil, err
		}
		defer crypto.ScrubPassword(confirmation)
		if string(password) != string(confirmation) {
			crypto.ScrubPassword(password)
			return nil, ErrPasswordMismatch
		}
	}

	return password, nil
}

// ReadPasswordFromStdin reads one line from stdin, for scripted use with
// --password read from a pipe.
func ReadPasswordFromStdin() ([]byte, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading password from stdin: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return []byte(line), nil
}
