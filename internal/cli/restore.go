package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathanrlemos/ezbackup/internal/archive"
	"github.com/jonathanrlemos/ezbackup/internal/crypto"
)

func init() {
	restoreCmd.SilenceErrors = true
	restoreCmd.SilenceUsage = true
}

var restoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Restore files from a backup archive",
	Long: `Extract every file payload stored in an archive back to its
original absolute path, or under -o/--output if given.

This is a best-effort reversal of what "backup" writes: it does not
replay the incremental chain (it restores exactly what is inside the
given archive, not the union of that archive and its ancestors).`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

var (
	restoreCompressor string
	restoreEncryption string
	restoreOutput     string
	restorePassword   string
	restoreQuiet      bool
)

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().StringVarP(&restoreCompressor, "compressor", "c", "none", "Compression the archive was written with")
	restoreCmd.Flags().StringVarP(&restoreEncryption, "encryption", "e", "", "Cipher the archive was encrypted with, if any")
	restoreCmd.Flags().StringVarP(&restoreOutput, "output", "o", "", "Directory to restore into (default: original absolute paths)")
	restoreCmd.Flags().StringVarP(&restorePassword, "password", "p", "", "Decryption password (discouraged; omit to be prompted)")
	restoreCmd.Flags().BoolVarP(&restoreQuiet, "quiet", "q", false, "Suppress progress output")
}

func runRestore(cmd *cobra.Command, args []string) error {
	archivePath := args[0]
	compression := archive.Compression(restoreCompressor)
	if !archive.Valid(compression) {
		return fmt.Errorf("unknown compressor %q", restoreCompressor)
	}

	reporter := NewReporter(restoreQuiet)

	if restoreEncryption != "" {
		if _, _, kerr := crypto.KeySizes(crypto.CipherID(restoreEncryption)); kerr != nil {
			return fmt.Errorf("unknown cipher %q", restoreEncryption)
		}

		var password []byte
		var scrubPw []byte
		if restorePassword != "" {
			password = []byte(restorePassword)
		} else {
			pw, err := ReadPasswordInteractive(false)
			if err != nil {
				return fmt.Errorf("password input: %w", err)
			}
			password = pw
			scrubPw = pw
		}
		defer func() {
			if scrubPw != nil {
				crypto.ScrubPassword(scrubPw)
			}
		}()

		plainPath := archivePath + ".restore-tmp"
		if err := crypto.DecryptFile(archivePath, plainPath, password, crypto.CipherID(restoreEncryption), crypto.Options{}); err != nil {
			reporter.PrintError("%v", err)
			return err
		}
		defer os.Remove(plainPath)
		archivePath = plainPath
	}

	reporter.Phase("extract")
	restored, err := archive.ExtractAll(archivePath, compression, restoreOutput)
	if err != nil {
		reporter.PrintError("%v", err)
		return err
	}

	reporter.PrintSuccess("Restored %d file(s)", len(restored))
	return nil
}
