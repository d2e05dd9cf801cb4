package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathanrlemos/ezbackup/internal/archive"
	orchestrator "github.com/jonathanrlemos/ezbackup/internal/backup"
	"github.com/jonathanrlemos/ezbackup/internal/config"
	"github.com/jonathanrlemos/ezbackup/internal/crypto"
	"github.com/jonathanrlemos/ezbackup/internal/digest"
)

func init() {
	backupCmd.SilenceErrors = true
	backupCmd.SilenceUsage = true
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run an incremental backup",
	Long: `Walk the configured directories, archive what is new or changed
since the previous run, and write a fresh archive to the output
directory.

Flags override whatever is stored in the config file; a successful run
writes the options it used, flag overrides included, back to the config
file, with its own archive path as the next run's prev_backup.

Examples:
  ezbackup backup -d /home/user/docs -o /home/user/Backups

  ezbackup backup -d /home/user/docs -e aes-256-cbc -c gzip`,
	RunE: runBackup,
}

var (
	backupDirectories []string
	backupExclude     []string
	backupChecksum    string
	backupCompressor  string
	backupEncryption  string
	backupOutput      string
	backupPassword    string
	backupUsername    string
	backupQuiet       bool
)

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().StringArrayVarP(&backupDirectories, "directories", "d", nil, "Directories to back up (repeatable)")
	backupCmd.Flags().StringArrayVarP(&backupExclude, "exclude", "x", nil, "Directories to exclude (repeatable)")
	backupCmd.Flags().StringVarP(&backupChecksum, "checksum", "C", "", "Digest algorithm: md5, sha1, sha256, sha512")
	backupCmd.Flags().StringVarP(&backupCompressor, "compressor", "c", "", "Compression: none, gzip, bzip2, xz, lz4")
	backupCmd.Flags().StringVarP(&backupEncryption, "encryption", "e", "", "Cipher name, e.g. aes-256-cbc (empty disables encryption)")
	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "Output directory for the archive")
	backupCmd.Flags().StringVarP(&backupPassword, "password", "p", "", "Encryption password (discouraged; omit to be prompted)")
	backupCmd.Flags().StringVarP(&backupUsername, "username", "u", "", "Cloud upload username (passthrough only)")
	backupCmd.Flags().BoolVarP(&backupQuiet, "quiet", "q", false, "Suppress progress output")
}

func runBackup(cmd *cobra.Command, args []string) error {
	configPath, err := config.DefaultPath()
	if err != nil {
		return err
	}

	opts, err := config.Load(configPath)
	if err != nil {
		return err
	}
	opts.ConfigPath = configPath

	if len(backupDirectories) > 0 {
		opts.Directories = backupDirectories
	}
	if len(opts.Directories) == 0 {
		return fmt.Errorf("no directories configured; pass -d or run %q first", "ezbackup configure")
	}
	if len(backupExclude) > 0 {
		opts.Exclude = backupExclude
	}
	if backupChecksum != "" {
		if !digest.Valid(digest.Algorithm(backupChecksum)) {
			return fmt.Errorf("unknown checksum algorithm %q", backupChecksum)
		}
		opts.HashAlgorithm = digest.Algorithm(backupChecksum)
	}
	if backupCompressor != "" {
		if !archive.Valid(archive.Compression(backupCompressor)) {
			return fmt.Errorf("unknown compressor %q", backupCompressor)
		}
		opts.Compression = archive.Compression(backupCompressor)
	}
	if backupEncryption != "" {
		if _, _, kerr := crypto.KeySizes(crypto.CipherID(backupEncryption)); kerr != nil {
			return fmt.Errorf("unknown cipher %q", backupEncryption)
		}
		opts.Cipher = crypto.CipherID(backupEncryption)
	}
	if backupOutput != "" {
		opts.OutputDirectory = backupOutput
	}
	if backupUsername != "" {
		opts.Username = backupUsername
	}

	var scrubPw []byte
	if opts.Cipher != "" {
		switch {
		case backupPassword != "":
			opts.Password = []byte(backupPassword)
		case len(opts.Password) == 0:
			pw, err := ReadPasswordInteractive(true)
			if err != nil {
				return fmt.Errorf("password input: %w", err)
			}
			opts.Password = pw
			scrubPw = pw
		}
	}
	defer func() {
		if scrubPw != nil {
			crypto.ScrubPassword(scrubPw)
		}
	}()

	reporter := NewReporter(backupQuiet)

	finalPath, err := orchestrator.Run(cmd.Context(), opts, reporter)
	if err != nil {
		reporter.PrintError("%v", err)
		return err
	}

	reporter.PrintSuccess("Backup written to %s", finalPath)
	return nil
}
