package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathanrlemos/ezbackup/internal/archive"
	"github.com/jonathanrlemos/ezbackup/internal/config"
	"github.com/jonathanrlemos/ezbackup/internal/crypto"
	"github.com/jonathanrlemos/ezbackup/internal/digest"
)

func init() {
	configureCmd.SilenceErrors = true
	configureCmd.SilenceUsage = true
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write persisted defaults for future backup runs",
	Long: `Persist directories, exclusions, checksum/compression/encryption
choices, and the output directory to the config file, so a plain
"ezbackup backup" needs no flags.

Running with no flags at all prints the current configuration.`,
	RunE: runConfigure,
}

var (
	configDirectories []string
	configExclude     []string
	configChecksum    string
	configCompressor  string
	configEncryption  string
	configOutput      string
	configPassword    string
)

func init() {
	rootCmd.AddCommand(configureCmd)

	configureCmd.Flags().StringArrayVarP(&configDirectories, "directories", "d", nil, "Directories to back up (repeatable)")
	configureCmd.Flags().StringArrayVarP(&configExclude, "exclude", "x", nil, "Directories to exclude (repeatable)")
	configureCmd.Flags().StringVarP(&configChecksum, "checksum", "C", "", "Digest algorithm: md5, sha1, sha256, sha512")
	configureCmd.Flags().StringVarP(&configCompressor, "compressor", "c", "", "Compression: none, gzip, bzip2, xz, lz4")
	configureCmd.Flags().StringVarP(&configEncryption, "encryption", "e", "", "Cipher name, e.g. aes-256-cbc (empty disables encryption)")
	configureCmd.Flags().StringVarP(&configOutput, "output", "o", "", "Output directory for archives")
	configureCmd.Flags().StringVarP(&configPassword, "password", "p", "", "Encryption password (discouraged; omit to be prompted)")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	path, err := config.DefaultPath()
	if err != nil {
		return err
	}

	opts, err := config.Load(path)
	if err != nil {
		return err
	}

	if len(configDirectories) == 0 && len(configExclude) == 0 && configChecksum == "" &&
		configCompressor == "" && configEncryption == "" && configOutput == "" {
		printConfig(path, opts)
		return nil
	}

	if len(configDirectories) > 0 {
		opts.Directories = configDirectories
	}
	if len(configExclude) > 0 {
		opts.Exclude = configExclude
	}
	if configChecksum != "" {
		if !digest.Valid(digest.Algorithm(configChecksum)) {
			return fmt.Errorf("unknown checksum algorithm %q", configChecksum)
		}
		opts.HashAlgorithm = digest.Algorithm(configChecksum)
	}
	if configCompressor != "" {
		if !archive.Valid(archive.Compression(configCompressor)) {
			return fmt.Errorf("unknown compressor %q", configCompressor)
		}
		opts.Compression = archive.Compression(configCompressor)
	}
	if configEncryption != "" {
		if _, _, kerr := crypto.KeySizes(crypto.CipherID(configEncryption)); kerr != nil {
			return fmt.Errorf("unknown cipher %q", configEncryption)
		}
		opts.Cipher = crypto.CipherID(configEncryption)
	}
	if configOutput != "" {
		opts.OutputDirectory = configOutput
	}

	if opts.Cipher != "" {
		var scrubPw []byte
		if configPassword != "" {
			opts.Password = []byte(configPassword)
		} else {
			pw, err := ReadPasswordInteractive(true)
			if err != nil {
				return fmt.Errorf("password input: %w", err)
			}
			opts.Password = pw
			scrubPw = pw
		}
		defer func() {
			if scrubPw != nil {
				crypto.ScrubPassword(scrubPw)
			}
		}()
	}

	if err := config.Save(path, opts); err != nil {
		return err
	}

	fmt.Printf("Configuration saved to %s\n", path)
	return nil
}

func printConfig(path string, opts config.Options) {
	fmt.Printf("Config file: %s\n", path)
	fmt.Printf("  Directories:  %v\n", opts.Directories)
	fmt.Printf("  Exclude:      %v\n", opts.Exclude)
	fmt.Printf("  Checksum:     %s\n", opts.HashAlgorithm)
	fmt.Printf("  Compressor:   %s\n", opts.Compression)
	if opts.Cipher != "" {
		fmt.Printf("  Encryption:   %s\n", opts.Cipher)
	} else {
		fmt.Printf("  Encryption:   (none)\n")
	}
	fmt.Printf("  Output:       %s\n", opts.OutputDirectory)
	fmt.Printf("  Prev backup:  %s\n", opts.PrevBackup)
}
