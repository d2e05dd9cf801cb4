package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set by main.go.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ezbackup",
	Short: "Incremental, compressed, optionally encrypted backups",
	Long: `ezbackup walks one or more directories, archives what changed since
the last run, and optionally compresses and encrypts the result.

Each run records a per-file digest index inside the archive so the next
run can tell new, changed, unchanged, and removed files apart; every
file is re-digested on each run, but unchanged files are not archived
again.`,
	Version: Version,
}

// globalCancel is set by Execute so the SIGINT/SIGTERM handler below can
// cancel whichever command is currently running.
var globalCancel context.CancelFunc

// Execute runs the CLI application and returns the process exit code.
func Execute(version string) int {
	Version = version
	rootCmd.Version = version

	ctx, cancel := context.WithCancel(context.Background())
	globalCancel = cancel
	rootCmd.SetContext(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
