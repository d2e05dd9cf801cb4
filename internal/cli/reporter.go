// Package cli wires ezbackup's cobra subcommands to the internal backup,
// config, and crypto packages.
package cli

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonathanrlemos/ezbackup/internal/change"
	"github.com/jonathanrlemos/ezbackup/internal/util"
)

// Reporter implements backup.ProgressReporter for terminal output. It
// prints one line per phase change, a throughput line for files large
// enough to be worth timing, and per-warning lines; there is no
// full-screen progress bar since the total byte count isn't known until
// the walk finishes.
type Reporter struct {
	mu        sync.Mutex
	quiet     bool
	phase     string
	seen      int
	started   map[string]fileStart
	runStart  time.Time
	cancelled atomic.Bool
}

type fileStart struct {
	at   time.Time
	size int64
}

// progressThreshold is the file size above which a per-file throughput
// line is worth printing; smaller files finish too fast for a MiB/s
// figure to mean anything.
const progressThreshold = 8 * util.MiB

// NewReporter creates a CLI progress reporter. If quiet is true, only
// warnings and errors are printed; the final summary is suppressed too.
func NewReporter(quiet bool) *Reporter {
	return &Reporter{
		quiet:    quiet,
		started:  make(map[string]fileStart),
		runStart: time.Now(),
	}
}

func (r *Reporter) Phase(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = name
	if !r.quiet {
		fmt.Fprintf(os.Stderr, "==> %s (%s elapsed)\n", name, util.Timeify(int(time.Since(r.runStart).Seconds())))
	}
}

func (r *Reporter) FileStarted(path string, size int64) {
	r.mu.Lock()
	r.seen++
	n := r.seen
	if size >= progressThreshold {
		r.started[path] = fileStart{at: time.Now(), size: size}
	}
	r.mu.Unlock()
	if !r.quiet && n%200 == 0 {
		fmt.Fprintf(os.Stderr, "  ...%d files scanned\n", n)
	}
}

func (r *Reporter) FileDone(path string, status change.Status) {
	r.mu.Lock()
	start, ok := r.started[path]
	if ok {
		delete(r.started, path)
	}
	quiet := r.quiet
	r.mu.Unlock()

	if !ok || quiet || status != change.Changed && status != change.New {
		return
	}

	_, speed, _ := util.Statify(start.size, start.size, start.at)
	fmt.Fprintf(os.Stderr, "  %s (%s, %.1f MiB/s)\n", path, util.Sizeify(start.size), speed)
}

func (r *Reporter) FileWarn(path string, err error) {
	fmt.Fprintf(os.Stderr, "warning: %s: %v\n", path, err)
}

// IsCancelled reports whether Cancel has been called.
func (r *Reporter) IsCancelled() bool {
	return r.cancelled.Load()
}

// Cancel marks the run as cancelled, as reported by IsCancelled; ezbackup
// actually cancels through the command's context, and PrintError does
// not consult this flag.
func (r *Reporter) Cancel() {
	r.cancelled.Store(true)
}

// PrintError prints an error message to stderr.
func (r *Reporter) PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

// PrintSuccess prints a success message to stderr, unless quiet.
func (r *Reporter) PrintSuccess(format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	fmt.Fprintf(os.Stderr, "Total time: %s\n", util.Timeify(int(time.Since(r.runStart).Seconds())))
}
