// Package change classifies a freshly-digested file against a prior
// DigestIndex as Unchanged, Changed, or New.
package change

import "github.com/jonathanrlemos/ezbackup/internal/index"

// Status is the outcome of classifying one file.
type Status int

const (
	// Unchanged means the prior index has the same (path, hex) pair.
	// The file is omitted from the new archive's payload, but the
	// caller still appends it to the current DigestIndex so subsequent
	// runs can detect unchanged status transitively.
	Unchanged Status = iota
	// Changed means the prior index has path but with a different hex.
	Changed
	// New means there is no prior index, or the prior index lacks path.
	New
)

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case New:
		return "new"
	default:
		return "unknown"
	}
}

// Classify compares (path, freshHex) against prior, which may be nil if
// no prior archive exists for this run.
func Classify(path, freshHex string, prior *index.Index) (Status, error) {
	if prior == nil {
		return New, nil
	}

	priorHex, ok, err := prior.Lookup(path)
	if err != nil {
		return 0, err
	}
	if !ok {
		return New, nil
	}
	if priorHex == freshHex {
		return Unchanged, nil
	}
	return Changed, nil
}

// ShouldStream reports whether a file with the given status should have
// its payload streamed into the archive: true for Changed and New, false
// for Unchanged.
func ShouldStream(s Status) bool {
	return s != Unchanged
}
