package crypto

import "sync"

var rlimitMu sync.Mutex
var rlimitDepth int

// suppressCoreDumps disables core dumps for the duration of any operation
// that holds a password or derived key in memory, restoring the prior
// limit when the last caller releases it. Reference-counted so nested
// password-bearing sections (e.g. decrypt-then-reencrypt in one run)
// don't clobber each other's saved limit. The returned release func must
// be called exactly once, typically via defer.
//
// Failure to disable core dumps is logged by the caller as a warning; it
// is not treated as fatal.
func suppressCoreDumps() (release func(), err error) {
	rlimitMu.Lock()
	defer rlimitMu.Unlock()

	if rlimitDepth == 0 {
		if err := platformDisableCoreDumps(); err != nil {
			return func() {}, err
		}
	}
	rlimitDepth++

	return func() {
		rlimitMu.Lock()
		defer rlimitMu.Unlock()
		rlimitDepth--
		if rlimitDepth == 0 {
			platformRestoreCoreDumps()
		}
	}, nil
}
