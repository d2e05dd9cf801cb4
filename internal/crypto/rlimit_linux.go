//go:build linux

package crypto

import (
	"sync"

	"golang.org/x/sys/unix"
)

var savedCoreLimit unix.Rlimit
var saveOnce sync.Once
var saveErr error

func platformDisableCoreDumps() error {
	saveOnce.Do(func() {
		saveErr = unix.Getrlimit(unix.RLIMIT_CORE, &savedCoreLimit)
	})
	if saveErr != nil {
		return saveErr
	}

	zero := unix.Rlimit{Cur: 0, Max: savedCoreLimit.Max}
	if err := unix.Setrlimit(unix.RLIMIT_CORE, &zero); err != nil {
		return err
	}
	return nil
}

func platformRestoreCoreDumps() {
	_ = unix.Setrlimit(unix.RLIMIT_CORE, &savedCoreLimit)
	saveOnce = sync.Once{}
}
