//go:build !linux

package crypto

// Core-dump suppression is a Linux rlimit concept; on other platforms this
// is a no-op and the caller's warning-level log line covers the gap.
func platformDisableCoreDumps() error { return nil }

func platformRestoreCoreDumps() {}
