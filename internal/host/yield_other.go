//go:build !linux

package host

import "runtime"

// Yield falls back to runtime.Gosched on platforms without
// sched_yield(2); cupid-os's real host is Linux-derived, but cc2's
// own build should not fail to compile elsewhere.
func (OS) Yield() { runtime.Gosched() }
