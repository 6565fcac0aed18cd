//go:build linux

package host

import "golang.org/x/sys/unix"

// Yield invokes sched_yield(2), the cooperative-yield contract
// spec.md §5 describes for the self-hosted compiler: a hook the OS
// scheduler can use to service other tasks, invoked every 4,096
// lex/parse iterations.
//
// Grounded on xyproto-vibe67's direct use of golang.org/x/sys/unix
// for raw syscalls — the only repo in the retrieval pack importing
// that package for anything beyond its go.mod listing.
func (OS) Yield() { _ = unix.Sched_yield() }
