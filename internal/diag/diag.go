// Package diag is cc2's host log channel: every compiler phase writes
// its diagnostics through a Reporter, which prefixes each line with
// the phase's `[cc2_<phase>]` tag and keeps the single global failure
// counter spec.md §7 describes ("a single global failure counter is
// incremented; the driver inspects it at the end of each phase").
//
// Grounded on the teacher's own diagnostic style
// (lcox74-bfcc/cmd/bfcc/main.go writes plain fmt.Fprintf(os.Stderr, ...)
// lines and exits on error) generalised into a small reusable type so
// every package can report through the same channel and counter
// rather than each importing "fmt"/"os" directly.
package diag

import (
	"fmt"
	"io"
	"os"
)

// Reporter accumulates diagnostics and a failure count.
type Reporter struct {
	w        io.Writer
	failures int
}

// New creates a Reporter writing to w. A nil w defaults to os.Stderr.
func New(w io.Writer) *Reporter {
	if w == nil {
		w = os.Stderr
	}
	return &Reporter{w: w}
}

// Failures returns the number of diagnostics reported so far.
func (r *Reporter) Failures() int { return r.failures }

// OK reports whether no failures have been recorded.
func (r *Reporter) OK() bool { return r.failures == 0 }

// FAIL writes a `[cc2_<phase>] FAIL <msg>` line and bumps the failure
// counter.
func (r *Reporter) FAIL(phase, format string, args ...interface{}) {
	r.failures++
	fmt.Fprintf(r.w, "[cc2_%s] FAIL %s\n", phase, fmt.Sprintf(format, args...))
}

// Info writes an informational line without affecting the counter.
func (r *Reporter) Info(phase, format string, args ...interface{}) {
	fmt.Fprintf(r.w, "[cc2_%s] %s\n", phase, fmt.Sprintf(format, args...))
}

// Status writes the terminal `status PASS`/`status FAIL` line
// (spec.md §6) reflecting the current failure count.
func (r *Reporter) Status() {
	if r.OK() {
		fmt.Fprintln(r.w, "status PASS")
	} else {
		fmt.Fprintln(r.w, "status FAIL")
	}
}
