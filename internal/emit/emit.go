// Package emit owns cc2's code and data buffers: bounds-checked byte
// emission, rel32 patch-site bookkeeping for jumps, and the per-call
// scratch-buffer handling the expression code generator uses to build
// arguments before splicing them into the main stream (spec.md §3,
// §4.5, §4.6).
//
// Grounded on the teacher's X86_64Generator (internal/codegen/linux):
// an append-only code slice plus a fixups list of (offset, target)
// pairs resolved in a second pass. cc2 generalises this to two
// buffers (code and data), an explicit capacity bound per spec.md §3,
// and the rel32-vs-rel32-absolute patch split spec.md §4.5 requires.
package emit

import (
	"encoding/binary"
	"fmt"
)

// Capacity limits, per spec.md §3.
const (
	MaxCodeBytes     = 256 * 1024
	MaxDataBytes     = 192 * 1024
	MaxArgScratch    = 16  // call arguments
	MaxArgScratchLen = 160 // bytes per argument scratch buffer
	MaxPostScratchLen = 256 // for-loop post-expression scratch buffer
)

// OverflowError reports a buffer exhausted past its capacity.
type OverflowError struct {
	Buffer string
	Cap    int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("[cc2_emit] FAIL buffer overflow: %s exhausted (cap %d)", e.Buffer, e.Cap)
}

// Buffer is a bounds-checked, append-only byte buffer supporting
// after-the-fact patches at recorded offsets.
type Buffer struct {
	name string
	cap  int
	buf  []byte
}

// NewBuffer creates an empty buffer with the given capacity.
func NewBuffer(name string, capacity int) *Buffer {
	return &Buffer{name: name, cap: capacity, buf: make([]byte, 0, capacity)}
}

// Len returns the current write cursor, i.e. the offset the next
// emitted byte will land at.
func (b *Buffer) Len() int { return len(b.buf) }

// Bytes returns the buffer's contents.
func (b *Buffer) Bytes() []byte { return b.buf }

// Emit appends bs, returning the offset it was written at.
func (b *Buffer) Emit(bs []byte) (int, error) {
	if len(b.buf)+len(bs) > b.cap {
		return 0, &OverflowError{Buffer: b.name, Cap: b.cap}
	}
	off := len(b.buf)
	b.buf = append(b.buf, bs...)
	return off, nil
}

// EmitByte appends a single byte.
func (b *Buffer) EmitByte(v byte) (int, error) {
	return b.Emit([]byte{v})
}

// PatchRel32 back-fills a previously emitted rel32 placeholder at
// site with target-(site+4) (spec.md §4.5).
func (b *Buffer) PatchRel32(site, target int) {
	rel := int32(target - (site + 4))
	binary.LittleEndian.PutUint32(b.buf[site:site+4], uint32(rel))
}

// PatchRel32Abs back-fills site with targetAbs-(codeBase+site+4), the
// absolute-target patch variant used for builtin calls.
func (b *Buffer) PatchRel32Abs(site int, codeBase uint32, targetAbs uint32) {
	rel := int32(targetAbs) - int32(codeBase) - int32(site+4)
	binary.LittleEndian.PutUint32(b.buf[site:site+4], uint32(rel))
}

// PatchImm32 overwrites a previously emitted 4-byte immediate field
// with v directly (as opposed to a rel32 displacement). Used for the
// prologue's FRAME size, known only once the function body's closing
// `}` has been parsed.
func (b *Buffer) PatchImm32(site int, v int32) {
	binary.LittleEndian.PutUint32(b.buf[site:site+4], uint32(v))
}

// PatchList accumulates patch sites sharing a common target resolved
// later (break/continue lists, if/else ends, switch dispatch tails —
// spec.md §4.7).
type PatchList struct {
	Sites []int
}

// Add records one more patch site.
func (p *PatchList) Add(site int) { p.Sites = append(p.Sites, site) }

// ResolveTo patches every recorded site against target and clears the
// list.
func (p *PatchList) ResolveTo(buf *Buffer, target int) {
	for _, site := range p.Sites {
		buf.PatchRel32(site, target)
	}
	p.Sites = nil
}

// ArgScratch is one call argument's private code buffer (spec.md
// §4.6: "per-argument scratch code buffers, up to 16 arguments, each
// ≤160 bytes").
type ArgScratch struct {
	code []byte
}

// NewArgScratch creates an empty argument scratch buffer.
func NewArgScratch() *ArgScratch { return &ArgScratch{} }

// Emit appends bs to the scratch buffer, enforcing the per-argument
// cap.
func (a *ArgScratch) Emit(bs []byte) error {
	if len(a.code)+len(bs) > MaxArgScratchLen {
		return &OverflowError{Buffer: "call-argument scratch", Cap: MaxArgScratchLen}
	}
	a.code = append(a.code, bs...)
	return nil
}

// Bytes returns the scratch buffer's contents.
func (a *ArgScratch) Bytes() []byte { return a.code }

// PostScratch is the for-loop post-expression scratch buffer (spec.md
// §4.7: "post is captured into a scratch code buffer (≤256 bytes)").
type PostScratch struct {
	code []byte
}

// NewPostScratch creates an empty post-expression scratch buffer.
func NewPostScratch() *PostScratch { return &PostScratch{} }

// Emit appends bs, enforcing the scratch-buffer cap.
func (p *PostScratch) Emit(bs []byte) error {
	if len(p.code)+len(bs) > MaxPostScratchLen {
		return &OverflowError{Buffer: "for-post scratch", Cap: MaxPostScratchLen}
	}
	p.code = append(p.code, bs...)
	return nil
}

// Bytes returns the scratch buffer's contents.
func (p *PostScratch) Bytes() []byte { return p.code }
