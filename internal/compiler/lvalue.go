package compiler

import (
	"github.com/cupidthecat/cc2/internal/symtab"
	"github.com/cupidthecat/cc2/internal/token"
	"github.com/cupidthecat/cc2/internal/x86"
)

// lvalue describes a storage location an assignment or ++/-- can
// target. Direct lvalues (a local slot or a known data address) carry
// their own addressing info; indirect lvalues (subscript and
// struct-pointer-field access) instead leave their base address in
// %ebx; compileExprStmtCore saves %ebx on the stack around the
// right-hand side (which may itself subscript or call), so it
// survives between a load and a later store (spec.md §4.6).
type lvalue struct {
	indirect bool
	isLocal  bool
	frameOff int // local-slot offset (direct), or a field displacement added to %ebx (indirect)
	dataAddr uint32
	elemSize int
}

// compileLvalueRef parses an assignable expression (identifier,
// subscript, or dotted struct-pointer-field access) and returns its
// storage descriptor without loading or storing through it.
func (c *Compiler) compileLvalueRef() (lvalue, bool) {
	name, ok := c.expect(token.Ident)
	if !ok {
		return lvalue{}, false
	}

	if c.at(token.Dot) {
		return c.compileDottedLvalue(name.Text)
	}
	if c.at(token.LBracket) {
		return c.compileSubscriptLvalue(name.Text)
	}
	return c.simpleLvalue(name.Text)
}

func (c *Compiler) simpleLvalue(name string) (lvalue, bool) {
	lv, ok := c.findSimpleLvalue(name)
	if !ok {
		c.fail("parse", "unknown local '%s'", name)
	}
	return lv, ok
}

// findSimpleLvalue resolves a bare identifier to its storage
// location (parameter → local → global, spec.md §4.3) without
// reporting a failure on miss, so callers can fall back to a
// macro/builtin constant lookup.
func (c *Compiler) findSimpleLvalue(name string) (lvalue, bool) {
	if p, found := c.findParam(name); found {
		c.lastLvalue = lvLocalSlot
		return lvalue{isLocal: true, frameOff: p.offset, elemSize: 4}, true
	}
	if slot, found := c.sym.FindLocal(name, 0); found {
		c.lastLvalue = lvLocalSlot
		return lvalue{isLocal: true, frameOff: -symtab.FrameOffset(slot), elemSize: 4}, true
	}
	if g, found := c.sym.FindGlobal(name); found {
		if g.ElemSize == 1 {
			c.lastLvalue = lvGlobalByte
		} else {
			c.lastLvalue = lvGlobalWord
		}
		return lvalue{dataAddr: uint32(dataBase + g.Offset), elemSize: g.ElemSize}, true
	}
	return lvalue{}, false
}

// compileDottedLvalue handles `p.field` (struct pointer: %ebx gets the
// pointer's value, the field offset becomes the displacement), a
// local struct value's flattened field (direct %ebp-relative, no
// indirection needed since the bytes live in the frame itself), and
// the flattened `a.field` (global struct value: a direct global alias
// registered at struct-flatten time). Any of the three forms may be
// followed by `[index]` when the field itself is an array field (e.g.
// `t->text[i]`, `q.text[i]`) — the chain is resolved before the
// caller loads/stores the result. Nested dotted access (`p.b.c`) is
// rejected, per spec.md §4.6.
func (c *Compiler) compileDottedLvalue(base string) (lvalue, bool) {
	c.advance() // .
	field, ok := c.expect(token.Ident)
	if !ok {
		c.fail("parse", "expected field after '.'")
		return lvalue{}, false
	}
	if c.at(token.Dot) {
		c.fail("parse", "unsupported nested dotted value '%s.%s'", base, field.Text)
		return lvalue{}, false
	}

	if lsv, found := c.sym.FindLocalStruct(base); found {
		return c.compileLocalStructFieldLvalue(base, lsv, field.Text)
	}

	if structIdx, isPtr := c.structPointerOf(base); isPtr {
		st := c.sym.Structs[structIdx]
		f, found := st.FieldByName(field.Text)
		if !found {
			c.fail("parse", "unknown field '%s' on struct pointer '%s'", field.Text, base)
			return lvalue{}, false
		}
		if c.at(token.LBracket) {
			if !f.IsArray {
				c.fail("parse", "'%s.%s' is not an array field", base, field.Text)
				return lvalue{}, false
			}
			c.advance() // [
			return c.compileIndexTail(f.ElemSize, func() {
				c.loadIdentInto(base, x86.EBX)
				if f.Offset != 0 {
					c.emit(x86.LeaReg(x86.EBX, x86.EBX, f.Offset))
				}
			})
		}
		c.loadIdentInto(base, x86.EBX)
		c.lastLvalue = lvIndirect
		return lvalue{indirect: true, frameOff: f.Offset, elemSize: f.ElemSize}, true
	}

	flat := structFieldGlobalName(base, field.Text)
	if g, found := c.sym.FindGlobal(flat); found {
		if c.at(token.LBracket) {
			if !g.IsArray {
				c.fail("parse", "'%s.%s' is not an array field", base, field.Text)
				return lvalue{}, false
			}
			addr := uint32(dataBase + g.Offset)
			c.advance() // [
			return c.compileIndexTail(g.ElemSize, func() {
				c.emit(x86.MovRegImm32(x86.EBX, int32(addr)))
			})
		}
		if g.ElemSize == 1 {
			c.lastLvalue = lvGlobalByte
		} else {
			c.lastLvalue = lvGlobalWord
		}
		return lvalue{dataAddr: uint32(dataBase + g.Offset), elemSize: g.ElemSize}, true
	}
	c.fail("parse", "unknown dotted value '%s.%s'", base, field.Text)
	return lvalue{}, false
}

// compileLocalStructFieldLvalue resolves `v.field` where v is a local
// struct value: the field's address is base's reserved frame block
// plus the field's byte offset, computed directly — no %ebx hop is
// needed unless the field is itself an array being subscripted.
func (c *Compiler) compileLocalStructFieldLvalue(base string, lsv symtab.LocalStruct, fieldName string) (lvalue, bool) {
	st := c.sym.Structs[lsv.StructIdx]
	f, found := st.FieldByName(fieldName)
	if !found {
		c.fail("parse", "unknown field '%s' on local struct '%s'", fieldName, base)
		return lvalue{}, false
	}
	frameBase := -symtab.FrameOffset(lsv.Base + lsv.Length - 1)

	if c.at(token.LBracket) {
		if !f.IsArray {
			c.fail("parse", "'%s.%s' is not an array field", base, fieldName)
			return lvalue{}, false
		}
		fieldOff := frameBase + f.Offset
		c.advance() // [
		return c.compileIndexTail(f.ElemSize, func() {
			c.emit(x86.LeaLocal(x86.EBX, fieldOff))
		})
	}

	c.lastLvalue = lvLocalSlot
	return lvalue{isLocal: true, frameOff: frameBase + f.Offset, elemSize: f.ElemSize}, true
}

// structPointerOf reports whether name is a struct-pointer local,
// parameter, or global, and its struct index.
func (c *Compiler) structPointerOf(name string) (int, bool) {
	if p, found := c.findParam(name); found && p.structIdx >= 0 {
		return p.structIdx, true
	}
	if slot, found := c.sym.FindLocal(name, 0); found {
		if l := c.sym.Locals[slot]; l.StructIdx >= 0 {
			return l.StructIdx, true
		}
	}
	if g, found := c.sym.FindGlobal(name); found && g.IsStructPtr {
		return g.StructIdx, true
	}
	return 0, false
}

// loadIdentInto emits code loading the (word-sized) value of a simple
// identifier into reg, used to fetch a struct pointer's value ahead of
// field-offset arithmetic.
func (c *Compiler) loadIdentInto(name string, reg int) {
	if p, found := c.findParam(name); found {
		c.emit(x86.LoadLocal(reg, p.offset))
		return
	}
	if slot, found := c.sym.FindLocal(name, 0); found {
		c.emit(x86.LoadLocal(reg, -symtab.FrameOffset(slot)))
		return
	}
	if g, found := c.sym.FindGlobal(name); found {
		c.emit(x86.LoadAbs(reg, uint32(dataBase+g.Offset)))
		return
	}
	c.fail("parse", "unknown identifier '%s'", name)
}

// compileSubscriptLvalue handles `name[index]`: the base address
// lands in %ebx, the index (scaled by elemSize) is added in, leaving
// the final address in %ebx (spec.md §4.6).
func (c *Compiler) compileSubscriptLvalue(name string) (lvalue, bool) {
	c.advance() // [
	elemSize := 4
	var baseAddrEmit func()

	switch {
	case func() bool { _, ok := c.sym.FindLocalArray(name); return ok }():
		arr, _ := c.sym.FindLocalArray(name)
		base := -symtab.FrameOffset(arr.Base + arr.Length - 1)
		baseAddrEmit = func() { c.emit(x86.LeaLocal(x86.EBX, base)) }
	case func() bool { g, ok := c.sym.FindGlobal(name); return ok && g.IsArray }():
		g, _ := c.sym.FindGlobal(name)
		elemSize = g.ElemSize
		addr := uint32(dataBase + g.Offset)
		baseAddrEmit = func() { c.emit(x86.MovRegImm32(x86.EBX, int32(addr))) }
	default:
		if p, found := c.findParam(name); found {
			baseAddrEmit = func() { c.emit(x86.LoadLocal(x86.EBX, p.offset)) }
		} else if slot, found := c.sym.FindLocal(name, 0); found {
			off := -symtab.FrameOffset(slot)
			baseAddrEmit = func() { c.emit(x86.LoadLocal(x86.EBX, off)) }
		} else if g, found := c.sym.FindGlobal(name); found {
			elemSize = g.ElemSize
			addr := uint32(dataBase + g.Offset)
			baseAddrEmit = func() { c.emit(x86.LoadAbs(x86.EBX, addr)) }
		} else {
			c.fail("parse", "unknown subscript base '%s'", name)
			return lvalue{}, false
		}
	}

	return c.compileIndexTail(elemSize, baseAddrEmit)
}

// compileIndexTail parses the `expr ]` tail of a subscript (the
// leading `[` already consumed) and computes the indexed address into
// %ebx: the index is compiled first and baseAddrEmit — which loads or
// computes the base address — runs only afterward, so an index
// expression that itself resolves through %ebx (a nested subscript or
// struct-pointer field) can never clobber a base address latched in
// early (spec.md §4.6).
func (c *Compiler) compileIndexTail(elemSize int, baseAddrEmit func()) (lvalue, bool) {
	if !c.compileExpr() { // index -> %eax
		return lvalue{}, false
	}
	if _, ok := c.expect(token.RBracket); !ok {
		return lvalue{}, false
	}

	if elemSize == 4 {
		c.emit(x86.ShlImm8(x86.EAX, 2))
	}
	baseAddrEmit()
	c.emit(x86.AddRR(x86.EBX, x86.EAX))
	c.lastLvalue = lvIndirect
	return lvalue{indirect: true, frameOff: 0, elemSize: elemSize}, true
}

// loadLvalue emits code loading lv's current value into %eax.
func (c *Compiler) loadLvalue(lv lvalue) {
	switch {
	case lv.indirect:
		if lv.elemSize == 1 {
			c.emit(x86.LoadRegU8(x86.EAX, x86.EBX, lv.frameOff))
		} else {
			c.emit(x86.LoadReg(x86.EAX, x86.EBX, lv.frameOff))
		}
	case lv.isLocal:
		if lv.elemSize == 1 {
			c.emit(x86.LoadLocalU8(x86.EAX, lv.frameOff))
		} else {
			c.emit(x86.LoadLocal(x86.EAX, lv.frameOff))
		}
	default:
		if lv.elemSize == 1 {
			c.emit(x86.LoadAbsU8(x86.EAX, lv.dataAddr))
		} else {
			c.emit(x86.LoadAbs(x86.EAX, lv.dataAddr))
		}
	}
}

// storeLvalue emits code storing %eax into lv. For indirect lvalues
// the address must still be live in %ebx from when lv was produced.
func (c *Compiler) storeLvalue(lv lvalue) {
	switch {
	case lv.indirect:
		if lv.elemSize == 1 {
			c.emit(x86.StoreRegU8(x86.EBX, x86.EAX, lv.frameOff))
		} else {
			c.emit(x86.StoreReg(x86.EBX, x86.EAX, lv.frameOff))
		}
	case lv.isLocal:
		if lv.elemSize == 1 {
			c.emit(x86.StoreLocalU8(x86.EAX, lv.frameOff))
		} else {
			c.emit(x86.StoreLocal(x86.EAX, lv.frameOff))
		}
	default:
		if lv.elemSize == 1 {
			c.emit(x86.StoreAbsU8(lv.dataAddr, x86.EAX))
		} else {
			c.emit(x86.StoreAbs(lv.dataAddr, x86.EAX))
		}
	}
}
