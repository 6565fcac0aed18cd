package compiler

import (
	"github.com/cupidthecat/cc2/internal/constfold"
	"github.com/cupidthecat/cc2/internal/elf32"
	"github.com/cupidthecat/cc2/internal/symtab"
	"github.com/cupidthecat/cc2/internal/token"
	"github.com/cupidthecat/cc2/internal/x86"
)

// foldConstant attempts compile-time constant folding per spec.md
// §4.4: integer literals, macro-identifier aliases, builtin constants,
// and a leading unary +/-.
func (c *Compiler) foldConstant() (int64, bool) {
	neg := false
	if c.at(token.Minus) {
		c.advance()
		neg = true
	} else if c.at(token.Plus) {
		c.advance()
	}

	switch {
	case c.at(token.IntLit):
		v := c.cur.IntVal
		c.advance()
		if neg {
			v = -v
		}
		return v, true
	case c.at(token.Ident):
		name := c.cur.Text
		var v int64
		var ok bool
		if c.macros != nil {
			v, ok = constfold.FromIdent(name, c.macros)
		} else {
			v, ok = constfold.Builtin(name)
		}
		if !ok {
			return 0, false
		}
		c.advance()
		if neg {
			v = -v
		}
		return v, true
	default:
		return 0, false
	}
}

// compileExpr parses and emits a full expression, leaving its value
// in %eax (spec.md §4.6 "value discipline").
func (c *Compiler) compileExpr() bool { return c.parseTernary() }

func (c *Compiler) parseTernary() bool {
	if !c.parseLogicalOr() {
		return false
	}
	if !c.at(token.Question) {
		return true
	}
	c.advance()

	c.emit(x86.TestRR(x86.EAX, x86.EAX))
	elseJmp, off := x86.JzRel32(0)
	elseSite, _ := c.code.Emit(elseJmp)
	elseSite += off

	if !c.compileExpr() {
		return false
	}
	if _, ok := c.expect(token.Colon); !ok {
		return false
	}
	endJmp, off2 := x86.JmpRel32(0)
	endSite, _ := c.code.Emit(endJmp)
	endSite += off2

	c.code.PatchRel32(elseSite, c.code.Len())
	if !c.parseTernary() {
		return false
	}
	c.code.PatchRel32(endSite, c.code.Len())
	return true
}

// precLevels orders binary operators lowest-to-highest, spec.md §4.6.
var precLevels = [][]token.Kind{
	{token.PipePipe},
	{token.AmpAmp},
	{token.Pipe},
	{token.Caret},
	{token.Amp},
	{token.EqEq, token.NotEq},
	{token.Lt, token.Le, token.Gt, token.Ge},
	{token.Shl, token.Shr},
	{token.Plus, token.Minus},
	{token.Star, token.Slash, token.Percent},
}

func (c *Compiler) parseLogicalOr() bool { return c.parseLevel(0) }

func (c *Compiler) parseLevel(level int) bool {
	if level >= len(precLevels) {
		return c.parseUnary()
	}
	if !c.parseLevel(level + 1) {
		return false
	}
	for containsKind(precLevels[level], c.cur.Kind) {
		op := c.cur.Kind
		c.advance()

		if op == token.AmpAmp || op == token.PipePipe {
			if !c.compileShortCircuit(op, level) {
				return false
			}
			continue
		}

		c.emit(x86.Push(x86.EAX)) // save left
		if !c.parseLevel(level + 1) {
			return false
		}
		c.emit(x86.MovRR(x86.ECX, x86.EAX)) // ecx = right
		c.emit(x86.Pop(x86.EAX))            // eax = left
		c.emitBinOp(op)
	}
	return true
}

func containsKind(ks []token.Kind, k token.Kind) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}

// emitBinOp emits the instruction combining %eax (left) and %ecx
// (right) into %eax, per spec.md §4.6: "push the left operand before
// evaluating the right, then pop into %ecx and combine." (cc2 pops
// the left back into %eax and keeps the right in %ecx, an equivalent
// ordering that lets every ALU helper address eax/ecx directly.)
func (c *Compiler) emitBinOp(op token.Kind) {
	switch op {
	case token.Plus:
		c.emit(x86.AddRR(x86.EAX, x86.ECX))
	case token.Minus:
		c.emit(x86.SubRR(x86.EAX, x86.ECX))
	case token.Star:
		c.emit(x86.ImulRR(x86.EAX, x86.ECX))
	case token.Slash:
		c.emit(x86.Cdq())
		c.emit(x86.IdivR(x86.ECX))
	case token.Percent:
		c.emit(x86.Cdq())
		c.emit(x86.IdivR(x86.ECX))
		c.emit(x86.MovRR(x86.EAX, x86.EDX))
	case token.Amp:
		c.emit(x86.AndRR(x86.EAX, x86.ECX))
	case token.Pipe:
		c.emit(x86.OrRR(x86.EAX, x86.ECX))
	case token.Caret:
		c.emit(x86.XorRR(x86.EAX, x86.ECX))
	case token.Shl:
		c.emit(x86.ShlCl(x86.EAX)) // %ecx already holds the shift count
	case token.Shr:
		c.emit(x86.SarCl(x86.EAX))
	case token.EqEq:
		c.emit(x86.CmpRR(x86.EAX, x86.ECX))
		c.emit(x86.SetCC(x86.CC_E))
	case token.NotEq:
		c.emit(x86.CmpRR(x86.EAX, x86.ECX))
		c.emit(x86.SetCC(x86.CC_NE))
	case token.Lt:
		c.emit(x86.CmpRR(x86.EAX, x86.ECX))
		c.emit(x86.SetCC(x86.CC_L))
	case token.Le:
		c.emit(x86.CmpRR(x86.EAX, x86.ECX))
		c.emit(x86.SetCC(x86.CC_LE))
	case token.Gt:
		c.emit(x86.CmpRR(x86.EAX, x86.ECX))
		c.emit(x86.SetCC(x86.CC_G))
	case token.Ge:
		c.emit(x86.CmpRR(x86.EAX, x86.ECX))
		c.emit(x86.SetCC(x86.CC_GE))
	}
}

// compileShortCircuit implements &&/|| by normalising both operands
// to 0/1 and bitwise-combining, with || renormalising the result
// (spec.md §4.6).
func (c *Compiler) compileShortCircuit(op token.Kind, level int) bool {
	c.emit(x86.TestRR(x86.EAX, x86.EAX))
	c.emit(x86.SetCC(x86.CC_NE))
	c.emit(x86.Push(x86.EAX))
	if !c.parseLevel(level + 1) {
		return false
	}
	c.emit(x86.TestRR(x86.EAX, x86.EAX))
	c.emit(x86.SetCC(x86.CC_NE))
	c.emit(x86.MovRR(x86.ECX, x86.EAX))
	c.emit(x86.Pop(x86.EAX))
	if op == token.AmpAmp {
		c.emit(x86.AndRR(x86.EAX, x86.ECX))
	} else {
		c.emit(x86.OrRR(x86.EAX, x86.ECX))
		c.emit(x86.TestRR(x86.EAX, x86.EAX))
		c.emit(x86.SetCC(x86.CC_NE))
	}
	return true
}

func (c *Compiler) parseUnary() bool {
	switch c.cur.Kind {
	case token.Bang:
		c.advance()
		if !c.parseUnary() {
			return false
		}
		c.emit(x86.TestRR(x86.EAX, x86.EAX))
		c.emit(x86.SetCC(x86.CC_E))
		return true
	case token.Tilde:
		c.advance()
		if !c.parseUnary() {
			return false
		}
		c.emit(x86.NotR(x86.EAX))
		return true
	case token.Minus:
		c.advance()
		if !c.parseUnary() {
			return false
		}
		c.emit(x86.NegR(x86.EAX))
		return true
	case token.Plus:
		c.advance()
		return c.parseUnary()
	case token.Amp:
		c.advance()
		return c.compileAddrOf()
	case token.Star:
		c.advance()
		if !c.parseUnary() {
			return false
		}
		c.emit(x86.LoadReg(x86.EAX, x86.EAX, 0))
		return true
	case token.PlusPlus, token.MinusMinus:
		return c.compilePreIncDec(c.cur.Kind)
	default:
		return c.parsePostfix()
	}
}

// compileAddrOf implements unary & (spec.md §4.6), including the
// `&p.field` form on a struct pointer, a local struct value, or a
// flattened global struct alias.
func (c *Compiler) compileAddrOf() bool {
	name, ok := c.expect(token.Ident)
	if !ok {
		c.fail("parse", "expected ident after '&'")
		return false
	}
	if c.at(token.Dot) {
		return c.compileAddrOfField(name.Text)
	}
	if p, found := c.findParam(name.Text); found {
		c.emit(x86.LeaLocal(x86.EAX, p.offset))
		return true
	}
	if slot, found := c.sym.FindLocal(name.Text, 0); found {
		c.emit(x86.LeaLocal(x86.EAX, -symtab.FrameOffset(slot)))
		return true
	}
	if g, found := c.sym.FindGlobal(name.Text); found {
		c.emit(x86.LeaAbs(x86.EAX, uint32(dataBase+g.Offset)))
		return true
	}
	c.fail("parse", "unknown identifier '%s'", name.Text)
	return false
}

// compileAddrOfField implements `&base.field`: for a struct pointer
// this is [base]+field_off computed into %eax; a local struct value or
// a flattened global alias already has a fixed address, so the result
// is just that address (spec.md §4.6 "for p.field on a struct pointer,
// it yields [p] + field_off"). Nested dotted access is rejected, same
// as a plain dotted lvalue.
func (c *Compiler) compileAddrOfField(base string) bool {
	c.advance() // .
	field, ok := c.expect(token.Ident)
	if !ok {
		c.fail("parse", "expected field after '.'")
		return false
	}
	if c.at(token.Dot) {
		c.fail("parse", "unsupported nested dotted value '%s.%s'", base, field.Text)
		return false
	}

	if lsv, found := c.sym.FindLocalStruct(base); found {
		st := c.sym.Structs[lsv.StructIdx]
		f, found := st.FieldByName(field.Text)
		if !found {
			c.fail("parse", "unknown field '%s' on local struct '%s'", field.Text, base)
			return false
		}
		frameBase := -symtab.FrameOffset(lsv.Base + lsv.Length - 1)
		c.emit(x86.LeaLocal(x86.EAX, frameBase+f.Offset))
		return true
	}

	if structIdx, isPtr := c.structPointerOf(base); isPtr {
		st := c.sym.Structs[structIdx]
		f, found := st.FieldByName(field.Text)
		if !found {
			c.fail("parse", "unknown field '%s' on struct pointer '%s'", field.Text, base)
			return false
		}
		c.loadIdentInto(base, x86.EAX)
		if f.Offset != 0 {
			c.emit(x86.LeaReg(x86.EAX, x86.EAX, f.Offset))
		}
		return true
	}

	flat := structFieldGlobalName(base, field.Text)
	if g, found := c.sym.FindGlobal(flat); found {
		c.emit(x86.LeaAbs(x86.EAX, uint32(dataBase+g.Offset)))
		return true
	}
	c.fail("parse", "unknown dotted value '%s.%s'", base, field.Text)
	return false
}

// dataBase mirrors elf32.DataBase: every global reference is an
// absolute address into the data segment cc2 links at a fixed base.
const dataBase = elf32.DataBase

func (c *Compiler) compilePreIncDec(op token.Kind) bool {
	c.advance()
	lv, ok := c.compileLvalueRef()
	if !ok {
		return false
	}
	c.loadLvalue(lv)
	delta := int32(1)
	if op == token.MinusMinus {
		delta = -1
	}
	c.addImmToEax(delta)
	c.storeLvalue(lv)
	return true
}

func (c *Compiler) addImmToEax(delta int32) {
	c.emit(x86.MovRegImm32(x86.ECX, delta))
	c.emit(x86.AddRR(x86.EAX, x86.ECX))
}

func (c *Compiler) emit(bs []byte) {
	if _, err := c.code.Emit(bs); err != nil {
		c.fail("emit", "%s", err)
	}
}
