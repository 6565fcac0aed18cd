package compiler

import (
	"github.com/cupidthecat/cc2/internal/constfold"
	"github.com/cupidthecat/cc2/internal/elf32"
	"github.com/cupidthecat/cc2/internal/emit"
	"github.com/cupidthecat/cc2/internal/token"
	"github.com/cupidthecat/cc2/internal/x86"
)

// parsePostfix parses a primary expression followed by any chain of
// postfix operators: call, subscript, dotted field access (handled
// inside parsePrimary) and postfix ++/-- (spec.md §4.6).
func (c *Compiler) parsePostfix() bool {
	if !c.parsePrimary() {
		return false
	}
	for c.at(token.PlusPlus) || c.at(token.MinusMinus) {
		if c.lastLvalue == lvNone {
			c.fail("parse", "postfix ++/-- needs an lvalue")
			return false
		}
		op := c.cur.Kind
		c.advance()
		c.compilePostIncDec(op)
	}
	return true
}

// parsePrimary parses literals, parenthesised expressions, and
// identifier forms (call, subscript, dotted access, plain value),
// leaving the result in %eax.
func (c *Compiler) parsePrimary() bool {
	c.lastLvalue = lvNone

	switch c.cur.Kind {
	case token.IntLit:
		v := c.cur.IntVal
		c.advance()
		c.emit(x86.MovRegImm32(x86.EAX, int32(v)))
		return true

	case token.StringLit:
		addr := c.internString(c.cur.Text)
		c.advance()
		c.emit(x86.MovRegImm32(x86.EAX, int32(addr)))
		return true

	case token.LParen:
		c.advance()
		if !c.compileExpr() {
			return false
		}
		_, ok := c.expect(token.RParen)
		return ok

	case token.Ident:
		return c.parseIdentPrimary()

	default:
		c.fail("parse", "unexpected token in expression kind=%s text='%s' line=%d", c.cur.Kind, c.cur.Text, c.cur.Pos.Line)
		return false
	}
}

// internString appends s's bytes plus a NUL terminator to the data
// segment and returns its absolute address.
func (c *Compiler) internString(s string) uint32 {
	off := c.data.Len()
	bs := append([]byte(s), 0)
	if _, err := c.data.Emit(bs); err != nil {
		c.fail("emit", "%s", err)
		return 0
	}
	return uint32(dataBase + off)
}

// parseIdentPrimary handles every identifier-led primary production:
// a call, a subscript, a dotted-field read, or a plain value load
// (lookup order: parameter → local → global → macro/builtin constant,
// spec.md §4.3-§4.4).
func (c *Compiler) parseIdentPrimary() bool {
	name, _ := c.expect(token.Ident)

	if c.at(token.LParen) {
		return c.compileCall(name.Text)
	}

	if c.at(token.Dot) {
		lv, ok := c.compileDottedLvalue(name.Text)
		if !ok {
			return false
		}
		c.lastLvalueRef = lv
		c.loadLvalue(lv)
		return true
	}

	if c.at(token.LBracket) {
		lv, ok := c.compileSubscriptLvalue(name.Text)
		if !ok {
			return false
		}
		c.lastLvalueRef = lv
		c.loadLvalue(lv)
		return true
	}

	if lv, ok := c.findSimpleLvalue(name.Text); ok {
		c.lastLvalueRef = lv
		c.loadLvalue(lv)
		return true
	}
	return c.parseIdentConst(name)
}

// parseIdentConst resolves name as a macro alias or builtin constant,
// the last fallback in the identifier-primary lookup chain.
func (c *Compiler) parseIdentConst(name token.Token) bool {
	var v int64
	var ok bool
	if c.macros != nil {
		v, ok = constfold.FromIdent(name.Text, c.macros)
	} else {
		v, ok = constfold.Builtin(name.Text)
	}
	if !ok {
		c.fail("parse", "unknown identifier '%s' line=%d", name.Text, name.Pos.Line)
		return false
	}
	c.emit(x86.MovRegImm32(x86.EAX, int32(v)))
	c.lastLvalue = lvNone
	return true
}

// compileCall parses a call's argument list, compiling each argument
// into a private scratch buffer so the arguments can be spliced into
// the code stream in cdecl's right-to-left push order despite being
// parsed left-to-right (spec.md §4.6).
func (c *Compiler) compileCall(name string) bool {
	c.advance() // (
	var args [][]byte
	for !c.at(token.RParen) && !c.at(token.EOF) {
		if len(args) >= emit.MaxArgScratch {
			c.fail("parse", "call '%s' exceeds %d arguments", name, emit.MaxArgScratch)
			return false
		}
		saved := c.code
		scratch := emit.NewBuffer("call-arg", emit.MaxArgScratchLen)
		c.code = scratch
		ok := c.compileExpr()
		c.code = saved
		if !ok {
			return false
		}
		args = append(args, scratch.Bytes())
		if c.at(token.Comma) {
			c.advance()
			continue
		}
		break
	}
	if _, ok := c.expect(token.RParen); !ok {
		return false
	}

	for i := len(args) - 1; i >= 0; i-- {
		c.emit(args[i])
		c.emit(x86.Push(x86.EAX))
	}

	callBytes, relOff := x86.CallRel32(0)
	site, err := c.code.Emit(callBytes)
	if err != nil {
		c.fail("emit", "%s", err)
		return false
	}
	if fn, found := c.sym.FindFunction(name); found {
		c.code.PatchRel32(site+relOff, fn.Offset)
	} else if addr, found := c.builtins.Lookup(name); found {
		c.code.PatchRel32Abs(site+relOff, elf32.CodeBase, addr)
	} else if err := c.sym.AddCallPatch(name, site+relOff); err != nil {
		c.fail("parse", "%s", err)
		return false
	}

	if len(args) > 0 {
		c.emit(x86.AddRImm8(x86.ESP, byte(4*len(args))))
	}
	c.lastLvalue = lvNone
	return true
}

// compilePostIncDec implements x++ / x-- (spec.md §4.6): %eax already
// holds the pre-update value (loaded by the primary that preceded
// it); save it, compute and store the updated value, then restore the
// original as the expression's result.
func (c *Compiler) compilePostIncDec(op token.Kind) {
	lv := c.lastLvalueRef
	c.emit(x86.Push(x86.EAX))
	delta := int32(1)
	if op == token.MinusMinus {
		delta = -1
	}
	c.addImmToEax(delta)
	c.storeLvalue(lv)
	c.emit(x86.Pop(x86.EAX))
	c.lastLvalue = lvNone
}
