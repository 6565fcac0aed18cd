package compiler

import (
	"github.com/cupidthecat/cc2/internal/symtab"
	"github.com/cupidthecat/cc2/internal/token"
	"github.com/cupidthecat/cc2/internal/x86"
)

// tryTypedef consumes `typedef ... ;` without registering a symbol —
// every type is word-sized internally (spec.md §4.8).
func (c *Compiler) tryTypedef() bool {
	if !c.at(token.KwTypedef) {
		return false
	}
	c.advance()
	for !c.at(token.Semi) && !c.at(token.EOF) {
		c.advance()
	}
	if c.at(token.Semi) {
		c.advance()
	}
	return true
}

// tryStructDef parses a file-scope `struct Name { fieldDecl* };`.
// This is the only form of top-level production that needs no prior
// type-spec, so it is tried before tryFunctionOrGlobal.
func (c *Compiler) tryStructDef() bool {
	if !c.at(token.KwStruct) {
		return false
	}
	mark := c.cur
	c.advance()
	name, ok := c.expect(token.Ident)
	if !ok {
		return true
	}
	if !c.at(token.LBrace) {
		// Not a definition: rewind by treating mark/name as the start
		// of a struct-typed global/function/prototype declaration,
		// handled uniformly by tryFunctionOrGlobal's type-spec path.
		return c.continueStructTypedDecl(name.Text)
	}
	_ = mark
	c.advance() // {

	si, err := c.sym.AddStruct(name.Text)
	if err != nil {
		c.fail("parse", "%s", err)
		c.skipToSemi()
		return true
	}

	for !c.at(token.RBrace) && !c.at(token.EOF) {
		ts, ok := c.parseBaseType()
		if !ok {
			c.fail("parse", "expected struct field type got=%s text='%s'", c.cur.Kind, c.cur.Text)
			break
		}
		fname, ok := c.expect(token.Ident)
		if !ok {
			break
		}
		isArray := false
		length := 1
		if c.at(token.LBracket) {
			c.advance()
			n, ok := c.expect(token.IntLit)
			if !ok {
				break
			}
			length = int(n.IntVal)
			isArray = true
			if _, ok := c.expect(token.RBracket); !ok {
				break
			}
		}
		if _, ok := c.expect(token.Semi); !ok {
			break
		}
		size := ts.elemSize * length
		if err := c.sym.AddStructField(si, fname.Text, size, ts.elemSize, isArray); err != nil {
			c.fail("parse", "%s", err)
			break
		}
	}
	if _, ok := c.expect(token.RBrace); !ok {
		return true
	}
	c.expect(token.Semi)
	return true
}

// parseBaseType consumes int/char/void/struct-Name, for contexts
// where `struct` always names an already-registered struct (field
// lists, parameter lists, local declarations).
func (c *Compiler) parseBaseType() (typeSpec, bool) {
	switch {
	case c.at(token.KwInt), c.at(token.KwVoid):
		c.advance()
		return typeSpec{elemSize: 4}, true
	case c.at(token.KwChar):
		c.advance()
		return typeSpec{elemSize: 1}, true
	case c.at(token.KwStruct):
		c.advance()
		name, ok := c.expect(token.Ident)
		if !ok {
			return typeSpec{}, false
		}
		idx, found := c.sym.FindStruct(name.Text)
		if !found {
			c.fail("parse", "unknown struct type '%s'", name.Text)
			return typeSpec{}, false
		}
		return typeSpec{elemSize: 4, isStruct: true, structIdx: idx}, true
	default:
		return typeSpec{}, false
	}
}

// continueStructTypedDecl handles `struct Name ...` once `{` ruled
// out a type definition: Name must already be a registered struct,
// and what follows is a global/function declarator.
func (c *Compiler) continueStructTypedDecl(structName string) bool {
	idx, found := c.sym.FindStruct(structName)
	if !found {
		c.fail("parse", "unknown struct type '%s'", structName)
		c.skipToSemi()
		return true
	}
	ts := typeSpec{elemSize: 4, isStruct: true, structIdx: idx}
	return c.parseDeclarator(ts)
}

// tryFunctionOrGlobal parses a leading int/char/void base type, then
// a global-variable or function declarator.
func (c *Compiler) tryFunctionOrGlobal() bool {
	if !c.at(token.KwInt) && !c.at(token.KwChar) && !c.at(token.KwVoid) {
		return false
	}
	ts, ok := c.parseBaseType()
	if !ok {
		return false
	}
	return c.parseDeclarator(ts)
}

// parseDeclarator parses the `[*] name (...)` or `[*] name [N] [= expr] ;`
// tail shared by global declarations and function definitions.
func (c *Compiler) parseDeclarator(ts typeSpec) bool {
	isPointer := false
	if c.at(token.Star) {
		c.advance()
		isPointer = true
	}
	name, ok := c.expect(token.Ident)
	if !ok {
		return true
	}

	if c.at(token.LParen) {
		c.parseFunction(ts, name.Text)
		return true
	}

	if isPointer {
		c.declareGlobalPointer(ts, name.Text)
		return true
	}

	if c.at(token.LBracket) {
		c.advance()
		n, ok := c.expect(token.IntLit)
		if !ok {
			c.skipToSemi()
			return true
		}
		if _, ok := c.expect(token.RBracket); !ok {
			c.skipToSemi()
			return true
		}
		c.declareGlobalArray(ts, name.Text, int(n.IntVal))
		c.expect(token.Semi)
		return true
	}

	if ts.isStruct {
		c.declareGlobalStruct(ts, name.Text)
		c.expect(token.Semi)
		return true
	}

	c.declareGlobalScalar(ts, name.Text)
	c.expect(token.Semi)
	return true
}

func (c *Compiler) skipToSemi() {
	for !c.at(token.Semi) && !c.at(token.EOF) {
		c.advance()
	}
	if c.at(token.Semi) {
		c.advance()
	}
}

func (c *Compiler) declareGlobalScalar(ts typeSpec, name string) {
	off := c.data.Len()
	size := ts.elemSize
	zero := make([]byte, size)
	if c.at(token.Assign) {
		c.advance()
		v, ok := c.constExprOrFold()
		if ok {
			if size == 1 {
				zero[0] = byte(v)
			} else {
				zero[0] = byte(v)
				zero[1] = byte(v >> 8)
				zero[2] = byte(v >> 16)
				zero[3] = byte(v >> 24)
			}
		}
	}
	if _, err := c.data.Emit(zero); err != nil {
		c.fail("emit", "%s", err)
		return
	}
	err := c.sym.AddGlobal(symtab.Global{Name: name, Offset: off, Size: size, ElemSize: ts.elemSize, StructIdx: -1})
	if err != nil {
		c.fail("parse", "global alloc '%s': %s", name, err)
	}
}

func (c *Compiler) declareGlobalArray(ts typeSpec, name string, length int) {
	off := c.data.Len()
	size := ts.elemSize * length
	if _, err := c.data.Emit(make([]byte, size)); err != nil {
		c.fail("emit", "%s", err)
		return
	}
	err := c.sym.AddGlobal(symtab.Global{Name: name, Offset: off, Size: size, ElemSize: ts.elemSize, IsArray: true, StructIdx: -1})
	if err != nil {
		c.fail("parse", "global alloc '%s': %s", name, err)
	}
}

func (c *Compiler) declareGlobalPointer(ts typeSpec, name string) {
	off := c.data.Len()
	if c.at(token.Assign) {
		c.advance()
		c.constExprOrFold()
	}
	if _, err := c.data.Emit(make([]byte, 4)); err != nil {
		c.fail("emit", "%s", err)
		return
	}
	si := -1
	if ts.isStruct {
		si = ts.structIdx
	}
	err := c.sym.AddGlobal(symtab.Global{Name: name, Offset: off, Size: 4, ElemSize: 4, IsStructPtr: ts.isStruct, StructIdx: si})
	if err != nil {
		c.fail("parse", "global alloc '%s': %s", name, err)
	}
	c.expect(token.Semi)
}

// declareGlobalStruct flattens a struct-valued global into one base
// entry plus one alias entry per field (spec.md §3 "Global struct
// flattening"), each alias sharing the base's data offset plus the
// field's byte offset.
func (c *Compiler) declareGlobalStruct(ts typeSpec, name string) {
	st := c.sym.Structs[ts.structIdx]
	off := c.data.Len()
	if _, err := c.data.Emit(make([]byte, st.Size)); err != nil {
		c.fail("emit", "%s", err)
		return
	}
	if err := c.sym.AddGlobal(symtab.Global{Name: name, Offset: off, Size: st.Size, ElemSize: 4, StructIdx: ts.structIdx}); err != nil {
		c.fail("parse", "global alloc '%s': %s", name, err)
		return
	}
	for _, f := range st.Fields {
		full := structFieldGlobalName(name, f.Name)
		g := symtab.Global{Name: full, Offset: off + f.Offset, Size: f.Size, ElemSize: f.ElemSize, IsArray: f.IsArray, StructIdx: -1}
		if err := c.sym.AddGlobal(g); err != nil {
			c.fail("parse", "global alloc '%s': %s", full, err)
			return
		}
	}
}

// constExprOrFold evaluates a global initialiser, which spec.md §4.4
// restricts to compile-time constants (literals, macro aliases,
// builtin constants, unary +/-).
func (c *Compiler) constExprOrFold() (int64, bool) {
	v, ok := c.foldConstant()
	if !ok {
		c.fail("parse", "global initialiser must be a compile-time constant, got=%s", c.cur.Kind)
	}
	return v, ok
}

// parseFunction parses a function prototype (`name(params);`) or
// definition (`name(params) { ... }`).
func (c *Compiler) parseFunction(ts typeSpec, name string) {
	c.advance() // (
	var params []paramInfo
	for !c.at(token.RParen) && !c.at(token.EOF) {
		pts, ok := c.parseBaseType()
		if !ok {
			c.fail("parse", "expected parameter type got=%s", c.cur.Kind)
			break
		}
		isPtr := false
		if c.at(token.Star) {
			c.advance()
			isPtr = true
		}
		pname, ok := c.expect(token.Ident)
		if !ok {
			break
		}
		params = append(params, paramInfo{name: pname.Text, ts: pts, isPointer: isPtr})
		if c.at(token.Comma) {
			c.advance()
			continue
		}
		break
	}
	if _, ok := c.expect(token.RParen); !ok {
		return
	}

	if c.at(token.Semi) {
		c.advance() // prototype only, nothing to emit
		return
	}

	c.compileFunctionBody(name, params)
}

type paramInfo struct {
	name      string
	ts        typeSpec
	isPointer bool
}

// param is a resolved function parameter: a positive ebp-relative
// offset above the saved return address and saved ebp (cdecl), unlike
// ordinary locals which sit at negative offsets below %ebp.
type param struct {
	name      string
	offset    int
	structIdx int // struct index for struct-pointer parameters, else -1
}

// compileFunctionBody emits the prologue, binds parameters, compiles
// the body, then back-patches the prologue's FRAME size and emits the
// epilogue (spec.md §4.7).
func (c *Compiler) compileFunctionBody(name string, params []paramInfo) {
	offset := c.code.Len()
	if err := c.sym.AddFunction(name, offset); err != nil {
		c.fail("parse", "%s", err)
	}

	prologueBytes, frameImmOff := x86.Prologue(0)
	prologueStart, err := c.code.Emit(prologueBytes)
	if err != nil {
		c.fail("emit", "%s", err)
		return
	}
	frameSite := prologueStart + frameImmOff

	var boundParams []param
	for i, p := range params {
		si := -1
		if p.isPointer && p.ts.isStruct {
			si = p.ts.structIdx
		}
		boundParams = append(boundParams, param{name: p.name, offset: 8 + 4*i, structIdx: si})
	}
	c.curParams = boundParams

	c.sym.PushScope()
	c.frameMax = 0
	c.compileBlock()
	c.sym.PopScope()
	c.curParams = nil

	frame := (c.frameMax + 64 + 15) &^ 15
	c.code.PatchImm32(frameSite, int32(frame))

	epi := x86.Epilogue()
	if _, err := c.code.Emit(epi); err != nil {
		c.fail("emit", "%s", err)
	}
}

// findParam looks up name among the current function's parameters.
func (c *Compiler) findParam(name string) (param, bool) {
	for _, p := range c.curParams {
		if p.name == name {
			return p, true
		}
	}
	return param{}, false
}
