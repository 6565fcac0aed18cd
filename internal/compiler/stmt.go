package compiler

import (
	"github.com/cupidthecat/cc2/internal/emit"
	"github.com/cupidthecat/cc2/internal/symtab"
	"github.com/cupidthecat/cc2/internal/token"
	"github.com/cupidthecat/cc2/internal/x86"
)

// compileBlock parses `{ stmt* }`, pushing and popping a lexical
// scope so locals declared inside it shadow outer ones and vanish at
// the closing brace (spec.md §3 "Scope stack").
func (c *Compiler) compileBlock() bool {
	if _, ok := c.expect(token.LBrace); !ok {
		return false
	}
	c.sym.PushScope()
	ok := true
	for !c.at(token.RBrace) && !c.at(token.EOF) {
		if !c.compileStmt() {
			ok = false
			break
		}
	}
	if ok {
		_, ok = c.expect(token.RBrace)
	}
	c.sym.PopScope()
	return ok
}

// compileStmt dispatches on the leading token to one of the statement
// productions spec.md §4.7 lists.
func (c *Compiler) compileStmt() bool {
	switch {
	case c.at(token.LBrace):
		return c.compileBlock()
	case c.at(token.KwInt), c.at(token.KwChar), c.at(token.KwVoid), c.at(token.KwStruct):
		return c.compileLocalDecl()
	case c.at(token.KwIf):
		return c.compileIf()
	case c.at(token.KwWhile):
		return c.compileWhile()
	case c.at(token.KwDo):
		return c.compileDoWhile()
	case c.at(token.KwFor):
		return c.compileFor()
	case c.at(token.KwSwitch):
		return c.compileSwitch()
	case c.at(token.KwBreak):
		c.advance()
		c.expect(token.Semi)
		return c.compileBreak()
	case c.at(token.KwContinue):
		c.advance()
		c.expect(token.Semi)
		return c.compileContinue()
	case c.at(token.KwReturn):
		return c.compileReturn()
	case c.at(token.KwAsm):
		return c.compileAsm()
	case c.at(token.Semi):
		c.advance()
		return true
	default:
		return c.compileExprStmt()
	}
}

// compileLocalDecl parses `type [*] name ( [N] | = expr )? ;` at
// statement scope (spec.md §4.3, §4.7). Local struct values are
// flattened into consecutive local slots the same way global struct
// values are flattened (toplevel.go's declareGlobalStruct); only
// arrays of struct values remain unsupported.
func (c *Compiler) compileLocalDecl() bool {
	ts, ok := c.parseBaseType()
	if !ok {
		c.fail("parse", "expected type in declaration")
		return false
	}
	isPointer := false
	if c.at(token.Star) {
		c.advance()
		isPointer = true
	}
	name, ok := c.expect(token.Ident)
	if !ok {
		return false
	}

	if c.at(token.LBracket) {
		if ts.isStruct && !isPointer {
			c.fail("parse", "local struct arrays are not supported, use '%s *%s'", name.Text, name.Text)
			return false
		}
		c.advance()
		n, ok := c.expect(token.IntLit)
		if !ok {
			return false
		}
		if _, ok := c.expect(token.RBracket); !ok {
			return false
		}
		if _, ok := c.expect(token.Semi); !ok {
			return false
		}
		return c.declareLocalArray(name.Text, int(n.IntVal))
	}

	if ts.isStruct && !isPointer {
		return c.declareLocalStruct(ts, name.Text)
	}

	structIdx := -1
	if isPointer && ts.isStruct {
		structIdx = ts.structIdx
	}
	slot, err := c.sym.AddLocal(name.Text, structIdx)
	if err != nil {
		c.fail("parse", "%s", err)
		return false
	}
	off := -symtab.FrameOffset(slot)
	c.trackFrame(off)

	if c.at(token.Assign) {
		c.advance()
		if !c.compileExpr() {
			return false
		}
		c.emit(x86.StoreLocal(x86.EAX, off))
	}
	_, ok = c.expect(token.Semi)
	return ok
}

// declareLocalStruct reserves one local slot per 4 bytes of the
// struct's flattened size and registers the block so dotted field
// access can resolve directly against %ebp, without indirection
// through a pointer register (spec.md §4.3).
func (c *Compiler) declareLocalStruct(ts typeSpec, name string) bool {
	st := c.sym.Structs[ts.structIdx]
	numSlots := (st.Size + 3) / 4
	if numSlots < 1 {
		numSlots = 1
	}
	base, err := c.sym.AddLocal(name, -1)
	if err != nil {
		c.fail("parse", "%s", err)
		return false
	}
	for i := 1; i < numSlots; i++ {
		if _, err := c.sym.AddLocal("", -1); err != nil {
			c.fail("parse", "%s", err)
			return false
		}
	}
	if err := c.sym.AddLocalStruct(name, base, numSlots, ts.structIdx); err != nil {
		c.fail("parse", "%s", err)
		return false
	}
	c.trackFrame(-symtab.FrameOffset(base + numSlots - 1))
	_, ok := c.expect(token.Semi)
	return ok
}

func (c *Compiler) declareLocalArray(name string, length int) bool {
	base, err := c.sym.AddLocal(name, -1)
	if err != nil {
		c.fail("parse", "%s", err)
		return false
	}
	for i := 1; i < length; i++ {
		if _, err := c.sym.AddLocal("", -1); err != nil {
			c.fail("parse", "%s", err)
			return false
		}
	}
	if err := c.sym.AddLocalArray(name, base, length); err != nil {
		c.fail("parse", "%s", err)
		return false
	}
	c.trackFrame(-symtab.FrameOffset(base + length - 1))
	return true
}

// trackFrame widens c.frameMax to cover off, the furthest %ebp-relative
// offset any local in the current function has used.
func (c *Compiler) trackFrame(off int) {
	mag := -off
	if mag > c.frameMax {
		c.frameMax = mag
	}
}

// compileExprStmt handles both assignment (`lvalue = expr;`,
// `lvalue op= expr;`) and bare expression statements, reusing the
// lvalue descriptor compileExpr's primary parser already leaves in
// c.lastLvalueRef rather than re-deriving it (spec.md §4.6-§4.7).
func (c *Compiler) compileExprStmt() bool {
	if !c.compileExprStmtCore() {
		return false
	}
	_, ok := c.expect(token.Semi)
	return ok
}

func isCompoundAssign(k token.Kind) bool {
	switch k {
	case token.PlusEq, token.MinusEq, token.StarEq, token.SlashEq, token.PercentEq,
		token.AmpEq, token.PipeEq, token.CaretEq, token.ShlEq, token.ShrEq:
		return true
	}
	return false
}

func compoundBaseOp(k token.Kind) token.Kind {
	switch k {
	case token.PlusEq:
		return token.Plus
	case token.MinusEq:
		return token.Minus
	case token.StarEq:
		return token.Star
	case token.SlashEq:
		return token.Slash
	case token.PercentEq:
		return token.Percent
	case token.AmpEq:
		return token.Amp
	case token.PipeEq:
		return token.Pipe
	case token.CaretEq:
		return token.Caret
	case token.ShlEq:
		return token.Shl
	case token.ShrEq:
		return token.Shr
	}
	return token.Invalid
}

// compileIf implements if/else (spec.md §4.7).
func (c *Compiler) compileIf() bool {
	c.advance()
	if _, ok := c.expect(token.LParen); !ok {
		return false
	}
	if !c.compileExpr() {
		return false
	}
	if _, ok := c.expect(token.RParen); !ok {
		return false
	}

	c.emit(x86.TestRR(x86.EAX, x86.EAX))
	jz, off := x86.JzRel32(0)
	jzSite, err := c.code.Emit(jz)
	if err != nil {
		c.fail("emit", "%s", err)
		return false
	}
	jzSite += off

	if !c.compileStmt() {
		return false
	}

	if c.at(token.KwElse) {
		c.advance()
		jmp, off2 := x86.JmpRel32(0)
		endSite, err := c.code.Emit(jmp)
		if err != nil {
			c.fail("emit", "%s", err)
			return false
		}
		endSite += off2
		c.code.PatchRel32(jzSite, c.code.Len())
		if !c.compileStmt() {
			return false
		}
		c.code.PatchRel32(endSite, c.code.Len())
		return true
	}

	c.code.PatchRel32(jzSite, c.code.Len())
	return true
}

// compileWhile implements while (spec.md §4.7).
func (c *Compiler) compileWhile() bool {
	c.advance()
	if _, ok := c.expect(token.LParen); !ok {
		return false
	}
	top := c.code.Len()
	if !c.compileExpr() {
		return false
	}
	if _, ok := c.expect(token.RParen); !ok {
		return false
	}

	c.emit(x86.TestRR(x86.EAX, x86.EAX))
	jz, off := x86.JzRel32(0)
	exitSite, err := c.code.Emit(jz)
	if err != nil {
		c.fail("emit", "%s", err)
		return false
	}
	exitSite += off

	c.loops = append(c.loops, loopCtx{})
	ok := c.compileStmt()
	ctx := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	if !ok {
		return false
	}

	ctx.continues.ResolveTo(c.code, top)
	jmp, off2 := x86.JmpRel32(0)
	backSite, err := c.code.Emit(jmp)
	if err != nil {
		c.fail("emit", "%s", err)
		return false
	}
	c.code.PatchRel32(backSite+off2, top)

	c.code.PatchRel32(exitSite, c.code.Len())
	ctx.breaks.ResolveTo(c.code, c.code.Len())
	return true
}

// compileDoWhile implements do/while (spec.md §4.7).
func (c *Compiler) compileDoWhile() bool {
	c.advance()
	top := c.code.Len()

	c.loops = append(c.loops, loopCtx{})
	ok := c.compileStmt()
	ctx := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	if !ok {
		return false
	}

	if _, ok := c.expect(token.KwWhile); !ok {
		return false
	}
	if _, ok := c.expect(token.LParen); !ok {
		return false
	}
	condOff := c.code.Len()
	ctx.continues.ResolveTo(c.code, condOff)
	if !c.compileExpr() {
		return false
	}
	if _, ok := c.expect(token.RParen); !ok {
		return false
	}
	if _, ok := c.expect(token.Semi); !ok {
		return false
	}

	c.emit(x86.TestRR(x86.EAX, x86.EAX))
	jnz, off := x86.JnzRel32(0)
	site, err := c.code.Emit(jnz)
	if err != nil {
		c.fail("emit", "%s", err)
		return false
	}
	c.code.PatchRel32(site+off, top)

	ctx.breaks.ResolveTo(c.code, c.code.Len())
	return true
}

// compileFor implements for(init;cond;post) with the post expression
// captured into a scratch buffer and spliced after the body, ahead of
// the back-edge jump (spec.md §4.7).
func (c *Compiler) compileFor() bool {
	c.advance()
	if _, ok := c.expect(token.LParen); !ok {
		return false
	}

	if !c.at(token.Semi) {
		if !c.compileExprStmtCore() {
			return false
		}
	}
	if _, ok := c.expect(token.Semi); !ok {
		return false
	}

	condTop := c.code.Len()
	hasCond := !c.at(token.Semi)
	if hasCond {
		if !c.compileExpr() {
			return false
		}
	}
	if _, ok := c.expect(token.Semi); !ok {
		return false
	}

	var exitSite int
	var haveExit bool
	if hasCond {
		c.emit(x86.TestRR(x86.EAX, x86.EAX))
		jz, off := x86.JzRel32(0)
		site, err := c.code.Emit(jz)
		if err != nil {
			c.fail("emit", "%s", err)
			return false
		}
		exitSite = site + off
		haveExit = true
	}

	var post *emit.Buffer
	if !c.at(token.RParen) {
		saved := c.code
		post = emit.NewBuffer("for-post", emit.MaxPostScratchLen)
		c.code = post
		ok := c.compileExprStmtCore()
		c.code = saved
		if !ok {
			return false
		}
	}
	if _, ok := c.expect(token.RParen); !ok {
		return false
	}

	c.loops = append(c.loops, loopCtx{})
	ok := c.compileStmt()
	ctx := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	if !ok {
		return false
	}

	postTop := c.code.Len()
	ctx.continues.ResolveTo(c.code, postTop)
	if post != nil {
		c.emit(post.Bytes())
	}

	jmp, off2 := x86.JmpRel32(0)
	backSite, err := c.code.Emit(jmp)
	if err != nil {
		c.fail("emit", "%s", err)
		return false
	}
	c.code.PatchRel32(backSite+off2, condTop)

	if haveExit {
		c.code.PatchRel32(exitSite, c.code.Len())
	}
	ctx.breaks.ResolveTo(c.code, c.code.Len())
	return true
}

// compileExprStmtCore is compileExprStmt's body without the closing
// `;`, reused for the for-loop's init and post clauses.
func (c *Compiler) compileExprStmtCore() bool {
	if !c.compileExpr() {
		return false
	}
	if c.lastLvalue == lvNone {
		return true
	}
	lv := c.lastLvalueRef
	switch {
	case c.at(token.Assign):
		c.advance()
		if lv.indirect {
			c.emit(x86.Push(x86.EBX))
		}
		if !c.compileExpr() {
			return false
		}
		if lv.indirect {
			c.emit(x86.Pop(x86.EBX))
		}
		c.storeLvalue(lv)
	case isCompoundAssign(c.cur.Kind):
		op := compoundBaseOp(c.cur.Kind)
		c.advance()
		c.emit(x86.Push(x86.EAX))
		if lv.indirect {
			c.emit(x86.Push(x86.EBX))
		}
		if !c.compileExpr() {
			return false
		}
		if lv.indirect {
			c.emit(x86.Pop(x86.EBX))
		}
		c.emit(x86.MovRR(x86.ECX, x86.EAX))
		c.emit(x86.Pop(x86.EAX))
		c.emitBinOp(op)
		c.storeLvalue(lv)
	}
	return true
}

// compileBreak resolves `break;` against the nearest enclosing loop
// or switch (spec.md §4.7).
func (c *Compiler) compileBreak() bool {
	if len(c.loops) == 0 {
		c.fail("parse", "'break' outside loop or switch")
		return false
	}
	jmp, off := x86.JmpRel32(0)
	site, err := c.code.Emit(jmp)
	if err != nil {
		c.fail("emit", "%s", err)
		return false
	}
	c.loops[len(c.loops)-1].breaks.Add(site + off)
	return true
}

// compileContinue resolves `continue;` against the nearest enclosing
// loop, skipping past any intervening switch frame (spec.md §4.7).
func (c *Compiler) compileContinue() bool {
	for i := len(c.loops) - 1; i >= 0; i-- {
		if c.loops[i].isSwitch {
			continue
		}
		jmp, off := x86.JmpRel32(0)
		site, err := c.code.Emit(jmp)
		if err != nil {
			c.fail("emit", "%s", err)
			return false
		}
		c.loops[i].continues.Add(site + off)
		return true
	}
	c.fail("parse", "'continue' outside loop")
	return false
}

// compileReturn implements `return [expr] ;` (spec.md §4.7): the
// value (if any) is left in %eax per cdecl, then an epilogue is
// emitted inline at the return site, so control leaves the function
// there; compileFunctionBody's trailing epilogue only covers falling
// off the end of the body.
func (c *Compiler) compileReturn() bool {
	c.advance()
	if !c.at(token.Semi) {
		if !c.compileExpr() {
			return false
		}
	}
	if _, ok := c.expect(token.Semi); !ok {
		return false
	}
	c.emit(x86.Epilogue())
	return true
}

// compileSwitch lowers switch/case/default to a sequential chain of
// compare-and-skip tests emitted as each case label is encountered —
// the "dispatch tail" spec.md §4.7 describes — rather than a jump
// table, since cc2 has no lookahead to pre-scan case values. Cases
// implicitly break; C-style fallthrough isn't supported.
func (c *Compiler) compileSwitch() bool {
	c.advance()
	if _, ok := c.expect(token.LParen); !ok {
		return false
	}
	if !c.compileExpr() {
		return false
	}
	if _, ok := c.expect(token.RParen); !ok {
		return false
	}

	slot, err := c.sym.AddLocal("", -1)
	if err != nil {
		c.fail("parse", "%s", err)
		return false
	}
	subjOff := -symtab.FrameOffset(slot)
	c.trackFrame(subjOff)
	c.emit(x86.StoreLocal(x86.EAX, subjOff))

	if _, ok := c.expect(token.LBrace); !ok {
		return false
	}

	c.loops = append(c.loops, loopCtx{isSwitch: true})
	pendingSkip := -1
	inBody := false

	for !c.at(token.RBrace) && !c.at(token.EOF) {
		if c.at(token.KwCase) || c.at(token.KwDefault) {
			if inBody {
				jmp, off := x86.JmpRel32(0)
				site, err := c.code.Emit(jmp)
				if err != nil {
					c.fail("emit", "%s", err)
					return false
				}
				c.loops[len(c.loops)-1].breaks.Add(site + off)
			}
			if pendingSkip >= 0 {
				c.code.PatchRel32(pendingSkip, c.code.Len())
				pendingSkip = -1
			}
			if c.at(token.KwCase) {
				c.advance()
				val, ok := c.constExprOrFold()
				if !ok {
					return false
				}
				if _, ok := c.expect(token.Colon); !ok {
					return false
				}
				c.emit(x86.LoadLocal(x86.EAX, subjOff))
				c.emit(x86.CmpRImm32(x86.EAX, int32(val)))
				jnz, off := x86.JnzRel32(0)
				site, err := c.code.Emit(jnz)
				if err != nil {
					c.fail("emit", "%s", err)
					return false
				}
				pendingSkip = site + off
			} else {
				c.advance()
				if _, ok := c.expect(token.Colon); !ok {
					return false
				}
			}
			inBody = true
			continue
		}
		if !c.compileStmt() {
			return false
		}
	}
	if pendingSkip >= 0 {
		c.code.PatchRel32(pendingSkip, c.code.Len())
	}
	if _, ok := c.expect(token.RBrace); !ok {
		return false
	}

	ctx := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	ctx.breaks.ResolveTo(c.code, c.code.Len())
	return true
}

// compileAsm implements `asm(byte, byte, ...);` (spec.md §4.7): each
// argument must be a compile-time-constant byte value, emitted
// verbatim into the code stream.
func (c *Compiler) compileAsm() bool {
	c.advance()
	if _, ok := c.expect(token.LParen); !ok {
		return false
	}
	for !c.at(token.RParen) && !c.at(token.EOF) {
		v, ok := c.foldConstant()
		if !ok {
			c.fail("parse", "asm() argument must be a compile-time constant")
			return false
		}
		c.emit([]byte{byte(v)})
		if c.at(token.Comma) {
			c.advance()
			continue
		}
		break
	}
	if _, ok := c.expect(token.RParen); !ok {
		return false
	}
	_, ok := c.expect(token.Semi)
	return ok
}
