// Package constfold implements cc2's limited compile-time constant
// folder (spec.md §4.4): integer literals, macro identifiers whose
// body is itself a literal (chased up to depth 8), a fixed table of
// builtin symbolic constants, and unary +/- on a literal. It backs
// global initialisers, asm() byte lists and identifiers in
// expressions, letting ALL-CAPS identifiers stand in for a literal
// there. Array dimensions are not folded: they take an integer literal
// token only, so a builtin constant cannot size an array (an
// object-like macro can, since the preprocessor substitutes it first).
package constfold

import (
	"strconv"
	"strings"

	"github.com/cupidthecat/cc2/internal/preproc"
	"github.com/cupidthecat/cc2/internal/token"
)

// MaxChaseDepth bounds macro-of-macro alias chasing (spec.md §4.4).
const MaxChaseDepth = 8

// builtinConstants are the VFS flag names the host exposes, recovered
// from original_source/bin/cc2_single.cc's cc2_builtin_const_from_ident
// (see SPEC_FULL.md §C).
var builtinConstants = map[string]int64{
	"O_RDONLY": 0x0000,
	"O_CREAT":  0x0100,
}

// tokenKindConstants exposes a subset of the token.Kind values under
// CC2_TK_<NAME>-style builtin names (kinds such as the brackets,
// ++/-- and the compound assignments other than += have no entry),
// the convention the source uses
// (cc2_single.cc's own CC2_TK_* defines), so user code compiled by
// cc2 can refer to kinds symbolically without cc2 itself needing to
// predefine them as macros.
var tokenKindConstants = map[string]int64{
	"CC2_TK_EOF": int64(token.EOF), "CC2_TK_IDENT": int64(token.Ident),
	"CC2_TK_INT_LIT": int64(token.IntLit), "CC2_TK_STRING": int64(token.StringLit),
	"CC2_TK_INT_KW": int64(token.KwInt), "CC2_TK_IF": int64(token.KwIf),
	"CC2_TK_ELSE": int64(token.KwElse), "CC2_TK_FOR": int64(token.KwFor),
	"CC2_TK_WHILE": int64(token.KwWhile), "CC2_TK_DO": int64(token.KwDo),
	"CC2_TK_SWITCH": int64(token.KwSwitch), "CC2_TK_CASE": int64(token.KwCase),
	"CC2_TK_DEFAULT": int64(token.KwDefault), "CC2_TK_BREAK": int64(token.KwBreak),
	"CC2_TK_CONTINUE": int64(token.KwContinue), "CC2_TK_RETURN": int64(token.KwReturn),
	"CC2_TK_STRUCT": int64(token.KwStruct), "CC2_TK_ASM": int64(token.KwAsm),
	"CC2_TK_LPAREN": int64(token.LParen), "CC2_TK_RPAREN": int64(token.RParen),
	"CC2_TK_LBRACE": int64(token.LBrace), "CC2_TK_RBRACE": int64(token.RBrace),
	"CC2_TK_SEMI": int64(token.Semi), "CC2_TK_COMMA": int64(token.Comma),
	"CC2_TK_EQ": int64(token.Assign), "CC2_TK_EQEQ": int64(token.EqEq),
	"CC2_TK_NE": int64(token.NotEq), "CC2_TK_LT": int64(token.Lt),
	"CC2_TK_LE": int64(token.Le), "CC2_TK_GT": int64(token.Gt),
	"CC2_TK_GE": int64(token.Ge), "CC2_TK_PLUS": int64(token.Plus),
	"CC2_TK_MINUS": int64(token.Minus), "CC2_TK_STAR": int64(token.Star),
	"CC2_TK_SLASH": int64(token.Slash), "CC2_TK_PERCENT": int64(token.Percent),
	"CC2_TK_PLUSEQ": int64(token.PlusEq), "CC2_TK_ANDAND": int64(token.AmpAmp),
	"CC2_TK_OROR": int64(token.PipePipe), "CC2_TK_BANG": int64(token.Bang),
	"CC2_TK_AMP": int64(token.Amp), "CC2_TK_PIPE": int64(token.Pipe),
	"CC2_TK_CARET": int64(token.Caret), "CC2_TK_SHL": int64(token.Shl),
	"CC2_TK_SHR": int64(token.Shr), "CC2_TK_TILDE": int64(token.Tilde),
}

// capacityConstants exposes cc2's own table sizes (spec.md §4.4
// "the compiler's own capacity constants") to the positions the folder
// serves; they cannot size an array, whose dimension takes an integer
// literal only.
var capacityConstants = map[string]int64{
	"CC2_MAX_GLOBALS":    256,
	"CC2_MAX_FUNCTIONS":  320,
	"CC2_MAX_CALLS":      320,
	"CC2_MAX_STRUCTS":    16,
	"CC2_MAX_FIELDS":     16,
	"CC2_MAX_LOCALS":     2048,
	"CC2_MAX_MACROS":     256,
	"CC2_CODE_BUF_BYTES": 256 * 1024,
	"CC2_DATA_BUF_BYTES": 192 * 1024,
}

// Builtin resolves name against the fixed builtin-constant tables
// only (no macro chase); it is the leaf of the §4.3 lookup order.
func Builtin(name string) (int64, bool) {
	if v, ok := builtinConstants[name]; ok {
		return v, true
	}
	if v, ok := tokenKindConstants[name]; ok {
		return v, true
	}
	if v, ok := capacityConstants[name]; ok {
		return v, true
	}
	return 0, false
}

// FromIdent resolves name to a constant value: first by chasing macro
// aliases whose body is itself a literal or another identifier (up to
// MaxChaseDepth), then by falling back to the builtin tables.
func FromIdent(name string, macros *preproc.Table) (int64, bool) {
	if v, ok := chase(name, macros, 0); ok {
		return v, ok
	}
	return Builtin(name)
}

func chase(name string, macros *preproc.Table, depth int) (int64, bool) {
	if depth > MaxChaseDepth {
		return 0, false
	}
	m, ok := macros.Lookup(name)
	if !ok || m.IsFunction {
		return 0, false
	}
	body := strings.TrimSpace(m.Body)
	if v, ok := parseLiteral(body); ok {
		return v, true
	}
	if isIdent(body) {
		return chase(body, macros, depth+1)
	}
	return 0, false
}

// parseLiteral parses a decimal or hex integer literal, optionally
// signed (spec.md §4.4 "unary -/+ preceding a literal").
func parseLiteral(s string) (int64, bool) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	s = strings.TrimSpace(s)

	var v int64
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseInt(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseInt(s, 10, 64)
	}
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		if i > 0 && c >= '0' && c <= '9' {
			continue
		}
		return false
	}
	return true
}
