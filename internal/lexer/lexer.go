// Package lexer turns the preprocessed byte stream into tokens.
//
// The lexer is a stateful cursor, generalising the teacher's
// byte-cursor-with-line/col-tracking idiom (lcox74-bfcc's
// core.Tokenize) from Brainfuck's eight single-character commands to
// cc2's full C-subset vocabulary: multi-character identifiers,
// numbers, string/char literals with escapes, comments, and the full
// operator set (spec.md §4.1).
package lexer

import (
	"fmt"

	"github.com/cupidthecat/cc2/internal/token"
)

// Error reports a lex-time failure (unterminated literal, bad escape,
// out-of-range cursor). The lexer never halts on these; it returns
// Unknown/EOF and the caller decides whether to treat it as fatal.
type Error struct {
	Msg string
	Pos token.Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s", e.Msg, e.Pos)
}

// Lexer scans a single source buffer, producing one token at a time
// into a caller-owned record (the Next method), matching spec.md
// §4.1's "caller-supplied token record" discipline.
type Lexer struct {
	src       []byte
	pos       int
	line, col int
	failures  int // incremented on lex errors; never aborts scanning
}

// New creates a lexer over the given preprocessed buffer.
func New(src []byte) *Lexer {
	return &Lexer{src: src, pos: 0, line: 1, col: 1}
}

// Failures returns the number of lex-level diagnostics raised so far.
func (l *Lexer) Failures() int { return l.failures }

func (l *Lexer) position() token.Position {
	return token.Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) atEnd() bool { return l.pos >= len(l.src) }

func (l *Lexer) peek() byte {
	if l.atEnd() {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return b
}

func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isIdentCont(b byte) bool { return isIdentStart(b) || isDigit(b) }

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEnd() {
		switch l.peek() {
		case ' ', '\t', '\r', '\n':
			l.advance()
		case '/':
			if l.peekAt(1) == '/' {
				for !l.atEnd() && l.peek() != '\n' {
					l.advance()
				}
				continue
			}
			if l.peekAt(1) == '*' {
				l.advance()
				l.advance()
				for !l.atEnd() && !(l.peek() == '*' && l.peekAt(1) == '/') {
					l.advance()
				}
				if !l.atEnd() {
					l.advance()
					l.advance()
				}
				continue
			}
			return
		default:
			return
		}
	}
}

// Next scans and returns the next token. It never returns an error for
// recoverable lex problems (spec.md §7): it reports Unknown/EOF and
// bumps the internal failure counter instead.
func (l *Lexer) Next() token.Token {
	l.skipWhitespaceAndComments()

	pos := l.position()

	if l.atEnd() {
		return token.Token{Kind: token.EOF, Pos: pos}
	}

	b := l.peek()

	switch {
	case isIdentStart(b):
		return l.lexIdent(pos)
	case isDigit(b):
		return l.lexNumber(pos)
	case b == '\'':
		return l.lexChar(pos)
	case b == '"':
		return l.lexString(pos)
	default:
		return l.lexPunct(pos)
	}
}

func (l *Lexer) lexIdent(pos token.Position) token.Token {
	start := l.pos
	for !l.atEnd() && isIdentCont(l.peek()) {
		l.advance()
	}
	text := string(l.src[start:l.pos])
	if kind, ok := token.Keywords[text]; ok {
		return token.Token{Kind: kind, Text: text, Pos: pos}
	}
	return token.Token{Kind: token.Ident, Text: token.NewText(text), Pos: pos}
}

func (l *Lexer) lexNumber(pos token.Position) token.Token {
	start := l.pos
	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		l.advance()
		l.advance()
		digStart := l.pos
		for !l.atEnd() && isHexDigit(l.peek()) {
			l.advance()
		}
		text := string(l.src[start:l.pos])
		var v int64
		fmt.Sscanf(string(l.src[digStart:l.pos]), "%x", &v)
		return token.Token{Kind: token.IntLit, IntVal: v, Text: token.NewText(text), Pos: pos}
	}

	for !l.atEnd() && isDigit(l.peek()) {
		l.advance()
	}
	text := string(l.src[start:l.pos])
	var v int64
	fmt.Sscanf(text, "%d", &v)
	return token.Token{Kind: token.IntLit, IntVal: v, Text: token.NewText(text), Pos: pos}
}

// escapeByte interprets the escape sequence starting right after the
// backslash and returns the decoded byte, leaving the cursor just past
// the escape.
func (l *Lexer) escapeByte() byte {
	c := l.advance()
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case '0':
		return 0
	case '\\':
		return '\\'
	case '\'':
		return '\''
	case '"':
		return '"'
	case 'x':
		var v byte
		for i := 0; i < 2 && isHexDigit(l.peek()); i++ {
			c := l.advance()
			v <<= 4
			switch {
			case isDigit(c):
				v |= c - '0'
			case c >= 'a' && c <= 'f':
				v |= c - 'a' + 10
			case c >= 'A' && c <= 'F':
				v |= c - 'A' + 10
			}
		}
		return v
	default:
		return c
	}
}

func (l *Lexer) lexChar(pos token.Position) token.Token {
	l.advance() // opening '
	if l.atEnd() {
		l.failures++
		return token.Token{Kind: token.Unknown, Pos: pos}
	}
	var v byte
	if l.peek() == '\\' {
		l.advance()
		v = l.escapeByte()
	} else {
		v = l.advance()
	}
	if l.peek() == '\'' {
		l.advance()
	} else {
		l.failures++
	}
	return token.Token{Kind: token.IntLit, IntVal: int64(v), Pos: pos}
}

func (l *Lexer) lexString(pos token.Position) token.Token {
	l.advance() // opening "
	var buf []byte
	for !l.atEnd() && l.peek() != '"' {
		c := l.peek()
		if c == '\\' {
			l.advance()
			buf = append(buf, l.escapeByte())
			continue
		}
		buf = append(buf, l.advance())
	}
	if l.peek() == '"' {
		l.advance()
	} else {
		l.failures++ // unterminated string literal
	}
	return token.Token{Kind: token.StringLit, Text: token.NewText(string(buf)), Pos: pos}
}

type punctRule struct {
	chars []byte
	kind  token.Kind
}

// punctRules is tried longest-match-first (3, 2, then 1 byte). '->' is
// deliberately mapped to the same Dot kind as '.': spec.md §9 keeps
// this ambiguity and pushes disambiguation to the parser by symbol
// kind (struct value vs struct pointer).
var punctRules = []punctRule{
	{[]byte("<<="), token.ShlEq}, {[]byte(">>="), token.ShrEq},
	{[]byte("->"), token.Dot}, {[]byte("=="), token.EqEq}, {[]byte("!="), token.NotEq},
	{[]byte("<="), token.Le}, {[]byte(">="), token.Ge}, {[]byte("&&"), token.AmpAmp},
	{[]byte("||"), token.PipePipe}, {[]byte("+="), token.PlusEq}, {[]byte("-="), token.MinusEq},
	{[]byte("*="), token.StarEq}, {[]byte("/="), token.SlashEq}, {[]byte("%="), token.PercentEq},
	{[]byte("&="), token.AmpEq}, {[]byte("|="), token.PipeEq}, {[]byte("^="), token.CaretEq},
	{[]byte("<<"), token.Shl}, {[]byte(">>"), token.Shr},
	{[]byte("++"), token.PlusPlus}, {[]byte("--"), token.MinusMinus},
	{[]byte("("), token.LParen}, {[]byte(")"), token.RParen},
	{[]byte("{"), token.LBrace}, {[]byte("}"), token.RBrace},
	{[]byte("["), token.LBracket}, {[]byte("]"), token.RBracket},
	{[]byte(";"), token.Semi}, {[]byte(","), token.Comma}, {[]byte("."), token.Dot},
	{[]byte("&"), token.Amp}, {[]byte("*"), token.Star}, {[]byte("+"), token.Plus},
	{[]byte("-"), token.Minus}, {[]byte("/"), token.Slash}, {[]byte("%"), token.Percent},
	{[]byte("!"), token.Bang}, {[]byte("~"), token.Tilde}, {[]byte("|"), token.Pipe},
	{[]byte("^"), token.Caret}, {[]byte("<"), token.Lt}, {[]byte(">"), token.Gt},
	{[]byte("?"), token.Question}, {[]byte(":"), token.Colon}, {[]byte("="), token.Assign},
}

func (l *Lexer) lexPunct(pos token.Position) token.Token {
	for _, rule := range punctRules {
		if l.matches(rule.chars) {
			for range rule.chars {
				l.advance()
			}
			return token.Token{Kind: rule.kind, Pos: pos}
		}
	}
	l.advance()
	l.failures++
	return token.Token{Kind: token.Unknown, Pos: pos}
}

func (l *Lexer) matches(chars []byte) bool {
	for i, c := range chars {
		if l.peekAt(i) != c {
			return false
		}
	}
	return true
}
