package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cupidthecat/cc2/internal/token"
)

func allTokens(src string) []token.Token {
	l := New([]byte(src))
	var out []token.Token
	for {
		tok := l.Next()
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out
		}
	}
}

func TestLexIdentifiersAndKeywords(t *testing.T) {
	toks := allTokens("int x = foo;")
	require.Len(t, toks, 6) // int, x, =, foo, ;, EOF
	assert.Equal(t, token.KwInt, toks[0].Kind)
	assert.Equal(t, token.Ident, toks[1].Kind)
	assert.Equal(t, "x", toks[1].Text)
	assert.Equal(t, token.Assign, toks[2].Kind)
	assert.Equal(t, token.Ident, toks[3].Kind)
	assert.Equal(t, token.Semi, toks[4].Kind)
	assert.Equal(t, token.EOF, toks[5].Kind)
}

func TestLexNumbers(t *testing.T) {
	toks := allTokens("42 0x1F")
	require.GreaterOrEqual(t, len(toks), 2)
	assert.Equal(t, token.IntLit, toks[0].Kind)
	assert.EqualValues(t, 42, toks[0].IntVal)
	assert.Equal(t, token.IntLit, toks[1].Kind)
	assert.EqualValues(t, 31, toks[1].IntVal)
}

func TestLexCharLiteralProducesIntLit(t *testing.T) {
	// token.Kind has no separate CharLit: char literals lex as IntLit
	// carrying the byte value (spec.md §4.1).
	toks := allTokens("'a'")
	require.Equal(t, token.IntLit, toks[0].Kind)
	assert.EqualValues(t, 'a', toks[0].IntVal)
}

func TestLexCharEscape(t *testing.T) {
	toks := allTokens(`'\n'`)
	assert.Equal(t, token.IntLit, toks[0].Kind)
	assert.EqualValues(t, '\n', toks[0].IntVal)
}

func TestLexStringLiteralWithEscapes(t *testing.T) {
	toks := allTokens(`"a\nb"`)
	require.Equal(t, token.StringLit, toks[0].Kind)
	assert.Equal(t, "a\nb", toks[0].Text)
}

func TestLexUnterminatedStringBumpsFailures(t *testing.T) {
	l := New([]byte(`"unterminated`))
	tok := l.Next()
	assert.Equal(t, token.StringLit, tok.Kind)
	assert.Equal(t, 1, l.Failures())
}

func TestLexArrowAndDotShareKind(t *testing.T) {
	toks := allTokens("a.b->c")
	var dots int
	for _, tok := range toks {
		if tok.Kind == token.Dot {
			dots++
		}
	}
	assert.Equal(t, 2, dots)
}

func TestLexCommentsAreSkipped(t *testing.T) {
	toks := allTokens("int x; // trailing comment\n/* block */ int y;")
	var kinds []token.Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.NotContains(t, kinds, token.Unknown)
}

func TestLexPunctuationLongestMatchFirst(t *testing.T) {
	toks := allTokens("<<=")
	assert.Equal(t, token.ShlEq, toks[0].Kind)
}

func TestLexUnknownByteBumpsFailuresButContinues(t *testing.T) {
	l := New([]byte("@x"))
	tok := l.Next()
	assert.Equal(t, token.Unknown, tok.Kind)
	assert.Equal(t, 1, l.Failures())
	tok2 := l.Next()
	assert.Equal(t, token.Ident, tok2.Kind)
}

func TestLexRelexIdempotence(t *testing.T) {
	// Re-lexing the same source twice must yield identical token
	// streams (spec.md §8 lex-then-relex invariant).
	src := "int add(int a, int b) { return a + b; }"
	first := allTokens(src)
	second := allTokens(src)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Kind, second[i].Kind)
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].IntVal, second[i].IntVal)
	}
}
