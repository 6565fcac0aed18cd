package constfold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cupidthecat/cc2/internal/preproc"
	"github.com/cupidthecat/cc2/internal/token"
)

func TestBuiltinConstants(t *testing.T) {
	v, ok := Builtin("O_CREAT")
	require.True(t, ok)
	assert.EqualValues(t, 0x0100, v)

	v, ok = Builtin("CC2_TK_IF")
	require.True(t, ok)
	assert.EqualValues(t, token.KwIf, v)

	v, ok = Builtin("CC2_MAX_LOCALS")
	require.True(t, ok)
	assert.EqualValues(t, 2048, v)

	_, ok = Builtin("NOT_A_CONSTANT")
	assert.False(t, ok)
}

func TestFromIdentChasesMacroAlias(t *testing.T) {
	macros := preproc.NewTable()
	require.NoError(t, macros.Define(preproc.Macro{Name: "BASE", Body: "10"}))
	require.NoError(t, macros.Define(preproc.Macro{Name: "ALIAS", Body: "BASE"}))

	v, ok := FromIdent("ALIAS", macros)
	require.True(t, ok)
	assert.EqualValues(t, 10, v)
}

func TestFromIdentChaseDepthBound(t *testing.T) {
	macros := preproc.NewTable()
	// A chain longer than MaxChaseDepth must fail to resolve rather
	// than looping forever.
	prev := "0"
	for i := 0; i <= MaxChaseDepth+2; i++ {
		name := "M" + string(rune('A'+i))
		require.NoError(t, macros.Define(preproc.Macro{Name: name, Body: prev}))
		prev = name
	}
	_, ok := FromIdent(prev, macros)
	assert.False(t, ok)
}

func TestFromIdentFallsBackToBuiltin(t *testing.T) {
	macros := preproc.NewTable()
	v, ok := FromIdent("O_RDONLY", macros)
	require.True(t, ok)
	assert.EqualValues(t, 0, v)
}

func TestFromIdentRejectsFunctionLikeMacro(t *testing.T) {
	macros := preproc.NewTable()
	require.NoError(t, macros.Define(preproc.Macro{Name: "SQ", Body: "1", IsFunction: true, ParamCount: 1}))
	_, ok := FromIdent("SQ", macros)
	assert.False(t, ok)
}

func TestParseLiteralHexAndSigned(t *testing.T) {
	v, ok := parseLiteral("0x1F")
	require.True(t, ok)
	assert.EqualValues(t, 31, v)

	v, ok = parseLiteral("-5")
	require.True(t, ok)
	assert.EqualValues(t, -5, v)

	_, ok = parseLiteral("not-a-number")
	assert.False(t, ok)
}
