package preproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefineThenLookup(t *testing.T) {
	tab := NewTable()
	require.NoError(t, tab.Define(Macro{Name: "SIZE", Body: "16"}))
	m, ok := tab.Lookup("SIZE")
	require.True(t, ok)
	assert.Equal(t, "16", m.Body)
}

func TestRedefineReplacesInPlace(t *testing.T) {
	tab := NewTable()
	require.NoError(t, tab.Define(Macro{Name: "SIZE", Body: "16"}))
	require.NoError(t, tab.Define(Macro{Name: "SIZE", Body: "32"}))
	m, ok := tab.Lookup("SIZE")
	require.True(t, ok)
	assert.Equal(t, "32", m.Body)
	assert.Len(t, tab.macros, 1)
}

func TestUndefRemovesMacroAndReindexes(t *testing.T) {
	tab := NewTable()
	require.NoError(t, tab.Define(Macro{Name: "A", Body: "1"}))
	require.NoError(t, tab.Define(Macro{Name: "B", Body: "2"}))
	tab.Undef("A")

	_, ok := tab.Lookup("A")
	assert.False(t, ok)
	m, ok := tab.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, "2", m.Body)
}

func TestMacroCapacityOverflow(t *testing.T) {
	tab := NewTable()
	for i := 0; i < MaxMacros; i++ {
		require.NoError(t, tab.Define(Macro{Name: string(rune('a' + i%26)) + string(rune(i)), Body: "0"}))
	}
	err := tab.Define(Macro{Name: "overflow", Body: "0"})
	require.Error(t, err)
}

func TestEncodeParamsSubstitutesExactIdentifiers(t *testing.T) {
	got := encodeParams("x + xx + x", "x", "")
	assert.Equal(t, string([]byte{Param1Sentinel}) + " + xx + " + string([]byte{Param1Sentinel}), got)
}

func TestEncodeParamsTwoParams(t *testing.T) {
	got := encodeParams("a + b", "a", "b")
	want := string([]byte{Param1Sentinel}) + " + " + string([]byte{Param2Sentinel})
	assert.Equal(t, want, got)
}
