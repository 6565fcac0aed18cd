package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersBuiltinStructs(t *testing.T) {
	tab := New()
	require.Len(t, tab.Structs, 2)
	tokIdx, ok := tab.FindStruct("cc2_token")
	require.True(t, ok)
	assert.Equal(t, 0, tokIdx)
	_, ok = tab.FindStruct("cc2_define")
	assert.True(t, ok)
}

func TestFrameOffsetMapsSlotToEbpOffset(t *testing.T) {
	assert.Equal(t, 4, FrameOffset(0))
	assert.Equal(t, 8, FrameOffset(1))
	assert.Equal(t, 40, FrameOffset(9))
}

func TestAddGlobalAndFindGlobal(t *testing.T) {
	tab := New()
	require.NoError(t, tab.AddGlobal(Global{Name: "counter", Offset: 0, Size: 4, ElemSize: 4}))
	g, ok := tab.FindGlobal("counter")
	require.True(t, ok)
	assert.Equal(t, 4, g.Size)
}

func TestGlobalCapacityOverflow(t *testing.T) {
	tab := New()
	for i := 0; i < MaxGlobals; i++ {
		require.NoError(t, tab.AddGlobal(Global{Name: "g", Offset: i * 4, Size: 4, ElemSize: 4}))
	}
	err := tab.AddGlobal(Global{Name: "overflow", Size: 4})
	require.Error(t, err)
	var capErr *CapacityError
	assert.ErrorAs(t, err, &capErr)
	assert.Equal(t, "global", capErr.Table)
}

func TestLocalCapacityOverflow(t *testing.T) {
	tab := New()
	for i := 0; i < MaxLocals; i++ {
		_, err := tab.AddLocal("l", -1)
		require.NoError(t, err)
	}
	_, err := tab.AddLocal("overflow", -1)
	require.Error(t, err)
}

func TestFindLocalSearchesInnermostFirst(t *testing.T) {
	tab := New()
	outer, err := tab.AddLocal("x", -1)
	require.NoError(t, err)
	require.NoError(t, tab.PushScope())
	inner, err := tab.AddLocal("x", -1)
	require.NoError(t, err)

	found, ok := tab.FindLocal("x", 0)
	require.True(t, ok)
	assert.Equal(t, inner, found)
	assert.NotEqual(t, outer, found)
}

func TestPushPopScopeRestoresLocalCount(t *testing.T) {
	tab := New()
	_, _ = tab.AddLocal("a", -1)
	require.NoError(t, tab.PushScope())
	_, _ = tab.AddLocal("b", -1)
	_, _ = tab.AddLocal("c", -1)
	require.Len(t, tab.Locals, 3)

	tab.PopScope()
	require.Len(t, tab.Locals, 1)
	_, ok := tab.FindLocal("b", 0)
	assert.False(t, ok)
}

func TestPopScopeTruncatesLocalArrays(t *testing.T) {
	tab := New()
	require.NoError(t, tab.PushScope())
	base, _ := tab.AddLocal("arr", -1)
	_, _ = tab.AddLocal("", -1)
	require.NoError(t, tab.AddLocalArray("arr", base, 2))

	tab.PopScope()
	_, ok := tab.FindLocalArray("arr")
	assert.False(t, ok)
}

func TestStructFieldAlignment(t *testing.T) {
	tab := New()
	si, err := tab.AddStruct("point")
	require.NoError(t, err)
	require.NoError(t, tab.AddStructField(si, "tag", 1, 1, false))
	require.NoError(t, tab.AddStructField(si, "x", 4, 4, false))

	st := tab.Structs[si]
	tag, ok := st.FieldByName("tag")
	require.True(t, ok)
	assert.Equal(t, 0, tag.Offset)

	x, ok := st.FieldByName("x")
	require.True(t, ok)
	assert.Equal(t, 4, x.Offset, "word field must align to a 4-byte boundary after a 1-byte field")
}

func TestResetRestoresBuiltinStructsOnly(t *testing.T) {
	tab := New()
	_, _ = tab.AddGlobal(Global{Name: "g", Size: 4})
	_, _ = tab.AddLocal("l", -1)
	_, _ = tab.AddStruct("extra")

	tab.Reset()
	assert.Len(t, tab.Globals, 0)
	assert.Len(t, tab.Locals, 0)
	assert.Len(t, tab.Structs, 2)
}

func TestAddFunctionAndCallPatch(t *testing.T) {
	tab := New()
	require.NoError(t, tab.AddFunction("main", 0))
	fn, ok := tab.FindFunction("main")
	require.True(t, ok)
	assert.Equal(t, 0, fn.Offset)

	require.NoError(t, tab.AddCallPatch("helper", 123))
	require.Len(t, tab.CallPatch, 1)
	assert.Equal(t, "helper", tab.CallPatch[0].Callee)
}
