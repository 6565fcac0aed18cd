package x86

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovRegImm32(t *testing.T) {
	got := MovRegImm32(EAX, 0x11223344)
	assert.Equal(t, []byte{0xb8, 0x44, 0x33, 0x22, 0x11}, got)
}

func TestLoadLocalDisp8Form(t *testing.T) {
	got := LoadLocal(EAX, -8)
	assert.Equal(t, []byte{0x8b, 0x45, 0xf8}, got)
}

func TestLoadLocalDisp32FormBeyondByteRange(t *testing.T) {
	got := LoadLocal(EAX, -200)
	require.Len(t, got, 6)
	assert.Equal(t, byte(0x8b), got[0])
	assert.Equal(t, byte(0x85), got[1]) // disp32 ModR/M form, not disp8
}

func TestCallRel32OpcodeAndOffset(t *testing.T) {
	bytes, off := CallRel32(0)
	require.Len(t, bytes, 5)
	assert.Equal(t, byte(0xe8), bytes[0], "call opcode must be E8")
	assert.Equal(t, 1, off)
}

func TestPatchRel32ComputesRelativeDisplacement(t *testing.T) {
	code := make([]byte, 10)
	// site=0, target=20: rel = target - (site+4) = 16
	PatchRel32(code, 0, 20)
	assert.Equal(t, []byte{16, 0, 0, 0}, code[0:4])
}

func TestPatchRel32AbsComputesBaseInvariantDisplacement(t *testing.T) {
	code := make([]byte, 10)
	codeBase := uint32(0x00400000)
	site := 100
	targetAbs := uint32(0x00480000)
	PatchRel32Abs(code, site, codeBase, targetAbs)

	want := int32(targetAbs) - int32(codeBase) - int32(site+4)
	got := int32(code[0]) | int32(code[1])<<8 | int32(code[2])<<16 | int32(code[3])<<24
	assert.Equal(t, want, got)
}

func TestSetCCNormalisesToZeroOrOne(t *testing.T) {
	got := SetCC(CC_E)
	assert.Equal(t, []byte{0x0f, CC_E, 0xc0, 0x0f, 0xb6, 0xc0}, got)
}

func TestPrologueFrameImmOffsetPointsAtImmediate(t *testing.T) {
	bytes, immOff := Prologue(32)
	le := int32(bytes[immOff]) | int32(bytes[immOff+1])<<8 | int32(bytes[immOff+2])<<16 | int32(bytes[immOff+3])<<24
	assert.Equal(t, int32(32), le)
}

func TestEpilogueEndsWithRet(t *testing.T) {
	got := Epilogue()
	assert.Equal(t, byte(0xc3), got[len(got)-1])
}

func TestCmpRROperandOrder(t *testing.T) {
	// CmpRR(a,b) computes a-b: modrm encodes b as the reg field, a as rm.
	got := CmpRR(EAX, ECX)
	assert.Equal(t, []byte{0x39, modrmRR(ECX, EAX)}, got)
}

func TestRegDispZeroOffsetOmitsDisplacement(t *testing.T) {
	got := LoadReg(EAX, EBX, 0)
	assert.Equal(t, []byte{0x8b, modrmRR(EAX, EBX) &^ 0xc0}, got)
}
