package elf32

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSingleSegmentHeader(t *testing.T) {
	img := Image{Code: []byte{0x90, 0x90, 0xc3}, EntryOff: 0}
	out := Build(img)

	require.GreaterOrEqual(t, len(out), HeaderSize)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, out[0:4])
	assert.Equal(t, byte(1), out[4], "ELFCLASS32")
	assert.Equal(t, byte(1), out[5], "ELFDATA2LSB")

	entry := binary.LittleEndian.Uint32(out[24:])
	assert.Equal(t, uint32(CodeBase), entry)

	phNum := binary.LittleEndian.Uint16(out[44:])
	assert.Equal(t, uint16(1), phNum, "no data segment means a single PT_LOAD phdr")

	// Code immediately follows the fixed 128-byte header region.
	assert.Equal(t, img.Code, out[HeaderSize:HeaderSize+len(img.Code)])
}

func TestBuildTwoSegmentsWhenDataPresent(t *testing.T) {
	img := Image{Code: []byte{0xc3}, Data: []byte{1, 2, 3, 4}, EntryOff: 0}
	out := Build(img)

	phNum := binary.LittleEndian.Uint16(out[44:])
	assert.Equal(t, uint16(2), phNum)

	dataPhdr := out[ELFHdrSize+PhdrSize:]
	vaddr := binary.LittleEndian.Uint32(dataPhdr[8:])
	assert.Equal(t, uint32(DataBase), vaddr)

	filesz := binary.LittleEndian.Uint32(dataPhdr[16:])
	assert.Equal(t, uint32(len(img.Data)), filesz)
}

func TestBuildEntryPointReflectsEntryOff(t *testing.T) {
	img := Image{Code: make([]byte, 64), EntryOff: 40}
	out := Build(img)
	entry := binary.LittleEndian.Uint32(out[24:])
	assert.Equal(t, uint32(CodeBase+40), entry)
}

func TestCodeSegmentFlagsReadExecNotWrite(t *testing.T) {
	img := Image{Code: []byte{0xc3}, EntryOff: 0}
	out := Build(img)
	codePhdr := out[ELFHdrSize:]
	flags := binary.LittleEndian.Uint32(codePhdr[24:])
	assert.Equal(t, uint32(PFRead|PFExec), flags)
}

func TestDataSegmentFlagsReadWriteNotExec(t *testing.T) {
	img := Image{Code: []byte{0xc3}, Data: []byte{1}, EntryOff: 0}
	out := Build(img)
	dataPhdr := out[ELFHdrSize+PhdrSize:]
	flags := binary.LittleEndian.Uint32(dataPhdr[24:])
	assert.Equal(t, uint32(PFRead|PFWrite), flags)
}
