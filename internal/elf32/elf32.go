// Package elf32 writes the minimal 32-bit ELF executable cc2 emits
// (spec.md §6): a 128-byte header region (52-byte ELF header plus
// one or two 32-byte program headers, zero-padded), followed by the
// code image and optionally the data image, no section headers.
//
// Grounded on the teacher's pkg/elf (ELF64 builder with a Segment
// slice and a two-pass Build: write header, write phdrs, write
// segment data) narrowed to ELFCLASS32/EM_386 field widths and the
// fixed 128-byte/two-segment layout spec.md §6 requires, cross-
// checked against tinyrange-rtg/std/compiler/elf_i386.go's i386 field
// layout (the only i386, as opposed to amd64, ELF writer in the pack).
package elf32

import "encoding/binary"

// Layout constants fixed by spec.md §6.
const (
	CodeBase    = 0x00400000
	DataBase    = 0x00440000
	HeaderSize  = 128 // 52-byte header + up to two 32-byte phdrs, zero-padded
	ELFHdrSize  = 52
	PhdrSize    = 32
	PTLoad      = 1
	PFExec      = 0x1
	PFWrite     = 0x2
	PFRead      = 0x4
)

// Image is the fully resolved code+data pair ready to be written as
// an ELF executable.
type Image struct {
	Code       []byte
	Data       []byte
	EntryOff   int // offset of main() within Code
}

// Build renders img into a byte slice per spec.md §6's exact layout.
func Build(img Image) []byte {
	phNum := 1
	if len(img.Data) > 0 {
		phNum = 2
	}

	out := make([]byte, HeaderSize)
	writeELFHeader(out, uint32(CodeBase+img.EntryOff), phNum)

	codeOff := HeaderSize
	writePhdr(out[ELFHdrSize:], PTLoad, PFRead|PFExec, uint32(codeOff), CodeBase, uint32(len(img.Code)))

	if phNum == 2 {
		dataFileOff := alignUp(codeOff+len(img.Code), 4)
		writePhdr(out[ELFHdrSize+PhdrSize:], PTLoad, PFRead|PFWrite, uint32(dataFileOff), DataBase, uint32(len(img.Data)))

		out = append(out, img.Code...)
		for len(out) < dataFileOff {
			out = append(out, 0)
		}
		out = append(out, img.Data...)
		return out
	}

	out = append(out, img.Code...)
	return out
}

func alignUp(v, align int) int {
	if v%align == 0 {
		return v
	}
	return v + (align - v%align)
}

// writeELFHeader fills the 52-byte ELF32 header at the start of buf.
func writeELFHeader(buf []byte, entry uint32, phNum int) {
	buf[0], buf[1], buf[2], buf[3] = 0x7f, 'E', 'L', 'F'
	buf[4] = 1 // ELFCLASS32
	buf[5] = 1 // ELFDATA2LSB
	buf[6] = 1 // EV_CURRENT
	// buf[7..15] ELFOSABI/padding, left zero

	binary.LittleEndian.PutUint16(buf[16:], 2)      // e_type = ET_EXEC
	binary.LittleEndian.PutUint16(buf[18:], 3)      // e_machine = EM_386
	binary.LittleEndian.PutUint32(buf[20:], 1)      // e_version
	binary.LittleEndian.PutUint32(buf[24:], entry)   // e_entry
	binary.LittleEndian.PutUint32(buf[28:], 52)      // e_phoff
	binary.LittleEndian.PutUint32(buf[32:], 0)       // e_shoff
	binary.LittleEndian.PutUint32(buf[36:], 0)       // e_flags
	binary.LittleEndian.PutUint16(buf[40:], 52)      // e_ehsize
	binary.LittleEndian.PutUint16(buf[42:], 32)      // e_phentsize
	binary.LittleEndian.PutUint16(buf[44:], uint16(phNum))
	binary.LittleEndian.PutUint16(buf[46:], 0) // e_shentsize
	binary.LittleEndian.PutUint16(buf[48:], 0) // e_shnum
	binary.LittleEndian.PutUint16(buf[50:], 0) // e_shstrndx
}

// writePhdr fills one 32-byte ELF32 program header at the start of buf.
func writePhdr(buf []byte, pType uint32, flags uint32, fileOff, vaddr, size uint32) {
	binary.LittleEndian.PutUint32(buf[0:], pType)
	binary.LittleEndian.PutUint32(buf[4:], fileOff)
	binary.LittleEndian.PutUint32(buf[8:], vaddr)
	binary.LittleEndian.PutUint32(buf[12:], vaddr) // p_paddr
	binary.LittleEndian.PutUint32(buf[16:], size)   // p_filesz
	binary.LittleEndian.PutUint32(buf[20:], size)   // p_memsz
	binary.LittleEndian.PutUint32(buf[24:], flags)
	binary.LittleEndian.PutUint32(buf[28:], 4) // p_align
}
