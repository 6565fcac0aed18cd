// Package x86 encodes the x86-32 (i386) instructions cc2's emitter
// needs: register-immediate moves, ebp-relative locals, register-
// register ALU ops, shifts, setcc/movzx, idiv/cdq, and control-
// transfer opcodes with placeholder rel32 fields (spec.md §4.5).
//
// Grounded on tinyrange-rtg/std/compiler/i386.go, the only i386 (as
// opposed to amd64) encoder in the retrieval pack: the ModR/M byte
// layout, the ebp-relative 8-bit/32-bit displacement split, and the
// register-immediate helper shapes all follow it directly.
package x86

import "encoding/binary"

// Register encodings (mod=11 direct or the low 3 bits of ModR/M).
const (
	EAX = 0
	ECX = 1
	EDX = 2
	EBX = 3
	ESP = 4
	EBP = 5
	ESI = 6
	EDI = 7
)

// Condition codes for setcc (0F 9x /0), spec.md §4.6's comparison ops.
const (
	CC_E  = 0x94 // sete
	CC_NE = 0x95 // setne
	CC_L  = 0x9C // setl
	CC_LE = 0x9E // setle
	CC_G  = 0x9F // setg
	CC_GE = 0x9D // setge
)

func modrmRR(regField, rm int) byte {
	return byte(0xc0 | ((regField & 7) << 3) | (rm & 7))
}

func le32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

// MovRegImm32 emits `mov reg, imm32` (B8+rd imm32).
func MovRegImm32(reg int, imm int32) []byte {
	return append([]byte{byte(0xb8 + reg)}, le32(imm)...)
}

// ebpDisp builds the ModR/M(+SIB)+disp bytes for [ebp+off], auto-
// selecting the 8-bit or 32-bit displacement form. opReg is the
// register field (either the source/dest reg, or an opcode
// extension for /digit forms).
func ebpDisp(opReg, off int) []byte {
	if off >= -128 && off <= 127 {
		return []byte{byte(0x45 | ((opReg & 7) << 3)), byte(int8(off))}
	}
	return append([]byte{byte(0x85 | ((opReg & 7) << 3))}, le32(int32(off))...)
}

// LoadLocal emits `mov reg, [ebp + off]` (off is typically negative).
func LoadLocal(reg, off int) []byte {
	return append([]byte{0x8b}, ebpDisp(reg, off)...)
}

// StoreLocal emits `mov [ebp + off], reg`.
func StoreLocal(reg, off int) []byte {
	return append([]byte{0x89}, ebpDisp(reg, off)...)
}

// LeaLocal emits `lea reg, [ebp + off]`.
func LeaLocal(reg, off int) []byte {
	return append([]byte{0x8d}, ebpDisp(reg, off)...)
}

// LoadLocalU8 emits `movzx reg, byte [ebp + off]`.
func LoadLocalU8(reg, off int) []byte {
	return append([]byte{0x0f, 0xb6}, ebpDisp(reg, off)...)
}

// StoreLocalU8 emits `mov byte [ebp + off], reg_low8` (reg must be
// one of EAX/ECX/EDX/EBX so its low byte is directly addressable).
func StoreLocalU8(reg, off int) []byte {
	return append([]byte{0x88}, ebpDisp(reg, off)...)
}

// regDisp builds the ModR/M+disp bytes for [baseReg+off], for any
// baseReg other than ESP/EBP (which need a SIB byte or a mandatory
// disp8, respectively) — sufficient for cc2's pointer-field and
// array-element access, which always addresses through a scratch
// register holding a computed address, never ESP/EBP directly.
func regDisp(opReg, baseReg, off int) []byte {
	if off == 0 {
		return []byte{byte(((opReg & 7) << 3) | (baseReg & 7))}
	}
	if off >= -128 && off <= 127 {
		return []byte{byte(0x40 | ((opReg & 7) << 3) | (baseReg & 7)), byte(int8(off))}
	}
	return append([]byte{byte(0x80 | ((opReg & 7) << 3) | (baseReg & 7))}, le32(int32(off))...)
}

// LoadReg emits `mov dst, [baseReg + off]`.
func LoadReg(dst, baseReg, off int) []byte {
	return append([]byte{0x8b}, regDisp(dst, baseReg, off)...)
}

// StoreReg emits `mov [baseReg + off], src`.
func StoreReg(baseReg, src, off int) []byte {
	return append([]byte{0x89}, regDisp(src, baseReg, off)...)
}

// LoadRegU8 emits `movzx dst, byte [baseReg + off]`.
func LoadRegU8(dst, baseReg, off int) []byte {
	return append([]byte{0x0f, 0xb6}, regDisp(dst, baseReg, off)...)
}

// StoreRegU8 emits `mov byte [baseReg + off], src_low8`.
func StoreRegU8(baseReg, src, off int) []byte {
	return append([]byte{0x88}, regDisp(src, baseReg, off)...)
}

// LeaReg emits `lea dst, [baseReg + off]`.
func LeaReg(dst, baseReg, off int) []byte {
	return append([]byte{0x8d}, regDisp(dst, baseReg, off)...)
}

// absDisp builds the ModR/M+disp32 bytes for the disp32-only
// addressing form [addr] (mod=00, rm=101), used for direct global
// access: cc2 links data at a fixed base, so every global reference
// is a compile-time-known absolute address.
func absDisp(opReg int, addr uint32) []byte {
	return append([]byte{byte(0x05 | ((opReg & 7) << 3))}, le32(int32(addr))...)
}

// LoadAbs emits `mov dst, [addr]`.
func LoadAbs(dst int, addr uint32) []byte { return append([]byte{0x8b}, absDisp(dst, addr)...) }

// StoreAbs emits `mov [addr], src`.
func StoreAbs(addr uint32, src int) []byte { return append([]byte{0x89}, absDisp(src, addr)...) }

// LoadAbsU8 emits `movzx dst, byte [addr]`.
func LoadAbsU8(dst int, addr uint32) []byte {
	return append([]byte{0x0f, 0xb6}, absDisp(dst, addr)...)
}

// StoreAbsU8 emits `mov byte [addr], src_low8`.
func StoreAbsU8(addr uint32, src int) []byte { return append([]byte{0x88}, absDisp(src, addr)...) }

// LeaAbs emits `lea dst, [addr]` — equivalent to MovRegImm32 for a
// pure address load, kept for call sites that want the "lea" idiom
// documented in spec.md §4.5.
func LeaAbs(dst int, addr uint32) []byte { return append([]byte{0x8d}, absDisp(dst, addr)...) }

// Push emits `push reg`.
func Push(reg int) []byte { return []byte{byte(0x50 + reg)} }

// Pop emits `pop reg`.
func Pop(reg int) []byte { return []byte{byte(0x58 + reg)} }

// MovRR emits `mov dst, src`.
func MovRR(dst, src int) []byte { return []byte{0x89, modrmRR(src, dst)} }

// AddRR emits `add dst, src`.
func AddRR(dst, src int) []byte { return []byte{0x01, modrmRR(src, dst)} }

// SubRR emits `sub dst, src`.
func SubRR(dst, src int) []byte { return []byte{0x29, modrmRR(src, dst)} }

// AndRR emits `and dst, src`.
func AndRR(dst, src int) []byte { return []byte{0x21, modrmRR(src, dst)} }

// OrRR emits `or dst, src`.
func OrRR(dst, src int) []byte { return []byte{0x09, modrmRR(src, dst)} }

// XorRR emits `xor dst, src`.
func XorRR(dst, src int) []byte { return []byte{0x31, modrmRR(src, dst)} }

// CmpRR emits `cmp a, b`.
func CmpRR(a, b int) []byte { return []byte{0x39, modrmRR(b, a)} }

// ImulRR emits `imul dst, src` (two-byte opcode 0F AF).
func ImulRR(dst, src int) []byte { return []byte{0x0f, 0xaf, modrmRR(dst, src)} }

// Cdq emits `cdq` (sign-extend eax into edx:eax, ahead of idiv).
func Cdq() []byte { return []byte{0x99} }

// IdivR emits `idiv reg`.
func IdivR(reg int) []byte { return []byte{0xf7, byte(0xf8 | (reg & 7))} }

// NegR emits `neg reg`.
func NegR(reg int) []byte { return []byte{0xf7, byte(0xd8 | (reg & 7))} }

// NotR emits `not reg`.
func NotR(reg int) []byte { return []byte{0xf7, byte(0xd0 | (reg & 7))} }

// ShlCl emits `shl reg, cl`.
func ShlCl(reg int) []byte { return []byte{0xd3, byte(0xe0 | (reg & 7))} }

// SarCl emits `sar reg, cl` (arithmetic shift right).
func SarCl(reg int) []byte { return []byte{0xd3, byte(0xf8 | (reg & 7))} }

// ShlImm8 emits `shl reg, imm8`.
func ShlImm8(reg int, n byte) []byte { return []byte{0xc1, byte(0xe0 | (reg & 7)), n} }

// CmpRImm32 emits `cmp reg, imm32`, auto-selecting the imm8 form.
func CmpRImm32(reg int, val int32) []byte {
	if val >= -128 && val <= 127 {
		return []byte{0x83, byte(0xf8 | (reg & 7)), byte(int8(val))}
	}
	return append([]byte{0x81, byte(0xf8 | (reg & 7))}, le32(val)...)
}

// AddRImm8 emits `add esp, imm8` (cdecl argument-stack cleanup,
// spec.md §4.6 "add esp, n*4").
func AddRImm8(reg int, n byte) []byte { return []byte{0x83, byte(0xc0 | (reg & 7)), n} }

// SubRImm32 emits `sub reg, imm32` (used for the prologue's `sub
// esp, FRAME`, where imm32 is a patch-site placeholder until FRAME
// is known).
func SubRImm32(reg int, val int32) []byte {
	return append([]byte{0x81, byte(0xe8 | (reg & 7))}, le32(val)...)
}

// TestRR emits `test a, b` (used for `test eax,eax` boolean checks).
func TestRR(a, b int) []byte { return []byte{0x85, modrmRR(b, a)} }

// SetCC emits `setcc al` followed by `movzx eax, al`, normalising a
// comparison result to 0/1 in %eax (spec.md §4.6).
func SetCC(cc byte) []byte {
	return []byte{0x0f, cc, 0xc0, 0x0f, 0xb6, 0xc0}
}

// CallRel32 emits `call rel32` with a placeholder displacement,
// returning the bytes and the offset (within them) of the rel32
// field so the caller can record a patch site.
func CallRel32(rel int32) (bytes []byte, rel32Off int) {
	return append([]byte{0xe8}, le32(rel)...), 1
}

// JmpRel32 emits `jmp rel32` with a placeholder displacement.
func JmpRel32(rel int32) (bytes []byte, rel32Off int) {
	return append([]byte{0xe9}, le32(rel)...), 1
}

// JzRel32 emits `jz rel32` (two-byte opcode 0F 84).
func JzRel32(rel int32) (bytes []byte, rel32Off int) {
	return append([]byte{0x0f, 0x84}, le32(rel)...), 2
}

// JnzRel32 emits `jnz rel32` (two-byte opcode 0F 85).
func JnzRel32(rel int32) (bytes []byte, rel32Off int) {
	return append([]byte{0x0f, 0x85}, le32(rel)...), 2
}

// PatchRel32 writes target-(site+4) as a little-endian rel32 into
// code at byte offset site (spec.md §4.5).
func PatchRel32(code []byte, site, target int) {
	rel := int32(target - (site + 4))
	binary.LittleEndian.PutUint32(code[site:site+4], uint32(rel))
}

// PatchRel32Abs writes targetAbs-(codeBase+site+4) into code at site,
// the "patch_rel32_abs" variant used for builtin calls (spec.md §4.5).
func PatchRel32Abs(code []byte, site int, codeBase uint32, targetAbs uint32) {
	rel := int32(targetAbs) - int32(codeBase) - int32(site+4)
	binary.LittleEndian.PutUint32(code[site:site+4], uint32(rel))
}

// Prologue emits `push ebp; mov ebp, esp; sub esp, FRAME` with a
// placeholder FRAME, returning the frame-size patch-site offset
// within the code relative to start.
func Prologue(frame int32) (bytes []byte, frameImmOff int) {
	var out []byte
	out = append(out, Push(EBP)...)
	out = append(out, MovRR(EBP, ESP)...)
	subBytes := SubRImm32(ESP, frame)
	immOff := len(out) + 2 // opcode(1) + modrm(1) precede the imm32
	out = append(out, subBytes...)
	return out, immOff
}

// Epilogue emits `mov esp, ebp; pop ebp; ret`.
func Epilogue() []byte {
	var out []byte
	out = append(out, MovRR(ESP, EBP)...)
	out = append(out, Pop(EBP)...)
	out = append(out, 0xc3) // ret
	return out
}
