/*
 * ani-core - Intermediate instruction set (IISA) value vocabulary
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package iisa is the generic intermediate instruction set that sits
// between architecture-specific decode (package mips) and the
// register-file-mutating interpreter. Every value here is immutable once
// constructed; translators build Instr slices, the interpreter walks them.
package iisa

// R identifies a destination or source register in the IISA register
// file. Only W (32-bit lane) and Discard are exercised by the MIPS
// front end; the remaining tags exist because the IISA register space
// is generic across architectures this core doesn't yet translate for.
type RKind int

const (
	RIp RKind = iota
	RDiscard
	RZero
	RP
	RPred
	RB
	RH
	RW
	RX
	RTP
	RTPred
	RTB
	RTH
	RTW
	RTX
)

// R is a tagged register reference. Index is meaningful only for the
// indexed kinds (RP, RPred, RB, RH, RW, RX and their T-prefixed temporary
// counterparts); it is ignored for RIp, RDiscard, RZero.
type R struct {
	Kind  RKind
	Index uint16
}

func Ip() R      { return R{Kind: RIp} }
func Discard() R { return R{Kind: RDiscard} }
func Zero() R    { return R{Kind: RZero} }
func W(i uint16) R { return R{Kind: RW, Index: i} }
func B(i uint16) R { return R{Kind: RB, Index: i} }
func H(i uint16) R { return R{Kind: RH, Index: i} }
func X(i uint16) R { return R{Kind: RX, Index: i} }

// SrcKind tags which alternative a Src value holds.
type SrcKind int

const (
	SrcReg SrcKind = iota
	SrcImmU8
	SrcImmU16
	SrcImmU32
	SrcImmU64
	SrcImmI8
	SrcImmI16
	SrcImmI32
	SrcImmI64
	SrcAddr
)

// Src is an IISA source operand: a register read, a signed or unsigned
// immediate of a specific width, or an absolute code address.
type Src struct {
	Kind SrcKind
	Reg  R
	U    uint64
	I    int64
}

func RegSrc(r R) Src          { return Src{Kind: SrcReg, Reg: r} }
func ImmU8(v uint8) Src       { return Src{Kind: SrcImmU8, U: uint64(v)} }
func ImmU16(v uint16) Src     { return Src{Kind: SrcImmU16, U: uint64(v)} }
func ImmU32(v uint32) Src     { return Src{Kind: SrcImmU32, U: uint64(v)} }
func ImmU64(v uint64) Src     { return Src{Kind: SrcImmU64, U: v} }
func ImmI8(v int8) Src        { return Src{Kind: SrcImmI8, I: int64(v)} }
func ImmI16(v int16) Src      { return Src{Kind: SrcImmI16, I: int64(v)} }
func ImmI32(v int32) Src      { return Src{Kind: SrcImmI32, I: int64(v)} }
func ImmI64(v int64) Src      { return Src{Kind: SrcImmI64, I: v} }
func Addr(v uint64) Src       { return Src{Kind: SrcAddr, U: v} }

// Operand bundle shapes named by spec: DstSrcSrc, SrcSrcSrc, DstSrc,
// SrcSrcTarget.
type DstSrcSrc struct {
	Dst R
	Src [2]Src
}

type SrcSrcSrc struct {
	Src [3]Src
}

type DstSrc struct {
	Dst R
	Src Src
}

type SrcSrcTarget struct {
	Src    [2]Src
	Target Src
}

// Cond is a predicate/compare/branch condition code.
type Cond int

const (
	CondNe Cond = iota
	CondEq
	CondGe
	CondGt
	CondLe
	CondLt
)

// OpCode tags which operation an Instr performs and which operand bundle
// shape it carries.
type OpCode int

const (
	OpNop OpCode = iota

	OpAdd
	OpSub
	OpDiv
	OpDivu
	OpMod
	OpModu

	OpAnd
	OpOr
	OpNor
	OpSll
	OpSra
	OpSrl
	OpXor

	OpSet

	OpLb
	OpLbs
	OpLh
	OpLw
	OpSb
	OpSh
	OpSw
	OpLd

	OpCall
	OpB
	OpExc
	OpJ
)

// Op is the fully-typed operation: a tag plus whichever operand bundle
// that tag uses. Exactly one of the operand-bundle fields (DstSrcSrc,
// SrcSrcSrc, DstSrc, SrcSrcTarget, Src) is populated, matching OpCode.
type Op struct {
	Code OpCode
	Cond Cond // only meaningful for OpSet, OpB

	DstSrcSrc    DstSrcSrc // Add, Sub, Div, Divu, Mod, Modu, And, Or, Nor, Sll, Sra, Srl, Xor, Set, Lb, Lbs, Lh, Lw
	SrcSrcSrc    SrcSrcSrc // Sb, Sh, Sw
	DstSrc       DstSrc    // Ld
	SrcSrcTarget SrcSrcTarget // B
	Src          Src       // Call, J
}

// IsEndOfBlock reports whether op terminates a basic block (control
// transfer or exception), mirroring the original ani-core's
// is_end_of_block.
func IsEndOfBlock(op Op) bool {
	switch op.Code {
	case OpCall, OpB, OpExc, OpJ:
		return true
	default:
		return false
	}
}

// PredKind tags an Instr's optional guard.
type PredKind int

const (
	PredNone PredKind = iota
	PredTrue
	PredFalse
)

// Pred is an instruction's optional predicate guard: unconditional,
// guarded by R being true, or guarded by R being false.
type Pred struct {
	Kind PredKind
	Reg  R
}

// Delay-slot exception-class tags, per spec.md §3: 0 for ordinary
// instructions, 1 for a delay-slot filler (emitted first, size 0), 2 for
// the branch that follows it (full block size).
const (
	ExcNone       uint8 = 0
	ExcDelaySlot  uint8 = 1
	ExcBranch     uint8 = 2
)

// Instr is one fully-decoded IISA instruction: an operation, an optional
// guard, a delay-slot exception tag, and the number of guest PC bytes to
// advance after commit (0 for a delay-slot filler; the paired branch
// carries the whole block's size).
type Instr struct {
	Op   Op
	Pred Pred
	Exc  uint8
	Size uint8
}

// CpuRegKind tags a generic, architecture-neutral register identity as
// used by a façade's set_reg/get_reg surface.
type CpuRegKind int

const (
	CpuRegPc CpuRegKind = iota
	CpuRegSpecific
)

// CpuReg names a register the way an external caller does: either the
// program counter, or an architecture-defined index whose meaning is
// assigned by the Translator (for MIPS, GPR n).
type CpuReg struct {
	Kind  CpuRegKind
	Index uint32
}

func Pc() CpuReg                  { return CpuReg{Kind: CpuRegPc} }
func CpuSpecific(n uint32) CpuReg { return CpuReg{Kind: CpuRegSpecific, Index: n} }

// Translator is the architecture-specific front end a CPU actor is
// configured with: it turns guest code bytes into IISA, maps guest
// virtual instruction addresses to physical ones, and translates the
// façade's generic CpuReg identities to and from register-file lanes.
type Translator interface {
	Decode(base uint64, buf []byte) ([]Instr, error)
	VirtualToPhys(regs *RegisterFile, vaddr uint64) (uint64, bool)
	SetReg(regs *RegisterFile, reg CpuReg, value uint64) error
	GetReg(regs *RegisterFile, reg CpuReg) (uint64, error)
}
