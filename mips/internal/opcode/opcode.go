/*
 * ani-core - MIPS32 instruction word decoder
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

// Package opcode pulls the bitfields out of a raw MIPS32 instruction
// word. It knows nothing about the IISA, register files, or buses —
// package mips is the only caller, and treats this the way it would
// treat an imported third-party opcode table: a pure function from a
// 32-bit word to a tagged mnemonic plus its fields.
package opcode

import "fmt"

// Mne names a decoded mnemonic. Only the handful this core's MIPS32
// front end emits IISA for are covered; everything else decodes as an
// error rather than a partially-populated Op.
type Mne int

const (
	MneAddiu Mne = iota
	MneAddu
	MneOri
	MneLui
	MneSw
	MneBeq
)

func (m Mne) String() string {
	switch m {
	case MneAddiu:
		return "addiu"
	case MneAddu:
		return "addu"
	case MneOri:
		return "ori"
	case MneLui:
		return "lui"
	case MneSw:
		return "sw"
	case MneBeq:
		return "beq"
	default:
		return "unknown"
	}
}

// Op is a decoded instruction's mnemonic plus whichever of its fields
// are meaningful for that mnemonic. Rd is filled only for the R-type
// addu; the I-type mnemonics leave it zero.
type Op struct {
	Mne    Mne
	Rs     uint8
	Rt     uint8
	Rd     uint8
	ImmI16 int16
	ImmU16 uint16
}

const (
	opcodeRType  = 0x00
	opcodeAddiu  = 0x09
	opcodeOri    = 0x0D
	opcodeLui    = 0x0F
	opcodeSw     = 0x2B
	opcodeBeq    = 0x04
	functAddu    = 0x21
)

// Decode pulls apart a 32-bit MIPS32 instruction word already
// assembled into host byte order by the caller (guest endianness is
// entirely the caller's concern; this package only sees the word).
func Decode(word uint32) (Op, error) {
	op := uint8((word >> 26) & 0x3F)
	rs := uint8((word >> 21) & 0x1F)
	rt := uint8((word >> 16) & 0x1F)
	rd := uint8((word >> 11) & 0x1F)
	funct := uint8(word & 0x3F)
	imm := uint16(word & 0xFFFF)

	switch op {
	case opcodeRType:
		switch funct {
		case functAddu:
			return Op{Mne: MneAddu, Rs: rs, Rt: rt, Rd: rd}, nil
		default:
			return Op{}, fmt.Errorf("opcode: unimplemented R-type funct %#02x", funct)
		}

	case opcodeAddiu:
		return Op{Mne: MneAddiu, Rs: rs, Rt: rt, ImmI16: int16(imm)}, nil

	case opcodeOri:
		return Op{Mne: MneOri, Rs: rs, Rt: rt, ImmU16: imm}, nil

	case opcodeLui:
		return Op{Mne: MneLui, Rt: rt, ImmU16: imm}, nil

	case opcodeSw:
		return Op{Mne: MneSw, Rs: rs, Rt: rt, ImmI16: int16(imm)}, nil

	case opcodeBeq:
		return Op{Mne: MneBeq, Rs: rs, Rt: rt, ImmI16: int16(imm)}, nil

	default:
		return Op{}, fmt.Errorf("opcode: unimplemented opcode %#02x", op)
	}
}

// HasDelaySlot reports whether op is a branch or jump, and so is
// followed in program order by an instruction that always executes
// before the transfer completes.
func HasDelaySlot(op Op) bool {
	return op.Mne == MneBeq
}
