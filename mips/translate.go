/*
 * ani-core - MIPS32 decode, translation and register mapping
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

package mips

import (
	"github.com/monocasa/ani-core-go/aerr"
	"github.com/monocasa/ani-core-go/iisa"
	"github.com/monocasa/ani-core-go/mips/internal/opcode"
)

// Translator is the MIPS32 guest-architecture adapter. It satisfies
// iisa.Translator; the zero value is not usable, use NewTranslator.
type Translator struct {
	arch      Arch
	bigEndian bool
}

var _ iisa.Translator = (*Translator)(nil)

func destGpr(n uint8) iisa.R {
	if n == 0 {
		return iisa.Discard()
	}
	return iisa.W(uint16(n))
}

func srcGpr(n uint8) iisa.Src {
	if n == 0 {
		return iisa.ImmU32(0)
	}
	return iisa.RegSrc(iisa.W(uint16(n)))
}

func assembleWord(b []byte, bigEndian bool) uint32 {
	if bigEndian {
		return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Decode implements iisa.Translator. buf must cover at least four
// bytes at base; when the instruction there is a branch, buf must
// also cover the four delay-slot bytes that follow.
func (t *Translator) Decode(base uint64, buf []byte) ([]iisa.Instr, error) {
	if base%4 != 0 {
		return nil, aerr.New(aerr.Unaligned)
	}
	if len(buf) < 4 {
		return nil, aerr.Unimplementedf("mips32 decode: buffer shorter than one instruction word")
	}
	if t.arch == VR4300 {
		return nil, aerr.Unimplementedf("mips64 decode unimplemented")
	}

	word := assembleWord(buf[:4], t.bigEndian)
	return t.decodeOne(base, word, buf)
}

func (t *Translator) decodeOne(base uint64, word uint32, buf []byte) ([]iisa.Instr, error) {
	op, err := opcode.Decode(word)
	if err != nil {
		return nil, aerr.Unimplementedf("mips32 decode @ %#x: %v", base, err)
	}

	switch op.Mne {
	case opcode.MneAddiu:
		return []iisa.Instr{{
			Op: iisa.Op{
				Code: iisa.OpAdd,
				DstSrcSrc: iisa.DstSrcSrc{
					Dst: destGpr(op.Rt),
					Src: [2]iisa.Src{srcGpr(op.Rs), iisa.ImmI16(op.ImmI16)},
				},
			},
			Size: 4,
		}}, nil

	case opcode.MneAddu:
		return []iisa.Instr{{
			Op: iisa.Op{
				Code: iisa.OpAdd,
				DstSrcSrc: iisa.DstSrcSrc{
					Dst: destGpr(op.Rd),
					Src: [2]iisa.Src{srcGpr(op.Rs), srcGpr(op.Rt)},
				},
			},
			Size: 4,
		}}, nil

	case opcode.MneOri:
		return []iisa.Instr{{
			Op: iisa.Op{
				Code: iisa.OpOr,
				DstSrcSrc: iisa.DstSrcSrc{
					Dst: destGpr(op.Rt),
					Src: [2]iisa.Src{srcGpr(op.Rs), iisa.ImmU16(op.ImmU16)},
				},
			},
			Size: 4,
		}}, nil

	case opcode.MneLui:
		return []iisa.Instr{{
			Op: iisa.Op{
				Code: iisa.OpLd,
				DstSrc: iisa.DstSrc{
					Dst: destGpr(op.Rt),
					Src: iisa.ImmU32(uint32(op.ImmU16) << 16),
				},
			},
			Size: 4,
		}}, nil

	case opcode.MneSw:
		return []iisa.Instr{{
			Op: iisa.Op{
				Code: iisa.OpSw,
				SrcSrcSrc: iisa.SrcSrcSrc{
					Src: [3]iisa.Src{srcGpr(op.Rt), iisa.ImmI16(op.ImmI16), srcGpr(op.Rs)},
				},
			},
			Size: 4,
		}}, nil

	case opcode.MneBeq:
		return t.decodeBeq(base, op, buf)

	default:
		return nil, aerr.Unimplementedf("mips32 decode @ %#x: unhandled mnemonic %s", base, op.Mne)
	}
}

// decodeBeq emits the delay-slot filler first (exc=1, size=0) then the
// branch (exc=2, size=8), per spec.md §4.2's delay-slot ordering rule.
// A branch found in the delay slot is rejected.
func (t *Translator) decodeBeq(base uint64, op opcode.Op, buf []byte) ([]iisa.Instr, error) {
	if len(buf) < 8 {
		return nil, aerr.Unimplementedf("mips32 decode @ %#x: buffer too short for delay slot", base)
	}

	slotWord := assembleWord(buf[4:8], t.bigEndian)
	slotOp, err := opcode.Decode(slotWord)
	if err != nil {
		return nil, aerr.Unimplementedf("mips32 decode @ %#x: delay slot: %v", base+4, err)
	}
	if opcode.HasDelaySlot(slotOp) {
		return nil, aerr.Unimplementedf("mips32 decode @ %#x: branch in delay slot", base+4)
	}

	slotInstrs, err := t.decodeOne(base+4, slotWord, buf[4:])
	if err != nil {
		return nil, err
	}
	if len(slotInstrs) != 1 {
		return nil, aerr.Unimplementedf("mips32 decode @ %#x: delay slot produced %d instructions, want 1", base+4, len(slotInstrs))
	}
	slotInstrs[0].Exc = iisa.ExcDelaySlot
	slotInstrs[0].Size = 0

	rel32 := int32(op.ImmI16) << 2
	target := uint32(int64(base)+4+int64(rel32)) & 0xFFFFFFFF

	branch := iisa.Instr{
		Op: iisa.Op{
			Code: iisa.OpB,
			Cond: iisa.CondEq,
			SrcSrcTarget: iisa.SrcSrcTarget{
				Src:    [2]iisa.Src{srcGpr(op.Rs), srcGpr(op.Rt)},
				Target: iisa.ImmU32(target),
			},
		},
		Exc:  iisa.ExcBranch,
		Size: 8,
	}

	return []iisa.Instr{slotInstrs[0], branch}, nil
}

// VirtualToPhys implements iisa.Translator. R2000-class cores get a
// KSEG-style mask: KUSEG (< 0x8000_0000) is identity-mapped, KSEG0/
// KSEG1 (0x8000_0000-0xBFFF_FFFF) strip the top three bits, and KSEG2
// (>= 0xC000_0000, TLB-mapped on real hardware) is reported unmapped
// since this core does not model a TLB. Other archs are identity
// mapped; they don't yet have an MMU story of their own.
func (t *Translator) VirtualToPhys(regs *iisa.RegisterFile, vaddr uint64) (uint64, bool) {
	if t.arch != R2000 {
		return vaddr, true
	}

	v := uint32(vaddr)
	switch {
	case v < 0x80000000:
		return uint64(v), true
	case v < 0xC0000000:
		return uint64(v & 0x1FFFFFFF), true
	default:
		return 0, false
	}
}

// SetReg implements iisa.Translator: Pc sets the register file's PC
// directly; CpuSpecific(n) for n in [0,31] addresses MIPS GPR n (GPR 0
// writes are accepted and discarded, matching guest semantics).
func (t *Translator) SetReg(regs *iisa.RegisterFile, reg iisa.CpuReg, value uint64) error {
	switch reg.Kind {
	case iisa.CpuRegPc:
		regs.Pc = value
		return nil

	case iisa.CpuRegSpecific:
		if reg.Index > 31 {
			return aerr.UnknownSetReg(reg, value)
		}
		if value > 0xFFFFFFFF {
			return aerr.ValueOutOfRange(reg, value)
		}
		if reg.Index == 0 {
			return nil
		}
		regs.WriteU32(uint16(reg.Index), uint32(value))
		return nil

	default:
		return aerr.UnknownSetReg(reg, value)
	}
}

// GetReg implements iisa.Translator.
func (t *Translator) GetReg(regs *iisa.RegisterFile, reg iisa.CpuReg) (uint64, error) {
	switch reg.Kind {
	case iisa.CpuRegPc:
		return regs.Pc, nil

	case iisa.CpuRegSpecific:
		if reg.Index > 31 {
			return 0, aerr.UnknownGetReg(reg)
		}
		if reg.Index == 0 {
			return 0, nil
		}
		return uint64(regs.ReadU32(uint16(reg.Index))), nil

	default:
		return 0, aerr.UnknownGetReg(reg)
	}
}
