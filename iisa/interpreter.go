/*
 * ani-core - IISA interpreter
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

package iisa

import "github.com/monocasa/ani-core-go/aerr"

// BusView is the subset of a bus.Matrix's typed operations the
// interpreter needs to service Lb/Lh/Lw/Sb/Sh/Sw. Declared locally
// rather than imported so the interpreter can be exercised against a
// fake in tests without pulling in package bus.
type BusView interface {
	Read8(addr uint64) (uint8, error)
	Write8(addr uint64, value uint8) error
	Read16(addr uint64) (uint16, error)
	Write16(addr uint64, value uint16) error
	Read32(addr uint64) (uint32, error)
	Write32(addr uint64, value uint32) error
}

// guestPtrMask restricts effective addresses to the 32-bit guest
// pointer width this core's single exercised architecture (MIPS32)
// uses, per spec.md §4.3.
const guestPtrMask = 0xFFFFFFFF

// Interpret walks a decoded IISA block, mutating regs (and, for
// loads/stores, bus) one instruction at a time. After each instruction
// commits, its Size is added to regs.Pc — except for a taken branch,
// call, or jump, which sets regs.Pc to an absolute target itself and
// is not also advanced by Size. An opcode/operand-shape combination
// this interpreter doesn't cover yields Unimplemented.
func Interpret(instrs []Instr, regs *RegisterFile, busv BusView) error {
	for _, instr := range instrs {
		guardOpen, err := predicateOpen(instr.Pred, regs)
		if err != nil {
			return err
		}
		if !guardOpen {
			regs.Pc += uint64(instr.Size)
			continue
		}

		branched, err := execOne(instr.Op, regs, busv)
		if err != nil {
			return err
		}
		if !branched {
			regs.Pc += uint64(instr.Size)
		}
	}
	return nil
}

func predicateOpen(p Pred, regs *RegisterFile) (bool, error) {
	switch p.Kind {
	case PredNone:
		return true, nil
	case PredTrue:
		v, err := readReg32(regs, p.Reg)
		return v != 0, err
	case PredFalse:
		v, err := readReg32(regs, p.Reg)
		return v == 0, err
	default:
		return false, aerr.Unimplementedf("unknown predicate kind %d", p.Kind)
	}
}

func readReg32(regs *RegisterFile, r R) (uint32, error) {
	switch r.Kind {
	case RDiscard, RZero:
		return 0, nil
	case RW:
		return regs.ReadU32(r.Index), nil
	default:
		return 0, aerr.Unimplementedf("register kind %d not supported by this interpreter", r.Kind)
	}
}

func writeReg32(regs *RegisterFile, r R, value uint32) error {
	switch r.Kind {
	case RDiscard:
		return nil
	case RW:
		regs.WriteU32(r.Index, value)
		return nil
	default:
		return aerr.Unimplementedf("register kind %d not supported by this interpreter", r.Kind)
	}
}

func readSrc32(regs *RegisterFile, src Src) (uint32, error) {
	switch src.Kind {
	case SrcReg:
		return readReg32(regs, src.Reg)
	case SrcImmU8, SrcImmU16, SrcImmU32:
		return uint32(src.U), nil
	case SrcImmI8:
		return uint32(int32(int8(src.I))), nil
	case SrcImmI16:
		return uint32(int32(int16(src.I))), nil
	case SrcImmI32:
		return uint32(int32(src.I)), nil
	case SrcImmU64, SrcImmI64, SrcAddr:
		return uint32(src.U) | uint32(src.I), nil
	default:
		return 0, aerr.Unimplementedf("unknown src kind %d", src.Kind)
	}
}

// signedOffset32 returns a source operand interpreted as a sign-extended
// 32-bit displacement, for address computation.
func signedOffset32(src Src) (int32, error) {
	switch src.Kind {
	case SrcImmI8:
		return int32(int8(src.I)), nil
	case SrcImmI16:
		return int32(int16(src.I)), nil
	case SrcImmI32:
		return int32(src.I), nil
	case SrcImmU8, SrcImmU16, SrcImmU32:
		return int32(src.U), nil
	default:
		return 0, aerr.Unimplementedf("offset operand kind %d is not an immediate", src.Kind)
	}
}

func effectiveAddr(regs *RegisterFile, base Src, offset Src) (uint64, error) {
	baseVal, err := readSrc32(regs, base)
	if err != nil {
		return 0, err
	}
	off, err := signedOffset32(offset)
	if err != nil {
		return 0, err
	}
	return uint64(int64(int32(baseVal))+int64(off)) & guestPtrMask, nil
}

func condHolds(cond Cond, a, b uint32) bool {
	sa, sb := int32(a), int32(b)
	switch cond {
	case CondNe:
		return a != b
	case CondEq:
		return a == b
	case CondGe:
		return sa >= sb
	case CondGt:
		return sa > sb
	case CondLe:
		return sa <= sb
	case CondLt:
		return sa < sb
	default:
		return false
	}
}

// execOne dispatches a single Op, returning true if it already set
// regs.Pc to an absolute target (branch taken, call, or jump) — the
// caller must not also add the instruction's Size in that case.
func execOne(op Op, regs *RegisterFile, busv BusView) (bool, error) {
	switch op.Code {
	case OpNop:
		return false, nil

	case OpAdd, OpSub, OpDiv, OpDivu, OpMod, OpModu,
		OpAnd, OpOr, OpNor, OpSll, OpSra, OpSrl, OpXor, OpSet:
		return false, execArith(op, regs)

	case OpLb, OpLbs, OpLh, OpLw:
		return false, execLoad(op, regs, busv)

	case OpSb, OpSh, OpSw:
		return false, execStore(op, regs, busv)

	case OpLd:
		v, err := readSrc32(regs, op.DstSrc.Src)
		if err != nil {
			return false, err
		}
		return false, writeReg32(regs, op.DstSrc.Dst, v)

	case OpB:
		return execBranch(op, regs)

	case OpJ:
		target, err := readSrc32(regs, op.Src)
		if err != nil {
			return false, err
		}
		regs.Pc = uint64(target) & guestPtrMask
		return true, nil

	case OpCall:
		target, err := readSrc32(regs, op.Src)
		if err != nil {
			return false, err
		}
		regs.Pc = uint64(target) & guestPtrMask
		return true, nil

	case OpExc:
		return false, aerr.Unimplementedf("Exc: exception delivery is out of scope")

	default:
		return false, aerr.Unimplementedf("unknown opcode %d", op.Code)
	}
}

func execArith(op Op, regs *RegisterFile) error {
	bundle := op.DstSrcSrc
	a, err := readSrc32(regs, bundle.Src[0])
	if err != nil {
		return err
	}
	b, err := readSrc32(regs, bundle.Src[1])
	if err != nil {
		return err
	}

	var result uint32
	switch op.Code {
	case OpAdd:
		result = a + b
	case OpSub:
		result = a - b
	case OpDiv:
		if b == 0 {
			return aerr.Unimplementedf("Div: division by zero")
		}
		result = uint32(int32(a) / int32(b))
	case OpDivu:
		if b == 0 {
			return aerr.Unimplementedf("Divu: division by zero")
		}
		result = a / b
	case OpMod:
		if b == 0 {
			return aerr.Unimplementedf("Mod: division by zero")
		}
		result = uint32(int32(a) % int32(b))
	case OpModu:
		if b == 0 {
			return aerr.Unimplementedf("Modu: division by zero")
		}
		result = a % b
	case OpAnd:
		result = a & b
	case OpOr:
		result = a | b
	case OpNor:
		result = ^(a | b)
	case OpXor:
		result = a ^ b
	case OpSll:
		result = a << (b & 31)
	case OpSrl:
		result = a >> (b & 31)
	case OpSra:
		result = uint32(int32(a) >> (b & 31))
	case OpSet:
		if condHolds(op.Cond, a, b) {
			result = 1
		}
	default:
		return aerr.Unimplementedf("execArith: unexpected opcode %d", op.Code)
	}

	return writeReg32(regs, bundle.Dst, result)
}

func execLoad(op Op, regs *RegisterFile, busv BusView) error {
	bundle := op.DstSrcSrc
	addr, err := effectiveAddr(regs, bundle.Src[0], bundle.Src[1])
	if err != nil {
		return err
	}

	var value uint32
	switch op.Code {
	case OpLb:
		v, err := busv.Read8(addr)
		if err != nil {
			return err
		}
		value = uint32(v)
	case OpLbs:
		v, err := busv.Read8(addr)
		if err != nil {
			return err
		}
		value = uint32(int32(int8(v)))
	case OpLh:
		v, err := busv.Read16(addr)
		if err != nil {
			return err
		}
		value = uint32(v)
	case OpLw:
		v, err := busv.Read32(addr)
		if err != nil {
			return err
		}
		value = v
	default:
		return aerr.Unimplementedf("execLoad: unexpected opcode %d", op.Code)
	}

	return writeReg32(regs, bundle.Dst, value)
}

func execStore(op Op, regs *RegisterFile, busv BusView) error {
	bundle := op.SrcSrcSrc
	value, err := readSrc32(regs, bundle.Src[0])
	if err != nil {
		return err
	}
	addr, err := effectiveAddr(regs, bundle.Src[2], bundle.Src[1])
	if err != nil {
		return err
	}

	switch op.Code {
	case OpSb:
		return busv.Write8(addr, uint8(value))
	case OpSh:
		return busv.Write16(addr, uint16(value))
	case OpSw:
		return busv.Write32(addr, value)
	default:
		return aerr.Unimplementedf("execStore: unexpected opcode %d", op.Code)
	}
}

func execBranch(op Op, regs *RegisterFile) (bool, error) {
	bundle := op.SrcSrcTarget
	a, err := readSrc32(regs, bundle.Src[0])
	if err != nil {
		return false, err
	}
	b, err := readSrc32(regs, bundle.Src[1])
	if err != nil {
		return false, err
	}

	if !condHolds(op.Cond, a, b) {
		return false, nil
	}

	target, err := readSrc32(regs, bundle.Target)
	if err != nil {
		return false, err
	}
	regs.Pc = uint64(target) & guestPtrMask
	return true, nil
}
