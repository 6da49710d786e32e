package mips

import (
	"testing"

	"github.com/monocasa/ani-core-go/iisa"
)

func beWord(w uint32) []byte {
	return []byte{byte(w >> 24), byte(w >> 16), byte(w >> 8), byte(w)}
}

func leWord(w uint32) []byte {
	return []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
}

func TestDecodeAddiuBigEndian(t *testing.T) {
	tr := NewTranslator(R2000, CpuEndianBig)

	// addiu gp,gp,-12272
	instrs, err := tr.Decode(0, beWord(0x279cd010))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := iisa.Instr{
		Op: iisa.Op{
			Code: iisa.OpAdd,
			DstSrcSrc: iisa.DstSrcSrc{
				Dst: iisa.W(28),
				Src: [2]iisa.Src{iisa.RegSrc(iisa.W(28)), iisa.ImmI16(-12272)},
			},
		},
		Size: 4,
	}
	if len(instrs) != 1 || instrs[0] != want {
		t.Errorf("got %+v want %+v", instrs, want)
	}
}

func TestDecodeLuiGprZeroCollapsesToDiscard(t *testing.T) {
	tr := NewTranslator(R2000, CpuEndianBig)

	// lui zero,0xabcd
	instrs, err := tr.Decode(0, beWord(0x3c00abcd))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := iisa.Instr{
		Op: iisa.Op{
			Code: iisa.OpLd,
			DstSrc: iisa.DstSrc{
				Dst: iisa.Discard(),
				Src: iisa.ImmU32(0xABCD0000),
			},
		},
		Size: 4,
	}
	if len(instrs) != 1 || instrs[0] != want {
		t.Errorf("got %+v want %+v", instrs, want)
	}
}

func TestDecodeOriLittleEndian(t *testing.T) {
	tr := NewTranslator(R2000, CpuEndianLittle)

	// ori $at,$at,0x3456
	instrs, err := tr.Decode(0, leWord(0x34210000|0x3456))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := iisa.Instr{
		Op: iisa.Op{
			Code: iisa.OpOr,
			DstSrcSrc: iisa.DstSrcSrc{
				Dst: iisa.W(1),
				Src: [2]iisa.Src{iisa.RegSrc(iisa.W(1)), iisa.ImmU16(0x3456)},
			},
		},
		Size: 4,
	}
	if len(instrs) != 1 || instrs[0] != want {
		t.Errorf("got %+v want %+v", instrs, want)
	}
}

// Delay-slot ordering (spec.md property 5): decoding beq immediately
// followed by addu yields a two-element block whose first entry is
// the addu (delay slot, size 0) and second is the branch (size 8).
func TestDecodeBeqDelaySlotOrdering(t *testing.T) {
	tr := NewTranslator(R2000, CpuEndianBig)

	// beq a2,at,+3 ; addu s3,a3,zero
	beq := uint32(0x04)<<26 | uint32(6)<<21 | uint32(1)<<16 | uint32(3)
	addu := uint32(0)<<26 | uint32(7)<<21 | uint32(0)<<16 | uint32(19)<<11 | 0x21

	buf := append(beWord(beq), beWord(addu)...)

	instrs, err := tr.Decode(0x80710028, buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(instrs) != 2 {
		t.Fatalf("got %d instructions, want 2", len(instrs))
	}

	delaySlot := instrs[0]
	if delaySlot.Op.Code != iisa.OpAdd || delaySlot.Exc != iisa.ExcDelaySlot || delaySlot.Size != 0 {
		t.Errorf("delay slot instr wrong: %+v", delaySlot)
	}
	if delaySlot.Op.DstSrcSrc.Dst != iisa.W(19) {
		t.Errorf("delay slot dst wrong: %+v", delaySlot.Op.DstSrcSrc.Dst)
	}

	branch := instrs[1]
	if branch.Op.Code != iisa.OpB || branch.Exc != iisa.ExcBranch || branch.Size != 8 {
		t.Errorf("branch instr wrong: %+v", branch)
	}
	wantTarget := uint32(0x80710028 + 4 + (3 << 2))
	if branch.Op.SrcSrcTarget.Target != iisa.ImmU32(wantTarget) {
		t.Errorf("branch target = %+v, want %#x", branch.Op.SrcSrcTarget.Target, wantTarget)
	}
	if wantTarget != 0x80710038 {
		t.Fatalf("test arithmetic error: wantTarget=%#x", wantTarget)
	}
}

func TestDecodeNestedBranchInDelaySlotRejected(t *testing.T) {
	tr := NewTranslator(R2000, CpuEndianBig)

	beq := uint32(0x04)<<26 | uint32(6)<<21 | uint32(1)<<16 | uint32(3)
	buf := append(beWord(beq), beWord(beq)...)

	if _, err := tr.Decode(0x80710028, buf); err == nil {
		t.Fatalf("expected a decode error for a branch in a delay slot")
	}
}

func TestVirtualToPhysKseg1Alias(t *testing.T) {
	tr := NewTranslator(R2000, CpuEndianBig)

	phys, ok := tr.VirtualToPhys(iisa.NewRegisterFile(), 0xBFC00000)
	if !ok {
		t.Fatalf("expected KSEG1 address to be mappable")
	}
	if phys != 0x1FC00000 {
		t.Errorf("got %#x want %#x", phys, 0x1FC00000)
	}
}

func TestVirtualToPhysKseg2Unmapped(t *testing.T) {
	tr := NewTranslator(R2000, CpuEndianBig)

	if _, ok := tr.VirtualToPhys(iisa.NewRegisterFile(), 0xC0000000); ok {
		t.Fatalf("expected KSEG2 to be unmapped (no TLB modeling)")
	}
}

func TestGetSetRegGprZeroAlwaysZero(t *testing.T) {
	tr := NewTranslator(R2000, CpuEndianBig)
	rf := iisa.NewRegisterFile()

	if err := tr.SetReg(rf, iisa.CpuSpecific(0), 0x12345678); err != nil {
		t.Fatalf("SetReg: %v", err)
	}
	v, err := tr.GetReg(rf, iisa.CpuSpecific(0))
	if err != nil {
		t.Fatalf("GetReg: %v", err)
	}
	if v != 0 {
		t.Errorf("GPR 0 = %#x, want 0", v)
	}
}

func TestGetSetRegRoundTrip(t *testing.T) {
	tr := NewTranslator(R2000, CpuEndianBig)
	rf := iisa.NewRegisterFile()

	if err := tr.SetReg(rf, REG_AT, 0x6789); err != nil {
		t.Fatalf("SetReg: %v", err)
	}
	v, err := tr.GetReg(rf, REG_AT)
	if err != nil {
		t.Fatalf("GetReg: %v", err)
	}
	if v != 0x6789 {
		t.Errorf("got %#x want %#x", v, 0x6789)
	}
}

func TestSetRegValueOutOfRange(t *testing.T) {
	tr := NewTranslator(R2000, CpuEndianBig)
	rf := iisa.NewRegisterFile()

	if err := tr.SetReg(rf, iisa.CpuSpecific(2), 1<<32); err == nil {
		t.Fatalf("expected SetRegValueOutOfRange")
	}
}

func TestSetRegUnknownRegIndex(t *testing.T) {
	tr := NewTranslator(R2000, CpuEndianBig)
	rf := iisa.NewRegisterFile()

	if err := tr.SetReg(rf, iisa.CpuSpecific(99), 1); err == nil {
		t.Fatalf("expected SetRegUnknownReg")
	}
}
