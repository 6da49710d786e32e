package mips_test

import (
	"testing"

	"github.com/monocasa/ani-core-go/bus"
	"github.com/monocasa/ani-core-go/iisa"
	"github.com/monocasa/ani-core-go/mips"
)

// Scenario S1/S2 from spec.md §8: map a ROM at physical 0x1FC00000,
// install `ori $at,$at,0x3456` at offset 0, set AT to 0x6789, set PC
// to the KSEG1 alias 0xBFC00000, fetch+decode+interpret one step, and
// confirm the expected register and PC result.
func runOriScenario(t *testing.T, bigEndian bool, bytes []byte) {
	t.Helper()

	m := bus.NewMatrix()
	if _, err := m.AddMappableRange(bus.ProtAll, 0x1FC00000, 256*1024); err != nil {
		t.Fatalf("AddMappableRange: %v", err)
	}
	if err := m.SetRange(bytes, 0x1FC00000); err != nil {
		t.Fatalf("SetRange: %v", err)
	}

	opts := mips.CpuEndianLittle
	if bigEndian {
		opts = mips.CpuEndianBig
	}
	tr := mips.NewTranslator(mips.R2000, opts)

	rf := iisa.NewRegisterFile()
	if err := tr.SetReg(rf, mips.REG_AT, 0x6789); err != nil {
		t.Fatalf("SetReg: %v", err)
	}
	rf.Pc = 0xBFC00000

	phys, ok := tr.VirtualToPhys(rf, rf.Pc)
	if !ok {
		t.Fatalf("VirtualToPhys: expected KSEG1 address to be mappable")
	}
	page, err := m.FindRange(phys, 4)
	if err != nil {
		t.Fatalf("FindRange: %v", err)
	}

	instrs, err := tr.Decode(phys, page)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if err := iisa.Interpret(instrs, rf, m); err != nil {
		t.Fatalf("Interpret: %v", err)
	}

	got, err := tr.GetReg(rf, mips.REG_AT)
	if err != nil {
		t.Fatalf("GetReg: %v", err)
	}
	if got != 0x77DF {
		t.Errorf("AT = %#x, want %#x", got, 0x77DF)
	}
	if rf.Pc != 0xBFC00000+4 {
		t.Errorf("pc = %#x, want %#x", rf.Pc, uint64(0xBFC00000+4))
	}
}

func TestScenarioS1BigEndianOri(t *testing.T) {
	runOriScenario(t, true, []byte{0x34, 0x21, 0x34, 0x56})
}

func TestScenarioS2LittleEndianOri(t *testing.T) {
	runOriScenario(t, false, []byte{0x56, 0x34, 0x21, 0x34})
}
