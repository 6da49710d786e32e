package bus

import (
	"testing"

	"github.com/monocasa/ani-core-go/aerr"
)

// Dispatch correctness: a read is served by the range whose span fully
// contains the access, first match wins, and an address with no
// covering range returns BusError.
func TestDispatchFirstMatch(t *testing.T) {
	m := NewMatrix()

	if _, err := m.AddMappableRange(ProtAll, 0x1000, 0x1000); err != nil {
		t.Fatalf("AddMappableRange: %v", err)
	}
	if _, err := m.AddMappableRange(ProtAll, 0x2000, 0x1000); err != nil {
		t.Fatalf("AddMappableRange: %v", err)
	}

	if err := m.Write32(0x1004, 0xdeadbeef); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	got, err := m.Read32(0x1004)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if got != 0xdeadbeef {
		t.Errorf("got %#x want %#x", got, 0xdeadbeef)
	}

	if _, err := m.Read32(0x500); err == nil {
		t.Fatalf("expected BusError for unmapped address, got nil")
	} else if ae, ok := err.(*aerr.Error); !ok || ae.Kind != aerr.BusError {
		t.Errorf("expected BusError, got %v", err)
	}
}

// An access that straddles a range boundary must not be served by
// either range.
func TestDispatchRejectsPartialOverlap(t *testing.T) {
	m := NewMatrix()
	if _, err := m.AddMappableRange(ProtAll, 0x1000, 0x10); err != nil {
		t.Fatalf("AddMappableRange: %v", err)
	}

	if _, err := m.Read32(0x100e); err == nil {
		t.Fatalf("expected BusError for access crossing range end, got nil")
	}
}

func TestProtectionReadOnlyRejectsWrite(t *testing.T) {
	m := NewMatrix()
	if _, err := m.AddMappableRange(ProtRead, 0x1000, 0x1000); err != nil {
		t.Fatalf("AddMappableRange: %v", err)
	}

	if err := m.Write32(0x1000, 0x12345678); err == nil {
		t.Fatalf("expected BusError writing to a read-only range")
	}

	v, err := m.Read32(0x1000)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if v != 0 {
		t.Errorf("memory mutated despite rejected write: got %#x", v)
	}
}

func TestProtectionWriteOnlyRejectsRead(t *testing.T) {
	m := NewMatrix()
	if _, err := m.AddMappableRange(ProtWrite, 0x1000, 0x1000); err != nil {
		t.Fatalf("AddMappableRange: %v", err)
	}

	if _, err := m.Read32(0x1000); err == nil {
		t.Fatalf("expected BusError reading from a write-only range")
	}
}

func TestSetRangeAndFindRange(t *testing.T) {
	m := NewMatrix()
	if _, err := m.AddMappableRange(ProtAll, 0x1fc00000, 256*1024); err != nil {
		t.Fatalf("AddMappableRange: %v", err)
	}

	payload := []byte{0x34, 0x21, 0x34, 0x56}
	if err := m.SetRange(payload, 0x1fc00000); err != nil {
		t.Fatalf("SetRange: %v", err)
	}

	page, err := m.FindRange(0x1fc00000, len(payload))
	if err != nil {
		t.Fatalf("FindRange: %v", err)
	}
	for i, b := range payload {
		if page[i] != b {
			t.Errorf("byte %d: got %#x want %#x", i, page[i], b)
		}
	}
}

func TestSetRangeUncoveredFails(t *testing.T) {
	m := NewMatrix()
	if _, err := m.AddMappableRange(ProtAll, 0x1000, 0x10); err != nil {
		t.Fatalf("AddMappableRange: %v", err)
	}

	err := m.SetRange([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17}, 0x1000)
	if err == nil {
		t.Fatalf("expected UnableToFindRange for span exceeding the mappable range")
	}
	ae, ok := err.(*aerr.Error)
	if !ok || ae.Kind != aerr.UnableToFindRange {
		t.Errorf("expected UnableToFindRange, got %v", err)
	}
}

// Matrix fan-out: after AddChildMatrix, the child sees exactly the
// ranges installed on the parent, in insertion order; subsequent
// installs fire Add events in order.
func TestChildMatrixFanOut(t *testing.T) {
	parent := NewMatrix()
	r1, _ := parent.AddMappableRange(ProtAll, 0x1000, 0x1000)
	r2, _ := parent.AddMappableRange(ProtAll, 0x2000, 0x1000)

	var seen []*Range
	parent.AddChildMatrix(func(op UpdateOp) {
		seen = append(seen, op.Range)
	})

	if len(seen) != 2 {
		t.Fatalf("expected 2 replayed events, got %d", len(seen))
	}
	if seen[0] != r1 || seen[1] != r2 {
		t.Errorf("replay order wrong: got %v want [%v %v]", seen, r1, r2)
	}

	r3, _ := parent.AddMappableRange(ProtAll, 0x3000, 0x1000)
	if len(seen) != 3 {
		t.Fatalf("expected 3 events after new install, got %d", len(seen))
	}
	if seen[2] != r3 {
		t.Errorf("new install event wrong: got %v want %v", seen[2], r3)
	}
}

type fakeSlave struct {
	reg    uint32
	failOn uint64 // addr that panics, simulating a poisoned lock
}

func (s *fakeSlave) Read8(addr uint64) (uint8, error)  { return uint8(s.reg), nil }
func (s *fakeSlave) Read16(addr uint64) (uint16, error) { return uint16(s.reg), nil }
func (s *fakeSlave) Read32(addr uint64) (uint32, error) {
	if addr == s.failOn {
		panic("simulated slave fault")
	}
	return s.reg, nil
}
func (s *fakeSlave) Read64(addr uint64) (uint64, error) { return uint64(s.reg), nil }
func (s *fakeSlave) Write8(addr uint64, v uint8) error  { s.reg = uint32(v); return nil }
func (s *fakeSlave) Write16(addr uint64, v uint16) error {
	s.reg = uint32(v)
	return nil
}
func (s *fakeSlave) Write32(addr uint64, v uint32) error { s.reg = v; return nil }
func (s *fakeSlave) Write64(addr uint64, v uint64) error { s.reg = uint32(v); return nil }

func TestMmioRoundTrip(t *testing.T) {
	m := NewMatrix()
	slave := &fakeSlave{}
	if _, err := m.AddBusSlave(0xf0000, 0x10, slave); err != nil {
		t.Fatalf("AddBusSlave: %v", err)
	}

	if err := m.Write32(0xf0004, 0xcafe); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	got, err := m.Read32(0xf0004)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if got != 0xcafe {
		t.Errorf("got %#x want %#x", got, 0xcafe)
	}
}

func TestMmioPoisonedLockYieldsBusError(t *testing.T) {
	m := NewMatrix()
	slave := &fakeSlave{failOn: 4}
	if _, err := m.AddBusSlave(0xf0000, 0x10, slave); err != nil {
		t.Fatalf("AddBusSlave: %v", err)
	}

	if _, err := m.Read32(0xf0004); err == nil {
		t.Fatalf("expected BusError from panicking slave")
	}

	// Subsequent access must also fail: the lock stays poisoned.
	if _, err := m.Read32(0xf0008); err == nil {
		t.Fatalf("expected BusError on poisoned slave for unrelated address")
	}
}
