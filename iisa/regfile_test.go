package iisa

import "testing"

func TestRegisterFileWriteReadRoundTrip(t *testing.T) {
	rf := NewRegisterFile()

	rf.WriteU32(4, 0xdeadbeef)
	if got := rf.ReadU32(4); got != 0xdeadbeef {
		t.Errorf("got %#x want %#x", got, 0xdeadbeef)
	}

	if got := rf.ReadU32(5); got != 0 {
		t.Errorf("untouched lane 5: got %#x want 0", got)
	}
}

func TestRegisterFileLittleEndianLayout(t *testing.T) {
	rf := NewRegisterFile()
	rf.WriteU32(0, 0x01020304)

	if rf.bytes[0] != 0x04 || rf.bytes[1] != 0x03 || rf.bytes[2] != 0x02 || rf.bytes[3] != 0x01 {
		t.Errorf("lane storage not little-endian: %v", rf.bytes[:4])
	}
}

func TestRegisterFilePcIsSeparateFromLanes(t *testing.T) {
	rf := NewRegisterFile()
	rf.Pc = 0xA0000000 + 0x1FC00000
	rf.WriteU32(0, 0xffffffff)

	if rf.Pc == 0 {
		t.Errorf("Pc unexpectedly reset by lane write")
	}
}
