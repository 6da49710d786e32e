/*
 * ani-core - Per-CPU register file
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

// RegFileSize is the fixed capacity of a RegisterFile's lane storage, per
// spec.md §3.
const RegFileSize = 4096

// RegisterFile is a CPU actor's private register state: a fixed-capacity
// byte buffer indexed by register-number*4 for 32-bit lanes, plus a
// 64-bit PC held apart from the lane buffer. Lane storage is always
// little-endian by this interpreter's internal convention regardless of
// guest endianness, which is handled at decode time, not here.
type RegisterFile struct {
	bytes [RegFileSize]byte
	Pc    uint64
}

// NewRegisterFile returns a zeroed register file with PC at 0.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{}
}

// WriteU32 writes a 32-bit lane. Callers are responsible for routing
// writes to RDiscard away from this method (it has no special case for
// register 0; that's the translator's and interpreter's job).
func (r *RegisterFile) WriteU32(reg uint16, value uint32) {
	off := int(reg) * 4
	r.bytes[off+0] = byte(value >> 0)
	r.bytes[off+1] = byte(value >> 8)
	r.bytes[off+2] = byte(value >> 16)
	r.bytes[off+3] = byte(value >> 24)
}

// ReadU32 reads a 32-bit lane.
func (r *RegisterFile) ReadU32(reg uint16) uint32 {
	off := int(reg) * 4
	return uint32(r.bytes[off+0])<<0 |
		uint32(r.bytes[off+1])<<8 |
		uint32(r.bytes[off+2])<<16 |
		uint32(r.bytes[off+3])<<24
}
