/*
 * ani-core - MIPS32 guest architecture front end
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

// Package mips is the MIPS32 guest architecture adapter: it turns raw
// instruction words into IISA via package mips/internal/opcode, and
// answers the register-identity and virtual-address questions a CPU
// actor asks of any Translator.
package mips

import "github.com/monocasa/ani-core-go/iisa"

// Arch selects which MIPS-family core variant a translator emulates.
// R2000 and Sys161 are MIPS32 cores; VR4300 is MIPS64 and is accepted
// by the façade but not yet decoded by this adapter.
type Arch int

const (
	R2000 Arch = iota
	Sys161
	VR4300
)

// CpuOpts is the 8-bit flag set register_cpu accepts. The only defined
// bit selects guest instruction-word endianness.
type CpuOpts uint8

const (
	CpuEndianLittle CpuOpts = 0
	CpuEndianBig    CpuOpts = 1 << 0
)

// REG_AT is the canonical name for MIPS GPR 1, the assembler-temporary
// register, exposed because it's the one CpuSpecific index most guest
// code and the bundled scenarios address by name rather than number.
var REG_AT = iisa.CpuSpecific(1) //nolint:revive // spec-mandated name

// NewTranslator constructs the Translator for the given arch and
// endianness option. It never returns an error: arch/opts validity is
// the façade's responsibility (UnimplementedArchitecture, OptNotSupported).
func NewTranslator(arch Arch, opts CpuOpts) *Translator {
	return &Translator{
		arch:      arch,
		bigEndian: opts&CpuEndianBig != 0,
	}
}
