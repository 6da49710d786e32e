/*
 * ani-core - Tagged error union for the emulation core
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

// Package aerr defines the closed set of error kinds every fallible
// operation in ani-core returns. It intentionally does not wrap stdlib
// errors or adopt a third-party errors package: every kind carries its
// own typed payload, and callers switch on Kind rather than unwrap chains.
package aerr

import "fmt"

// Kind identifies which error condition occurred.
type Kind int

const (
	Unimplemented Kind = iota
	MemAllocation
	UnableToFindRange
	InvalidCpuCookie
	OptNotSupported
	UnimplementedArchitecture
	GetRegUnknownReg
	SetRegValueOutOfRange
	SetRegUnknownReg
	InvalidPC
	VirtualAddrNotMappable
	PromiseLost
	BusError
	Unaligned
)

func (k Kind) String() string {
	switch k {
	case Unimplemented:
		return "Unimplemented"
	case MemAllocation:
		return "MemAllocation"
	case UnableToFindRange:
		return "UnableToFindRange"
	case InvalidCpuCookie:
		return "InvalidCpuCookie"
	case OptNotSupported:
		return "OptNotSupported"
	case UnimplementedArchitecture:
		return "UnimplementedArchitecture"
	case GetRegUnknownReg:
		return "GetRegUnknownReg"
	case SetRegValueOutOfRange:
		return "SetRegValueOutOfRange"
	case SetRegUnknownReg:
		return "SetRegUnknownReg"
	case InvalidPC:
		return "InvalidPC"
	case VirtualAddrNotMappable:
		return "VirtualAddrNotMappable"
	case PromiseLost:
		return "PromiseLost"
	case BusError:
		return "BusError"
	case Unaligned:
		return "Unaligned"
	default:
		return "UnknownError"
	}
}

// Error is the single error type returned by every fallible ani-core
// operation. Payload fields are populated according to Kind; fields that
// don't apply to a given Kind are left at their zero value.
type Error struct {
	Kind Kind

	Ctx     string // Unimplemented
	Base    uint64 // UnableToFindRange
	Len     uint64 // UnableToFindRange
	Opts    uint8  // OptNotSupported
	Reg     any    // GetRegUnknownReg, SetRegValueOutOfRange, SetRegUnknownReg
	Value   uint64 // SetRegValueOutOfRange, SetRegUnknownReg
	Vaddr   uint64 // VirtualAddrNotMappable
}

func (e *Error) Error() string {
	switch e.Kind {
	case Unimplemented:
		return fmt.Sprintf("unimplemented: %s", e.Ctx)
	case UnableToFindRange:
		return fmt.Sprintf("unable to find range for base=%#x len=%#x", e.Base, e.Len)
	case OptNotSupported:
		return fmt.Sprintf("unsupported option bits %#02x", e.Opts)
	case GetRegUnknownReg:
		return fmt.Sprintf("get_reg: unknown register %v", e.Reg)
	case SetRegValueOutOfRange:
		return fmt.Sprintf("set_reg: value %#x out of range for register %v", e.Value, e.Reg)
	case SetRegUnknownReg:
		return fmt.Sprintf("set_reg: unknown register %v (value %#x)", e.Reg, e.Value)
	case VirtualAddrNotMappable:
		return fmt.Sprintf("virtual address %#x not mappable", e.Vaddr)
	default:
		return e.Kind.String()
	}
}

// Is reports whether target is an *Error with the same Kind, so callers
// may use errors.Is(err, aerr.New(aerr.BusError)) style comparisons.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New builds a bare Error of the given Kind with no payload.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Unimplementedf builds an Unimplemented error with a formatted context.
func Unimplementedf(format string, args ...any) *Error {
	return &Error{Kind: Unimplemented, Ctx: fmt.Sprintf(format, args...)}
}

// NotFoundRange builds an UnableToFindRange error.
func NotFoundRange(base, length uint64) *Error {
	return &Error{Kind: UnableToFindRange, Base: base, Len: length}
}

// NotMappable builds a VirtualAddrNotMappable error.
func NotMappable(vaddr uint64) *Error {
	return &Error{Kind: VirtualAddrNotMappable, Vaddr: vaddr}
}

// UnknownGetReg builds a GetRegUnknownReg error.
func UnknownGetReg(reg any) *Error {
	return &Error{Kind: GetRegUnknownReg, Reg: reg}
}

// ValueOutOfRange builds a SetRegValueOutOfRange error.
func ValueOutOfRange(reg any, value uint64) *Error {
	return &Error{Kind: SetRegValueOutOfRange, Reg: reg, Value: value}
}

// UnknownSetReg builds a SetRegUnknownReg error.
func UnknownSetReg(reg any, value uint64) *Error {
	return &Error{Kind: SetRegUnknownReg, Reg: reg, Value: value}
}
