/*
 * ani-core - Bus matrix: the emulated machine's physical address space
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

// Package bus models the physical address space of the emulated machine:
// an ordered collection of non-overlapping address ranges, each either
// host-backed memory or a peripheral slave behind a lock. A Matrix
// dispatches typed reads and writes to whichever range claims the
// address, and fans update events out to child matrices so each CPU
// worker can keep its own consistent view.
package bus

import (
	"sync"

	"github.com/monocasa/ani-core-go/aerr"
)

// Prot is an 8-bit protection flag set gating access to a Mappable range.
type Prot uint8

const (
	ProtRead  Prot = 0b0001
	ProtWrite Prot = 0b0010
	ProtExec  Prot = 0b0100
	ProtRW    Prot = ProtRead | ProtWrite
	ProtAll   Prot = ProtRead | ProtWrite | ProtExec
)

func (p Prot) Has(bit Prot) bool { return p&bit == bit }

// PageSize is the host page-alignment granularity for Mappable ranges,
// per spec.md §3's invariant that a Mappable range's host pointer is
// page-aligned and owns its backing for the lifetime of the matrix.
const PageSize = 4096

// BusSlave is the capability a peripheral behind an Mmio range must
// implement. Addresses passed to a slave are slave-local (offset from
// the range's base), not physical addresses. A slave that can't satisfy
// an access at all (e.g. misaligned) returns an *aerr.Error with
// Kind == aerr.Unaligned; the matrix turns any other slave error into
// aerr.BusError without further interpretation.
type BusSlave interface {
	Read8(addr uint64) (uint8, error)
	Write8(addr uint64, value uint8) error
	Read16(addr uint64) (uint16, error)
	Write16(addr uint64, value uint16) error
	Read32(addr uint64) (uint32, error)
	Write32(addr uint64, value uint32) error
	Read64(addr uint64) (uint64, error)
	Write64(addr uint64, value uint64) error
}

type rangeKind int

const (
	kindMappable rangeKind = iota
	kindMmio
)

// Range is one entry of a Matrix: a physically-addressed span backed
// either by host memory or by an MMIO slave.
type Range struct {
	Base uint64
	Size uint64

	kind rangeKind

	// Mappable backing.
	prot Prot
	mem  []byte

	// Mmio backing.
	slaveMu  sync.Mutex
	slave    BusSlave
	poisoned bool
}

// end returns the exclusive upper bound of the range.
func (r *Range) end() uint64 { return r.Base + r.Size }

// contains reports whether the whole [addr, addr+size) access fits
// inside the range, per spec.md §3's invariant and §9's REDESIGN FLAG
// that bounds checks must use the true access width, not a uniform +1.
func (r *Range) contains(addr uint64, size uint64) bool {
	accessEnd := addr + size
	return addr >= r.Base && accessEnd <= r.end()
}

// UpdateOpKind tags the single update-event variant matrices fan out to
// children. Only Add exists today: ranges are never removed once
// installed (their backing is released only on matrix teardown).
type UpdateOpKind int

const (
	OpAdd UpdateOpKind = iota
)

// UpdateOp is one event a Matrix emits to its child matrices.
type UpdateOp struct {
	Kind  UpdateOpKind
	Range *Range
}

// Matrix is an ordered sequence of address ranges plus an ordered list
// of child-update callbacks. First matching range wins on dispatch,
// scanned in insertion order. Ranges never overlap by caller contract;
// Matrix does not verify this itself.
type Matrix struct {
	mu       sync.RWMutex
	ranges   []*Range
	children []func(UpdateOp)
}

// NewMatrix returns an empty bus matrix.
func NewMatrix() *Matrix {
	return &Matrix{}
}

// AddMappableRange installs a host-backed memory range of size bytes
// (rounded up to PageSize) at physical base, readable/writable/
// executable according to prot. The backing allocation is owned by the
// matrix for its lifetime.
func (m *Matrix) AddMappableRange(prot Prot, base uint64, size uint64) (*Range, error) {
	allocSize := roundUpPage(size)
	if allocSize == 0 {
		return nil, aerr.New(aerr.MemAllocation)
	}

	r := &Range{
		Base: base,
		Size: size,
		kind: kindMappable,
		prot: prot,
		mem:  make([]byte, allocSize),
	}

	m.addRange(r)
	return r, nil
}

// AddBusSlave installs an MMIO peripheral at physical base covering
// size bytes, dispatched behind a mutual-exclusion lock.
func (m *Matrix) AddBusSlave(base uint64, size uint64, slave BusSlave) (*Range, error) {
	r := &Range{
		Base:  base,
		Size:  size,
		kind:  kindMmio,
		slave: slave,
	}

	m.addRange(r)
	return r, nil
}

func roundUpPage(size uint64) uint64 {
	if size == 0 {
		return 0
	}
	return (size + PageSize - 1) &^ (PageSize - 1)
}

// addRange appends r in insertion order and notifies every installed
// child callback with Add(r), in installation order.
func (m *Matrix) addRange(r *Range) {
	m.mu.Lock()
	m.ranges = append(m.ranges, r)
	children := append([]func(UpdateOp){}, m.children...)
	m.mu.Unlock()

	for _, cb := range children {
		cb(UpdateOp{Kind: OpAdd, Range: r})
	}
}

// AddChildMatrix installs cb as a sink for future update events and
// immediately replays every existing range as Add(range), in insertion
// order, so the child starts with an identical view to the parent at
// the moment of installation.
func (m *Matrix) AddChildMatrix(cb func(UpdateOp)) {
	m.mu.Lock()
	existing := append([]*Range{}, m.ranges...)
	m.children = append(m.children, cb)
	m.mu.Unlock()

	for _, r := range existing {
		cb(UpdateOp{Kind: OpAdd, Range: r})
	}
}

// ApplyUpdateOp applies an update event received from a parent matrix.
// This is how a CPU worker's local bus view is mutated; it is the only
// path by which a child matrix's range set changes.
func (m *Matrix) ApplyUpdateOp(op UpdateOp) {
	switch op.Kind {
	case OpAdd:
		m.mu.Lock()
		m.ranges = append(m.ranges, op.Range)
		m.mu.Unlock()
	}
}

// findRangeFor returns the first range (in insertion order) whose span
// fully contains [addr, addr+size).
func (m *Matrix) findRangeFor(addr uint64, size uint64) *Range {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.ranges {
		if r.contains(addr, size) {
			return r
		}
	}
	return nil
}

// FindRange locates a single Mappable range wholly containing
// [base, base+len) and returns a slice over its backing bytes, for bulk
// code/data installation or page fetch. It never returns a slice that
// spans a range boundary.
func (m *Matrix) FindRange(base uint64, length int) ([]byte, error) {
	r := m.findRangeFor(base, uint64(length))
	if r == nil || r.kind != kindMappable {
		return nil, aerr.NotFoundRange(base, uint64(length))
	}
	offset := base - r.Base
	return r.mem[offset : offset+uint64(length)], nil
}

// SetRange locates a single Mappable range wholly containing
// [base, base+len(data)) and copies data in. It fails with
// UnableToFindRange if no mappable range covers the span, and never
// writes across a range boundary.
func (m *Matrix) SetRange(data []byte, base uint64) error {
	dst, err := m.FindRange(base, len(data))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

func busErr() error { return aerr.New(aerr.BusError) }

// slaveErr maps an error returned by a slave to the matrix's result:
// Unaligned passes through unchanged, anything else becomes BusError.
func slaveErr(err error) error {
	if ae, ok := err.(*aerr.Error); ok && ae.Kind == aerr.Unaligned {
		return ae
	}
	return busErr()
}

// read dispatches a read of the given byte width at addr,
// enforcing the read protection bit for Mappable ranges and routing to
// the slave (under its lock) for Mmio ranges.
func (m *Matrix) read(addr uint64, width uint64) (uint64, error) {
	r := m.findRangeFor(addr, width)
	if r == nil {
		return 0, busErr()
	}

	switch r.kind {
	case kindMappable:
		if !r.prot.Has(ProtRead) {
			return 0, busErr()
		}
		off := addr - r.Base
		return decodeLE(r.mem[off:off+width], width), nil

	case kindMmio:
		return mmioRead(r, addr-r.Base, width)
	}
	return 0, busErr()
}

func (m *Matrix) write(addr uint64, width uint64, value uint64) error {
	r := m.findRangeFor(addr, width)
	if r == nil {
		return busErr()
	}

	switch r.kind {
	case kindMappable:
		if !r.prot.Has(ProtWrite) {
			return busErr()
		}
		off := addr - r.Base
		encodeLE(r.mem[off:off+width], width, value)
		return nil

	case kindMmio:
		return mmioWrite(r, addr-r.Base, width, value)
	}
	return busErr()
}

func mmioRead(r *Range, localAddr uint64, width uint64) (uint64, error) {
	r.slaveMu.Lock()
	defer r.slaveMu.Unlock()

	if r.poisoned {
		return 0, busErr()
	}

	var (
		value uint64
		err   error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.poisoned = true
				err = busErr()
			}
		}()
		switch width {
		case 1:
			var v uint8
			v, err = r.slave.Read8(localAddr)
			value = uint64(v)
		case 2:
			var v uint16
			v, err = r.slave.Read16(localAddr)
			value = uint64(v)
		case 4:
			var v uint32
			v, err = r.slave.Read32(localAddr)
			value = uint64(v)
		case 8:
			value, err = r.slave.Read64(localAddr)
		}
	}()
	if err != nil {
		return 0, slaveErr(err)
	}
	return value, nil
}

func mmioWrite(r *Range, localAddr uint64, width uint64, value uint64) error {
	r.slaveMu.Lock()
	defer r.slaveMu.Unlock()

	if r.poisoned {
		return busErr()
	}

	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.poisoned = true
				err = busErr()
			}
		}()
		switch width {
		case 1:
			err = r.slave.Write8(localAddr, uint8(value))
		case 2:
			err = r.slave.Write16(localAddr, uint16(value))
		case 4:
			err = r.slave.Write32(localAddr, uint32(value))
		case 8:
			err = r.slave.Write64(localAddr, value)
		}
	}()
	if err != nil {
		return slaveErr(err)
	}
	return nil
}

func decodeLE(b []byte, width uint64) uint64 {
	var v uint64
	for i := uint64(0); i < width; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func encodeLE(b []byte, width uint64, value uint64) {
	for i := uint64(0); i < width; i++ {
		b[i] = byte(value >> (8 * i))
	}
}

func (m *Matrix) Read8(addr uint64) (uint8, error) {
	v, err := m.read(addr, 1)
	return uint8(v), err
}

func (m *Matrix) Write8(addr uint64, value uint8) error {
	return m.write(addr, 1, uint64(value))
}

func (m *Matrix) Read16(addr uint64) (uint16, error) {
	v, err := m.read(addr, 2)
	return uint16(v), err
}

func (m *Matrix) Write16(addr uint64, value uint16) error {
	return m.write(addr, 2, uint64(value))
}

func (m *Matrix) Read32(addr uint64) (uint32, error) {
	v, err := m.read(addr, 4)
	return uint32(v), err
}

func (m *Matrix) Write32(addr uint64, value uint32) error {
	return m.write(addr, 4, uint64(value))
}

func (m *Matrix) Read64(addr uint64) (uint64, error) {
	return m.read(addr, 8)
}

func (m *Matrix) Write64(addr uint64, value uint64) error {
	return m.write(addr, 8, value)
}
