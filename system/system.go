/*
 * ani-core - System façade: the library's single public entry point
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

// Package system is the library's public façade: one root bus matrix
// plus a handle-keyed table of running CPU actors. Every method either
// delegates straight to the root matrix or looks up a CpuCookie and
// delegates to that CPU's actor.
package system

import (
	"sync"

	"github.com/monocasa/ani-core-go/aerr"
	"github.com/monocasa/ani-core-go/bus"
	"github.com/monocasa/ani-core-go/executor"
	"github.com/monocasa/ani-core-go/iisa"
	"github.com/monocasa/ani-core-go/mips"
)

// CpuOpts is the façade-level 8-bit flag set passed to RegisterCpu,
// architecture-neutral until an Arch's family picks it apart.
type CpuOpts uint8

const (
	CpuEndianLittle CpuOpts = 0
	CpuEndianBig    CpuOpts = 1 << 0
)

// Family tags which guest architecture family an Arch value selects.
// MIPS is the only family this core translates for today.
type Family int

const (
	FamilyMips Family = iota
)

// Arch is the closed set of guest CPU variants RegisterCpu accepts.
type Arch struct {
	Family Family
	Mips   mips.Arch
}

// MipsArch builds an Arch selecting a MIPS-family variant.
func MipsArch(variant mips.Arch) Arch {
	return Arch{Family: FamilyMips, Mips: variant}
}

// CpuCookie is an opaque handle to a registered CPU, returned by
// RegisterCpu and required by every other per-CPU method.
type CpuCookie uint64

// System owns the machine's physical address space and every CPU
// registered against it.
type System struct {
	mu   sync.Mutex
	root *bus.Matrix
	cpus map[CpuCookie]*executor.Cpu
	next CpuCookie
}

// New returns an empty system: no mapped ranges, no registered CPUs.
func New() *System {
	return &System{
		root: bus.NewMatrix(),
		cpus: make(map[CpuCookie]*executor.Cpu),
	}
}

// AddMappableRange installs a host-backed memory range on the root bus
// matrix. size need not be page-aligned; the backing allocation is
// rounded up.
func (s *System) AddMappableRange(prot bus.Prot, base, size uint64) error {
	_, err := s.root.AddMappableRange(prot, base, size)
	return err
}

// AddBusSlave installs an MMIO peripheral on the root bus matrix.
func (s *System) AddBusSlave(base, size uint64, slave bus.BusSlave) error {
	_, err := s.root.AddBusSlave(base, size, slave)
	return err
}

// SetRange installs raw bytes into a previously mapped range. It fails
// if the span is not fully covered by one Mappable range.
func (s *System) SetRange(data []byte, base uint64) error {
	return s.root.SetRange(data, base)
}

// RegisterCpu constructs the translator for arch, spawns a CPU actor
// wired to the root bus matrix, and returns its handle. Arch families
// this core doesn't translate for return UnimplementedArchitecture.
func (s *System) RegisterCpu(opts CpuOpts, arch Arch) (CpuCookie, error) {
	switch arch.Family {
	case FamilyMips:
		if opts&^CpuEndianBig != 0 {
			return 0, &aerr.Error{Kind: aerr.OptNotSupported, Opts: uint8(opts)}
		}
		switch arch.Mips {
		case mips.R2000, mips.Sys161, mips.VR4300:
		default:
			return 0, aerr.New(aerr.UnimplementedArchitecture)
		}
		tr := mips.NewTranslator(arch.Mips, mips.CpuOpts(opts))
		cpu := executor.New(s.root, tr)

		s.mu.Lock()
		defer s.mu.Unlock()
		handle := s.next
		s.next++
		s.cpus[handle] = cpu
		return handle, nil

	default:
		return 0, aerr.New(aerr.UnimplementedArchitecture)
	}
}

func (s *System) lookup(cookie CpuCookie) (*executor.Cpu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cpu, ok := s.cpus[cookie]
	if !ok {
		return nil, aerr.New(aerr.InvalidCpuCookie)
	}
	return cpu, nil
}

// SetReg writes a register on the CPU named by cookie.
func (s *System) SetReg(cookie CpuCookie, reg iisa.CpuReg, value uint64) error {
	cpu, err := s.lookup(cookie)
	if err != nil {
		return err
	}
	return cpu.SetReg(reg, value)
}

// GetReg reads a register on the CPU named by cookie.
func (s *System) GetReg(cookie CpuCookie, reg iisa.CpuReg) (uint64, error) {
	cpu, err := s.lookup(cookie)
	if err != nil {
		return 0, err
	}
	return cpu.GetReg(reg)
}

// Execute runs the CPU named by cookie from its current PC until it
// leaves [base, end), a code hook stops it, or a decode/interpret
// error occurs.
func (s *System) Execute(cookie CpuCookie, base, end uint64) (executor.ExitReason, error) {
	cpu, err := s.lookup(cookie)
	if err != nil {
		return executor.ExitReason{}, err
	}
	return cpu.Execute(base, end)
}

// AddBlockHookAll installs a block-entry hook on the CPU named by cookie.
func (s *System) AddBlockHookAll(cookie CpuCookie, hook executor.BlockHook) error {
	cpu, err := s.lookup(cookie)
	if err != nil {
		return err
	}
	return cpu.AddBlockHookAll(hook)
}

// AddCodeHookSingle installs a hook at one exact PC on the CPU named by cookie.
func (s *System) AddCodeHookSingle(cookie CpuCookie, base uint64, hook executor.CodeHook) error {
	cpu, err := s.lookup(cookie)
	if err != nil {
		return err
	}
	return cpu.AddCodeHookSingle(base, hook)
}

// Shutdown sends Shutdown to every registered CPU and waits for each to
// join before returning. The System must not be used afterward.
func (s *System) Shutdown() {
	s.mu.Lock()
	cpus := make([]*executor.Cpu, 0, len(s.cpus))
	for _, cpu := range s.cpus {
		cpus = append(cpus, cpu)
	}
	s.mu.Unlock()

	for _, cpu := range cpus {
		cpu.Shutdown()
	}
}
