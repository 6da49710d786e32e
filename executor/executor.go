/*
 * ani-core - CPU actor: one worker goroutine per registered CPU
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

// Package executor turns a Translator into a running CPU actor: one
// goroutine owns the register file and a private view of the bus
// matrix, and every external operation reaches it as a message over a
// channel so that register state is only ever touched by its own
// worker. Go's goroutines and channels stand in for the mpsc queue and
// condvar-backed promises of the reference design: a reply channel of
// capacity 1 is this Go build's "promise".
package executor

import (
	"github.com/monocasa/ani-core-go/aerr"
	"github.com/monocasa/ani-core-go/bus"
	"github.com/monocasa/ani-core-go/iisa"
)

// TraceExitHint is a hook's verdict on whether the worker should keep
// running after the step it was invoked for commits.
type TraceExitHint int

const (
	ContinueExecution TraceExitHint = iota
	StopExecution
)

// BlockHook fires at the entry of every decoded block with the block's
// starting PC and its total size in bytes.
type BlockHook func(pc, blockSize uint64) TraceExitHint

// CodeHook fires only when a block's entry PC equals the hook's
// installation address.
type CodeHook func(pc, instrSize uint64) TraceExitHint

// ExitReasonKind tags why Execute returned without an error.
type ExitReasonKind int

const (
	ExitCodeHookSignalledStop ExitReasonKind = iota
	ExitPcOutOfRange
)

// ExitReason reports why a successful Execute call stopped.
type ExitReason struct {
	Kind ExitReasonKind
	Pc   uint64
}

type codeHookEntry struct {
	base uint64
	hook CodeHook
}

type executeResult struct {
	reason ExitReason
	err    error
}

type getRegResult struct {
	value uint64
	err   error
}

// message is the sum type carried over a Cpu's channel. Every variant
// but fsbUpdateMsg carries a reply channel so the sender can block on
// the outcome.
type message any

type executeMsg struct {
	base, end uint64
	reply     chan executeResult
}

type getRegMsg struct {
	reg   iisa.CpuReg
	reply chan getRegResult
}

type setRegMsg struct {
	reg   iisa.CpuReg
	value uint64
	reply chan error
}

type addBlockHookMsg struct {
	hook  BlockHook
	reply chan error
}

type addCodeHookMsg struct {
	base  uint64
	hook  CodeHook
	reply chan error
}

type fsbUpdateMsg struct {
	op bus.UpdateOp
}

type shutdownMsg struct {
	reply chan struct{}
}

// Cpu is the caller-facing handle to a running CPU actor. Every method
// sends a message to the worker and blocks on its reply, so external
// register changes are totally ordered by send order.
type Cpu struct {
	msgs chan message
}

// New starts a CPU actor wired to parent: translator decodes and
// interprets for it, and its private bus view is kept in sync with
// parent via the child-matrix fan-out mechanism.
func New(parent *bus.Matrix, translator iisa.Translator) *Cpu {
	msgs := make(chan message)
	c := &Cpu{msgs: msgs}

	b := &backend{
		msgs:       msgs,
		translator: translator,
		regs:       iisa.NewRegisterFile(),
		localBus:   bus.NewMatrix(),
	}

	go b.run()

	parent.AddChildMatrix(func(op bus.UpdateOp) {
		msgs <- fsbUpdateMsg{op: op}
	})

	return c
}

// Execute runs single steps starting at the CPU's current PC until it
// leaves [base, end), a code hook signals StopExecution, or a decode
// or interpret error occurs.
func (c *Cpu) Execute(base, end uint64) (ExitReason, error) {
	reply := make(chan executeResult, 1)
	c.msgs <- executeMsg{base: base, end: end, reply: reply}
	res := <-reply
	return res.reason, res.err
}

// GetReg reads a register through the translator's CpuReg mapping.
func (c *Cpu) GetReg(reg iisa.CpuReg) (uint64, error) {
	reply := make(chan getRegResult, 1)
	c.msgs <- getRegMsg{reg: reg, reply: reply}
	res := <-reply
	return res.value, res.err
}

// SetReg writes a register through the translator's CpuReg mapping.
func (c *Cpu) SetReg(reg iisa.CpuReg, value uint64) error {
	reply := make(chan error, 1)
	c.msgs <- setRegMsg{reg: reg, value: value, reply: reply}
	return <-reply
}

// AddBlockHookAll installs hook to run at the entry of every block.
// Installation order is invocation order.
func (c *Cpu) AddBlockHookAll(hook BlockHook) error {
	reply := make(chan error, 1)
	c.msgs <- addBlockHookMsg{hook: hook, reply: reply}
	return <-reply
}

// AddCodeHookSingle installs hook to run only when a block's entry PC
// equals base.
func (c *Cpu) AddCodeHookSingle(base uint64, hook CodeHook) error {
	reply := make(chan error, 1)
	c.msgs <- addCodeHookMsg{base: base, hook: hook, reply: reply}
	return <-reply
}

// Shutdown stops the worker goroutine and waits for it to exit. After
// Shutdown returns, no further messages may be sent to c.
func (c *Cpu) Shutdown() {
	reply := make(chan struct{})
	c.msgs <- shutdownMsg{reply: reply}
	<-reply
}

type backend struct {
	msgs       chan message
	translator iisa.Translator
	regs       *iisa.RegisterFile
	localBus   *bus.Matrix

	blockHooks []BlockHook
	codeHooks  []codeHookEntry

	shutdown bool // set once a Shutdown message has been handled
}

// run is the worker's Paused-state loop: it blocks on recv and
// dispatches each message in arrival order.
func (b *backend) run() {
	for msg := range b.msgs {
		if em, ok := msg.(executeMsg); ok {
			reason, err := b.execute(em.base, em.end)
			em.reply <- executeResult{reason: reason, err: err}
			if b.shutdown {
				return
			}
			continue
		}
		if b.handleMessage(msg) {
			return
		}
	}
}

// handleMessage dispatches every message kind except executeMsg, which
// its two call sites (run, and drainPending mid-execute) treat
// differently. It reports whether the worker should exit its loop.
func (b *backend) handleMessage(msg message) (shutdown bool) {
	switch m := msg.(type) {
	case getRegMsg:
		v, err := b.translator.GetReg(b.regs, m.reg)
		m.reply <- getRegResult{value: v, err: err}

	case setRegMsg:
		m.reply <- b.translator.SetReg(b.regs, m.reg, m.value)

	case addBlockHookMsg:
		b.blockHooks = append(b.blockHooks, m.hook)
		m.reply <- nil

	case addCodeHookMsg:
		b.codeHooks = append(b.codeHooks, codeHookEntry{base: m.base, hook: m.hook})
		m.reply <- nil

	case fsbUpdateMsg:
		b.localBus.ApplyUpdateOp(m.op)

	case shutdownMsg:
		b.shutdown = true
		close(m.reply)
		return true

	case executeMsg:
		m.reply <- executeResult{err: aerr.Unimplementedf("nested Execute is not supported")}
	}
	return false
}

// drainPending services every message already queued without
// blocking, so the worker stays responsive to bus updates, register
// access, and hook installation while Executing. It reports whether a
// Shutdown was received, in which case Execute must stop immediately.
func (b *backend) drainPending() (shutdownNow bool) {
	for {
		select {
		case msg := <-b.msgs:
			if em, ok := msg.(executeMsg); ok {
				em.reply <- executeResult{err: aerr.Unimplementedf("nested Execute is not supported")}
				continue
			}
			if b.handleMessage(msg) {
				return true
			}
		default:
			return false
		}
	}
}

// execute is the worker's Executing-state loop: one single-step per
// iteration, followed by a non-blocking poll for new messages, until an
// exit condition is reached.
func (b *backend) execute(base, end uint64) (ExitReason, error) {
	for {
		if b.drainPending() {
			return ExitReason{}, aerr.Unimplementedf("cpu shut down mid-execute")
		}

		if b.regs.Pc < base || b.regs.Pc >= end {
			return ExitReason{Kind: ExitPcOutOfRange, Pc: b.regs.Pc}, nil
		}

		stop, err := b.step()
		if err != nil {
			return ExitReason{}, err
		}
		if stop {
			return ExitReason{Kind: ExitCodeHookSignalledStop, Pc: b.regs.Pc}, nil
		}
	}
}

// step performs the single-step algorithm: translate the PC's page to
// a physical address, fetch the host page, decode one IISA block,
// invoke hooks, and interpret. Hooks observe the block before it runs
// but their StopExecution verdict only takes effect after the block
// commits (so the hooked instruction is still retired, matching a
// breakpoint-after-step semantics).
func (b *backend) step() (stop bool, err error) {
	pc := b.regs.Pc
	pageBase := pc &^ (bus.PageSize - 1)

	physPage, ok := b.translator.VirtualToPhys(b.regs, pageBase)
	if !ok {
		return false, aerr.NotMappable(pageBase)
	}

	page, err := b.localBus.FindRange(physPage, bus.PageSize)
	if err != nil {
		return false, err
	}

	offset := pc - pageBase
	physPc := physPage + offset

	instrs, err := b.translator.Decode(physPc, page[offset:])
	if err != nil {
		return false, err
	}

	var blockSize uint64
	for _, in := range instrs {
		blockSize += uint64(in.Size)
	}

	for _, h := range b.blockHooks {
		if h(pc, blockSize) == StopExecution {
			stop = true
		}
	}
	for _, ch := range b.codeHooks {
		if ch.base == pc && ch.hook(pc, blockSize) == StopExecution {
			stop = true
		}
	}

	if err := iisa.Interpret(instrs, b.regs, b.localBus); err != nil {
		return false, err
	}
	return stop, nil
}
