//go:build !tinygo

package hal

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// Writable bits of the delegation registers. M-level interrupts and
// ecalls from M-mode cannot be delegated.
const (
	midelegMask = IntSSI | IntSTI | IntSEI
	medelegMask = 0xffff &^ (1 << ExcEcallM)

	// mip bits software may write directly; the rest are driven by devices.
	mipWritable = IntSSI | IntSTI
	sipWritable = IntSSI
)

// interrupt priority, highest first.
var irqOrder = [...]struct {
	bit  uint64
	code uint64
}{
	{IntMEI, IRQMachineExt},
	{IntMSI, IRQMachineSoft},
	{IntMTI, IRQMachineTimer},
	{IntSEI, IRQSupervisorExt},
	{IntSSI, IRQSupervisorSoft},
	{IntSTI, IRQSupervisorTimer},
}

// hostHart is one simulated hardware thread. Register and CSR state belongs
// to whichever goroutine is currently executing on the hart; only mip is
// shared with devices.
type hostHart struct {
	m  *hostMachine
	id int

	regs [NumRegs]uint64
	pc   uint64
	priv Privilege
	csr  [4096]uint64

	mip atomic.Uint64

	// observed by the window
	privView atomic.Uint32
	steps    atomic.Uint64
	traps    atomic.Uint64
}

func newHostHart(m *hostMachine, id int) *hostHart {
	h := &hostHart{m: m, id: id}
	h.reset()
	return h
}

func (h *hostHart) reset() {
	h.regs = [NumRegs]uint64{}
	h.csr = [4096]uint64{}
	h.pc = uint64(KERNBASE)
	h.setPriv(MachineMode)
	h.mip.Store(0)
}

func (h *hostHart) setPriv(p Privilege) {
	h.priv = p
	h.privView.Store(uint32(p))
}

func (h *hostHart) ID() int               { return h.id }
func (h *hostHart) Bus() Bus              { return h.m.bus }
func (h *hostHart) Machine() Machine      { return h.m }
func (h *hostHart) Done() <-chan struct{} { return h.m.done }

func (h *hostHart) Reg(r Reg) uint64 { return h.regs[r] }

func (h *hostHart) SetReg(r Reg, v uint64) {
	if r == Zero {
		return
	}
	h.regs[r] = v
}

func (h *hostHart) PC() uint64           { return h.pc }
func (h *hostHart) SetPC(pc uint64)      { h.pc = pc }
func (h *hostHart) Privilege() Privilege { return h.priv }

// Halt stops the machine and unwinds the caller.
func (h *hostHart) Halt(reason string) {
	h.m.Halt(h.id, reason)
	Unwind()
}

func (h *hostHart) checkHalt() {
	if h.m.halted.Load() {
		Unwind()
	}
}

func (h *hostHart) raise(bits uint64) {
	for {
		old := h.mip.Load()
		if old&bits == bits || h.mip.CompareAndSwap(old, old|bits) {
			return
		}
	}
}

func (h *hostHart) lower(bits uint64) {
	for {
		old := h.mip.Load()
		if old&bits == 0 || h.mip.CompareAndSwap(old, old&^bits) {
			return
		}
	}
}

func (h *hostHart) writeMip(mask, v uint64) {
	for {
		old := h.mip.Load()
		nv := old&^mask | v&mask
		if old == nv || h.mip.CompareAndSwap(old, nv) {
			return
		}
	}
}

// ip returns the effective mip, including the CLINT timer level.
func (h *hostHart) ip() uint64 {
	ip := h.mip.Load()
	if h.m.clint.timerPending(h.id) {
		ip |= IntMTI
	}
	return ip
}

func (h *hostHart) ReadCSR(c CSR) uint64 {
	if !h.csrAllowed(c) {
		return 0
	}
	switch c {
	case Sstatus:
		return h.csr[Mstatus] & sstatusMask
	case Sie:
		return h.csr[Mie] & h.csr[Mideleg]
	case Sip:
		return h.ip() & h.csr[Mideleg]
	case Mip:
		return h.ip()
	case Time:
		return h.m.clock.now()
	case Mhartid:
		return uint64(h.id)
	}
	return h.csr[c]
}

func (h *hostHart) WriteCSR(c CSR, v uint64) {
	if !h.csrAllowed(c) {
		return
	}
	switch c {
	case Sstatus:
		h.csr[Mstatus] = h.csr[Mstatus]&^sstatusMask | v&sstatusMask
	case Sie:
		d := h.csr[Mideleg]
		h.csr[Mie] = h.csr[Mie]&^d | v&d
	case Sip:
		h.writeMip(sipWritable&h.csr[Mideleg], v)
	case Mip:
		h.writeMip(mipWritable, v)
	case Mideleg:
		h.csr[c] = v & midelegMask
	case Medeleg:
		h.csr[c] = v & medelegMask
	case Time, Mhartid:
		h.Exception(ExcIllegalInstruction, uint64(c))
	default:
		h.csr[c] = v
	}
}

func (h *hostHart) SetCSR(c CSR, bits uint64)   { h.WriteCSR(c, h.ReadCSR(c)|bits) }
func (h *hostHart) ClearCSR(c CSR, bits uint64) { h.WriteCSR(c, h.ReadCSR(c)&^bits) }

// csrAllowed raises an illegal instruction trap for CSRs above the current
// privilege level.
func (h *hostHart) csrAllowed(c CSR) bool {
	if Privilege((c>>8)&3) <= h.priv {
		return true
	}
	h.Exception(ExcIllegalInstruction, uint64(c))
	return false
}

// pending returns the highest priority interrupt the hart would take now.
func (h *hostHart) pending() (code uint64, toM bool, ok bool) {
	en := h.ip() & h.csr[Mie]
	if en == 0 {
		return 0, false, false
	}
	mstatus := h.csr[Mstatus]
	deleg := h.csr[Mideleg]
	mOn := h.priv < MachineMode || mstatus&StatusMIE != 0
	sOn := h.priv < SupervisorMode || (h.priv == SupervisorMode && mstatus&StatusSIE != 0)
	for _, irq := range irqOrder {
		if en&irq.bit == 0 {
			continue
		}
		if deleg&irq.bit == 0 {
			if mOn {
				return irq.code, true, true
			}
		} else if sOn {
			return irq.code, false, true
		}
	}
	return 0, false, false
}

// interrupt takes a pending interrupt, if any, at an instruction boundary.
func (h *hostHart) interrupt() bool {
	code, toM, ok := h.pending()
	if !ok {
		return false
	}
	h.trap(CauseInterrupt|code, 0, toM)
	return true
}

// trap enters the handler at mtvec or stvec and runs its bound vector.
func (h *hostHart) trap(cause, tval uint64, toM bool) {
	h.checkHalt()
	h.traps.Add(1)
	var tvec uint64
	if toM {
		h.csr[Mepc] = h.pc
		h.csr[Mcause] = cause
		h.csr[Mtval] = tval
		st := h.csr[Mstatus]
		st = st&^StatusMPP | uint64(h.priv)<<StatusMPPShift
		st &^= StatusMPIE
		if st&StatusMIE != 0 {
			st |= StatusMPIE
		}
		st &^= StatusMIE
		h.csr[Mstatus] = st
		h.setPriv(MachineMode)
		tvec = h.csr[Mtvec]
	} else {
		h.csr[Sepc] = h.pc
		h.csr[Scause] = cause
		h.csr[Stval] = tval
		st := h.csr[Mstatus]
		st &^= StatusSPP
		if h.priv == SupervisorMode {
			st |= StatusSPP
		}
		st &^= StatusSPIE
		if st&StatusSIE != 0 {
			st |= StatusSPIE
		}
		st &^= StatusSIE
		h.csr[Mstatus] = st
		h.setPriv(SupervisorMode)
		tvec = h.csr[Stvec]
	}
	h.pc = tvec &^ 3
	v, ok := h.m.vectors[h.pc]
	if !ok {
		h.Halt(fmt.Sprintf("trap cause %#x to unbound vector %#x", cause, h.pc))
	}
	v(h)
}

// Step executes up to n instructions.
func (h *hostHart) Step(n int) int {
	for i := 0; i < n; i++ {
		h.checkHalt()
		if h.interrupt() {
			return n - i
		}
		h.pc += 4
		h.m.clock.step(1)
		if h.steps.Add(1)%yieldEvery == 0 {
			runtime.Gosched()
		}
	}
	return 0
}

// yieldEvery bounds how many instructions a hart runs before letting the
// other hart goroutines onto the host CPU.
const yieldEvery = 64

func (h *hostHart) Pause() {
	h.checkHalt()
	if h.interrupt() {
		return
	}
	h.steps.Add(1)
	h.m.clock.step(1)
	runtime.Gosched()
}

func (h *hostHart) Ecall() {
	h.steps.Add(1)
	h.m.clock.step(1)
	switch h.priv {
	case UserMode:
		h.Exception(ExcEcallU, 0)
	case SupervisorMode:
		h.Exception(ExcEcallS, 0)
	default:
		h.Exception(ExcEcallM, 0)
	}
}

// Exception raises a synchronous trap for the instruction at pc.
func (h *hostHart) Exception(code uint64, tval uint64) {
	toM := h.priv == MachineMode || h.csr[Medeleg]&(1<<code) == 0
	h.trap(code, tval, toM)
}

func (h *hostHart) Mret() {
	if h.priv != MachineMode {
		h.Exception(ExcIllegalInstruction, 0)
		return
	}
	st := h.csr[Mstatus]
	prev := Privilege((st & StatusMPP) >> StatusMPPShift)
	st &^= StatusMIE
	if st&StatusMPIE != 0 {
		st |= StatusMIE
	}
	st |= StatusMPIE
	st &^= StatusMPP
	h.csr[Mstatus] = st
	h.setPriv(prev)
	h.pc = h.csr[Mepc]
}

func (h *hostHart) Sret() {
	if h.priv < SupervisorMode {
		h.Exception(ExcIllegalInstruction, 0)
		return
	}
	st := h.csr[Mstatus]
	prev := UserMode
	if st&StatusSPP != 0 {
		prev = SupervisorMode
	}
	st &^= StatusSIE
	if st&StatusSPIE != 0 {
		st |= StatusSIE
	}
	st |= StatusSPIE
	st &^= StatusSPP
	h.csr[Mstatus] = st
	h.setPriv(prev)
	h.pc = h.csr[Sepc]
}

// Fence orders memory; channel hand-offs and atomics already provide the
// ordering on the host, so it only counts as an instruction.
func (h *hostHart) Fence() {
	h.steps.Add(1)
	h.m.clock.step(1)
}

func (h *hostHart) SfenceVMA() {
	h.steps.Add(1)
	h.m.clock.step(1)
}
