package kernel

import (
	"sync/atomic"

	"hartcore/hal"
	"hartcore/kernel/arch"
)

// trapinithart sets up to take exceptions and traps while in the kernel.
func (k *Kernel) trapinithart(h hal.Hart) {
	h.WriteCSR(hal.Stvec, kernelvecAddr)
}

// kernelvec is the supervisor trap vector while in the kernel. It saves
// the interrupted registers on the kernel stack, calls kerneltrap and
// returns to whatever the kernel was doing, possibly on another hart.
func (k *Kernel) kernelvec(h hal.Hart) {
	var f TrapFrame
	f.save(h)
	h = k.kerneltrap(h, &f)
	f.restoreKernel(h)
	h.Sret()
}

// kerneltrap handles interrupts and exceptions from supervisor code. It
// returns the hart to resume on.
func (k *Kernel) kerneltrap(h hal.Hart, f *TrapFrame) hal.Hart {
	sepc := h.ReadCSR(hal.Sepc)
	sstatus := h.ReadCSR(hal.Sstatus)
	cause := Decode(h.ReadCSR(hal.Scause), h.ReadCSR(hal.Stval))
	c := k.mycpu(h)

	if sstatus&hal.StatusSPP == 0 {
		k.panicf(h, "kerneltrap: not from supervisor mode")
	}
	if arch.IntrGet(h) {
		k.panicf(h, "kerneltrap: interrupts enabled")
	}

	switch cause.Kind {
	case Timer, ExternalDevice:
		cause = k.devintr(c, cause)
	case Syscall:
		p := c.proc
		if p == nil || !p.supervisor || cause.Code != hal.ExcEcallS {
			k.panicf(h, "kerneltrap: ecall %d from kernel sepc=%#x", cause.Code, sepc)
		}
		f.EPC = sepc
		c = k.syscall(c, p, f)
		sepc = f.EPC
	case PageFault:
		k.panicf(h, "kerneltrap: %s sepc=%#x", cause, sepc)
	case IllegalInstruction:
		k.panicf(h, "kerneltrap: illegal instruction sepc=%#x stval=%#x", sepc, h.ReadCSR(hal.Stval))
	default:
		k.panicf(h, "kerneltrap: %s sepc=%#x", cause, sepc)
	}

	p := c.proc
	k.trace(Event{Kind: EvTrap, Hart: c.id, Pid: pidOf(p), Cause: cause})

	if p != nil && p.supervisor && p.killed.Load() {
		k.exit(c, p, -1)
	}
	// give up the CPU if this is a timer interrupt.
	if cause.Kind == Timer && p != nil && p.state == RUNNING {
		c = k.yield(c, p)
	}

	// The yield may have caused some traps to occur, so restore trap
	// registers for use by kernelvec's sret.
	h = c.hart
	h.WriteCSR(hal.Sepc, sepc)
	h.WriteCSR(hal.Sstatus, sstatus)
	return h
}

func pidOf(p *Proc) int {
	if p == nil {
		return 0
	}
	return p.pid
}

// uservec is the trampoline entry for traps from user space. sscratch
// points at the process's trap frame; the satp it finds the frame through
// is still the user's.
func (k *Kernel) uservec(h hal.Hart) {
	tf := k.trapframe(h)
	tf.save(h)
	tf.Status = h.ReadCSR(hal.Sstatus)

	// restore kernel stack pointer, hartid and page table from the frame.
	h.SetReg(hal.SP, tf.KernelSP)
	h.SetReg(hal.TP, tf.KernelHartID)
	h.WriteCSR(hal.Satp, tf.KernelSATP)
	h.SfenceVMA()

	if tf.KernelTrap != usertrapAddr {
		k.panicf(h, "uservec: bad trap frame %#x", tf.KernelTrap)
	}
	k.usertrap(h)
}

// trapframe returns the frame mapped at TRAPFRAME by the current user satp.
func (k *Kernel) trapframe(h hal.Hart) *TrapFrame {
	satp := h.ReadCSR(hal.Satp)
	if h.ReadCSR(hal.Sscratch) != TRAPFRAME {
		k.panicf(h, "uservec: sscratch %#x", h.ReadCSR(hal.Sscratch))
	}
	asid := int(arch.SatpASID(satp))
	if asid < 1 || asid > NPROC {
		k.panicf(h, "uservec: no user address space (satp %#x)", satp)
	}
	p := &k.ptable.procs[asid-1]
	if p.tf == nil || p.pagetable != arch.SatpBase(satp) {
		k.panicf(h, "uservec: stale address space (satp %#x)", satp)
	}
	return p.tf
}

// usertrap handles an interrupt, exception, or system call from user
// space. It returns to user space through usertrapret.
func (k *Kernel) usertrap(h hal.Hart) {
	if h.ReadCSR(hal.Sstatus)&hal.StatusSPP != 0 {
		k.panicf(h, "usertrap: not from user mode")
	}
	if arch.IntrGet(h) {
		k.panicf(h, "usertrap: interrupts enabled")
	}

	// send interrupts and exceptions to kerneltrap(), since we're now in
	// the kernel.
	h.WriteCSR(hal.Stvec, kernelvecAddr)

	c := k.mycpu(h)
	p := c.proc
	if p == nil {
		k.panicf(h, "usertrap: no process on hart %d", c.id)
	}

	// save user program counter.
	p.tf.EPC = h.ReadCSR(hal.Sepc)
	cause := Decode(h.ReadCSR(hal.Scause), h.ReadCSR(hal.Stval))

	switch cause.Kind {
	case Syscall:
		if cause.Code != hal.ExcEcallU {
			k.panicf(h, "usertrap: ecall %d from user mode", cause.Code)
		}
		if p.killed.Load() {
			k.exit(c, p, -1)
		}
		c = k.syscall(c, p, p.tf)
	case Timer, ExternalDevice:
		cause = k.devintr(c, cause)
	case PageFault:
		k.userfault(c, p, cause)
	case IllegalInstruction:
		k.panicf(h, "usertrap: illegal instruction pid=%d %s sepc=%#x", p.pid, p.name, p.tf.EPC)
	default:
		k.panicf(h, "usertrap: %s pid=%d %s sepc=%#x", cause, p.pid, p.name, p.tf.EPC)
	}
	k.trace(Event{Kind: EvTrap, Hart: c.id, Pid: p.pid, Cause: cause, User: true})

	if p.killed.Load() {
		k.exit(c, p, -1)
	}

	// give up the CPU if this is a timer interrupt.
	if cause.Kind == Timer {
		c = k.yield(c, p)
	}

	k.usertrapret(c, p)
}

// userfault applies the fault policy to a user page fault.
func (k *Kernel) userfault(c *CPU, p *Proc, cause Cause) {
	switch k.cfg.FaultPolicy {
	case FaultSkip:
		k.logf("usertrap: pid=%d %s: %s page fault addr=%#x sepc=%#x, skipped",
			p.pid, p.name, cause.Fault, cause.Addr, p.tf.EPC)
		p.tf.EPC += 4
	default:
		k.logf("usertrap: pid=%d %s: %s page fault addr=%#x sepc=%#x, killed",
			p.pid, p.name, cause.Fault, cause.Addr, p.tf.EPC)
		p.killed.Store(true)
	}
}

// usertrapret returns to user space.
func (k *Kernel) usertrapret(c *CPU, p *Proc) {
	h := c.hart

	// we're about to switch the destination of traps from kerneltrap() to
	// usertrap(), so turn off interrupts until we're back in user space,
	// where usertrap() is correct.
	arch.IntrOff(h)
	h.WriteCSR(hal.Stvec, uservecAddr)

	// set up trapframe values that uservec will need when the process next
	// re-enters the kernel.
	tf := p.tf
	tf.KernelSATP = h.ReadCSR(hal.Satp)
	tf.KernelSP = p.kstack + PGSIZE
	tf.KernelTrap = usertrapAddr
	tf.KernelHartID = h.Reg(hal.TP)

	// set S Previous Privilege mode to User and enable interrupts in user
	// mode.
	x := h.ReadCSR(hal.Sstatus)
	x &^= hal.StatusSPP
	x |= hal.StatusSPIE
	h.WriteCSR(hal.Sstatus, x)

	// set S Exception Program Counter to the saved user pc.
	h.WriteCSR(hal.Sepc, tf.EPC)

	k.userret(h, tf)
}

// userret is the trampoline's exit half: switch to the user page table,
// restore user registers and sret to user mode.
func (k *Kernel) userret(h hal.Hart, tf *TrapFrame) {
	h.WriteCSR(hal.Satp, tf.SATP)
	h.SfenceVMA()
	h.WriteCSR(hal.Sscratch, TRAPFRAME)
	tf.restore(h)
	h.Sret()
}

// devintr handles a timer or external interrupt and returns the cause
// with the claimed irq filled in.
func (k *Kernel) devintr(c *CPU, cause Cause) Cause {
	switch cause.Kind {
	case ExternalDevice:
		// irq indicates which device interrupted.
		irq, ok := k.intc.Claim(c.id)
		if !ok {
			// another hart claimed it first.
			return cause
		}
		cause.Source = irq
		switch irq {
		case hal.UART0_IRQ:
			k.consoleintr(c)
		case hal.VIRTIO0_IRQ:
			if k.disk != nil {
				k.disk.Intr()
			} else {
				k.logf("unexpected interrupt irq=%d (no disk)", irq)
			}
		default:
			k.logf("unexpected interrupt irq=%d", irq)
		}
		// the PLIC allows each device to raise at most one interrupt at
		// a time; tell the PLIC the device is now allowed to interrupt
		// again.
		k.intc.Complete(c.id, irq)
	case Timer:
		// software interrupt from a machine-mode timer interrupt,
		// forwarded by timervec.
		if c.id == 0 {
			k.clockintr(c)
		}
		// acknowledge the software interrupt by clearing the SSIP bit in
		// sip.
		c.hart.ClearCSR(hal.Sip, hal.IntSSI)
	}
	return cause
}

func (k *Kernel) clockintr(c *CPU) {
	k.acquire(c, &k.tickslock)
	atomic.AddUint64(&k.ticks, 1)
	k.wakeup(c, &k.ticks)
	k.release(c, &k.tickslock)
}
