package kernel

import "hartcore/hal"

// timervec is the machine-mode trap vector Start installs in mtvec. With
// everything else delegated it mostly sees timer interrupts.
func (k *Kernel) timervec(h hal.Hart) {
	var f TrapFrame
	f.save(h)
	pc := k.MachineTrap(h,
		h.ReadCSR(hal.Mepc),
		h.ReadCSR(hal.Mtval),
		h.ReadCSR(hal.Mcause),
		h.ReadCSR(hal.Mhartid),
		h.ReadCSR(hal.Mstatus),
		&f)
	f.restore(h)
	h.WriteCSR(hal.Mepc, pc)
	h.Mret()
}

// MachineTrap handles a trap taken to machine mode and returns the pc to
// resume at. A timer interrupt re-arms the comparator and raises a
// supervisor software interrupt, which is how the quantum reaches the
// scheduler.
func (k *Kernel) MachineTrap(h hal.Hart, epc, tval, cause, hart, status uint64, f *TrapFrame) uint64 {
	code := cause &^ hal.CauseInterrupt
	if cause&hal.CauseInterrupt != 0 {
		switch code {
		case hal.IRQMachineSoft:
			k.logf("hart %d: machine software interrupt", hart)
		case hal.IRQMachineTimer:
			k.timer.Rearm(h)
			h.SetCSR(hal.Mip, hal.IntSSI)
		case hal.IRQMachineExt:
			k.logf("hart %d: machine external interrupt", hart)
		default:
			k.panicf(h, "machine trap: unhandled interrupt %d mepc=%#x mstatus=%#x", code, epc, status)
		}
		return epc
	}

	switch code {
	case hal.ExcIllegalInstruction:
		k.panicf(h, "machine trap: illegal instruction mepc=%#x mtval=%#x", epc, tval)
	case hal.ExcEcallU, hal.ExcEcallS:
		// Only reached when medeleg does not delegate ecalls.
		c := &k.cpus[hart]
		if c.proc == nil {
			k.panicf(h, "machine trap: ecall with no process mepc=%#x", epc)
		}
		f.EPC = epc
		k.syscall(c, c.proc, f)
		return f.EPC
	case hal.ExcEcallM:
		k.panicf(h, "machine trap: ecall from machine mode mepc=%#x", epc)
	case hal.ExcInstructionPageFault, hal.ExcLoadPageFault, hal.ExcStorePageFault:
		k.logf("hart %d: machine trap: %s mepc=%#x", hart, Decode(cause, tval), epc)
		return epc + 4
	default:
		k.panicf(h, "machine trap: unhandled exception %d mepc=%#x mtval=%#x", code, epc, tval)
	}
	return epc
}
