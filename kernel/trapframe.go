package kernel

import "hartcore/hal"

// TrapFrame holds a process's user registers while it is in the kernel.
// It sits at TRAPFRAME in the process's address space, just below the
// trampoline page. The first five fields are filled by usertrapret for
// uservec to find the kernel again.
type TrapFrame struct {
	KernelSATP   uint64 // kernel page table
	KernelSP     uint64 // top of process's kernel stack
	KernelTrap   uint64 // usertrap()
	EPC          uint64 // saved user program counter
	KernelHartID uint64 // saved kernel tp
	SATP         uint64 // user address space
	Status       uint64 // sstatus at the trap
	Regs         [hal.NumRegs]uint64
}

// save copies every general purpose register of h.
func (tf *TrapFrame) save(h hal.Hart) {
	for r := hal.Reg(1); r < hal.NumRegs; r++ {
		tf.Regs[r] = h.Reg(r)
	}
}

// restore loads every general purpose register into h.
func (tf *TrapFrame) restore(h hal.Hart) {
	for r := hal.Reg(1); r < hal.NumRegs; r++ {
		h.SetReg(r, tf.Regs[r])
	}
}

// restoreKernel loads everything except tp, in case we moved harts.
func (tf *TrapFrame) restoreKernel(h hal.Hart) {
	for r := hal.Reg(1); r < hal.NumRegs; r++ {
		if r == hal.TP {
			continue
		}
		h.SetReg(r, tf.Regs[r])
	}
}

// args returns a0..a5.
func (tf *TrapFrame) args() [6]uint64 {
	var a [6]uint64
	copy(a[:], tf.Regs[hal.A0:hal.A5+1])
	return a
}
