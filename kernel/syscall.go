package kernel

import (
	"hartcore/hal"
	"hartcore/kernel/arch"
	"hartcore/kernel/file"
)

// SyscallFunc implements one system call for process p. args are a0..a5
// at the ecall; the result goes back in a0.
type SyscallFunc func(p *Proc, args [6]uint64) uint64

// System call numbers.
const (
	SysSpawn  = 1
	SysExit   = 2
	SysWait   = 3
	SysPipe   = 4
	SysRead   = 5
	SysKill   = 6
	SysDup    = 10
	SysGetpid = 11
	SysSleep  = 13
	SysUptime = 14
	SysWrite  = 16
	SysClose  = 21
	SysYield  = 22
)

// failed is -1 in a0.
const failed = ^uint64(0)

func defaultSyscalls() map[uint64]SyscallFunc {
	return map[uint64]SyscallFunc{
		SysSpawn:  sysSpawn,
		SysExit:   sysExit,
		SysWait:   sysWait,
		SysPipe:   sysPipe,
		SysRead:   sysRead,
		SysKill:   sysKill,
		SysDup:    sysDup,
		SysGetpid: sysGetpid,
		SysSleep:  sysSleep,
		SysUptime: sysUptime,
		SysWrite:  sysWrite,
		SysClose:  sysClose,
		SysYield:  sysYield,
	}
}

// syscall runs the system call in tf for p and stores the result in a0.
// It returns the cpu p is on afterwards.
func (k *Kernel) syscall(c *CPU, p *Proc, tf *TrapFrame) *CPU {
	// epc points to the ecall instruction, but we want to return to the
	// next instruction.
	tf.EPC += 4

	// an interrupt will change sepc, scause, and sstatus, so enable only
	// now that we're done with those registers.
	arch.IntrOn(c.hart)

	num := tf.Regs[hal.A7]
	fn, ok := k.syscalls[num]
	if !ok {
		k.logf("%d %s: unknown sys call %d", p.pid, p.name, num)
		tf.Regs[hal.A0] = failed
		return c
	}
	tf.Regs[hal.A0] = fn(p, tf.args())
	return p.cpu
}

// argint converts a syscall argument to a signed int.
func argint(a uint64) int { return int(int64(a)) }

// fdalloc allocates a file descriptor for f.
func (p *Proc) fdalloc(f file.File) int {
	for fd := range p.ofile {
		if p.ofile[fd] == nil {
			p.ofile[fd] = f
			return fd
		}
	}
	return -1
}

// fd returns the open file at descriptor a, or nil.
func (p *Proc) fd(a uint64) file.File {
	if a >= NOFILE {
		return nil
	}
	return p.ofile[a]
}
