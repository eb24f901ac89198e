package kernel

import (
	"hartcore/hal"
)

// Program is the body of a process. It runs at the process's privilege
// level and reaches the kernel only through u: executed instructions,
// ecalls and faults. Returning from a Program exits with status 0.
type Program func(u *User)

// User is a process's view of the hart it is executing on. The hart can
// change at every instruction boundary, so User never caches it.
type User struct {
	p *Proc
}

func (u *User) hart() hal.Hart { return u.p.cpu.hart }

// Pid returns the process id.
func (u *User) Pid() int { return u.p.pid }

// Name returns the program name the process was started as.
func (u *User) Name() string { return u.p.name }

// Hart returns the id of the hart currently running the process.
func (u *User) Hart() int { return u.p.cpu.id }

// MemSize returns the size of user memory.
func (u *User) MemSize() uint64 { return uint64(len(u.p.mem)) }

// IOBuf returns the address of the scratch area at the top of user
// memory that library wrappers stage syscall buffers through.
func (u *User) IOBuf() (addr, size uint64) {
	return u.MemSize() - ioBufSize, ioBufSize
}

// Step executes n instructions. Interrupts are taken between them.
func (u *User) Step(n int) {
	for n > 0 {
		n = u.hart().Step(n)
	}
}

// Reg reads a general purpose register.
func (u *User) Reg(r hal.Reg) uint64 { return u.hart().Reg(r) }

// SetReg writes a general purpose register.
func (u *User) SetReg(r hal.Reg, v uint64) { u.hart().SetReg(r, v) }

// PC returns the program counter.
func (u *User) PC() uint64 { return u.hart().PC() }

// Syscall loads a7 and a0..a5 and executes ecall. It returns a0.
func (u *User) Syscall(num uint64, args ...uint64) uint64 {
	if len(args) > 6 {
		panic("kernel: more than six syscall arguments")
	}
	h := u.hart()
	for i, a := range args {
		h.SetReg(hal.A0+hal.Reg(i), a)
	}
	h.SetReg(hal.A7, num)
	h.Ecall()
	return u.hart().Reg(hal.A0)
}

// Exit ends the process. It does not return.
func (u *User) Exit(status int) {
	u.Syscall(SysExit, uint64(int64(status)))
	panic("kernel: exit returned")
}

// check faults unless [addr, addr+n) lies in user memory. It reports
// whether the access may go ahead; a skipped fault returns false.
func (u *User) check(addr, n, code uint64) bool {
	size := u.MemSize()
	if addr < size && n <= size-addr {
		return true
	}
	bad := addr
	if addr < size {
		bad = size
	}
	u.hart().Exception(code, bad)
	return false
}

// Load reads one byte of user memory.
func (u *User) Load(addr uint64) byte {
	if !u.check(addr, 1, hal.ExcLoadPageFault) {
		return 0
	}
	u.Step(1)
	return u.p.mem[addr]
}

// Store writes one byte of user memory.
func (u *User) Store(addr uint64, b byte) {
	if !u.check(addr, 1, hal.ExcStorePageFault) {
		return
	}
	u.Step(1)
	u.p.mem[addr] = b
}

// Peek copies n bytes of user memory, one instruction per doubleword.
func (u *User) Peek(addr, n uint64) []byte {
	if !u.check(addr, n, hal.ExcLoadPageFault) {
		return nil
	}
	u.Step(int(n/8) + 1)
	return append([]byte(nil), u.p.mem[addr:addr+n]...)
}

// Poke copies b into user memory, one instruction per doubleword.
func (u *User) Poke(addr uint64, b []byte) {
	if !u.check(addr, uint64(len(b)), hal.ExcStorePageFault) {
		return
	}
	u.Step(len(b)/8 + 1)
	copy(u.p.mem[addr:], b)
}

// Jump transfers control to addr. A target outside user memory takes an
// instruction page fault there.
func (u *User) Jump(addr uint64) {
	h := u.hart()
	if addr >= u.MemSize() {
		h.SetPC(addr)
		h.Exception(hal.ExcInstructionPageFault, addr)
		return
	}
	h.SetPC(addr)
	u.Step(1)
}

// Illegal executes an instruction the hart does not decode.
func (u *User) Illegal() {
	h := u.hart()
	h.Exception(hal.ExcIllegalInstruction, 0)
}
