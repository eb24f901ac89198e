package kernel

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"hartcore/hal"
	"hartcore/kernel/arch"
	"hartcore/kernel/file"
)

// ProcState is a process's place in its life cycle.
type ProcState uint8

const (
	UNUSED ProcState = iota
	EMBRYO
	SLEEPING
	RUNNABLE
	RUNNING
	ZOMBIE
)

func (s ProcState) String() string {
	switch s {
	case UNUSED:
		return "unused"
	case EMBRYO:
		return "embryo"
	case SLEEPING:
		return "sleep "
	case RUNNABLE:
		return "runble"
	case RUNNING:
		return "run   "
	case ZOMBIE:
		return "zombie"
	default:
		return "???"
	}
}

// validTransition reports whether from -> to is an edge of the process
// state machine. EMBRYO -> UNUSED only unwinds a failed allocation.
func validTransition(from, to ProcState) bool {
	switch from {
	case UNUSED:
		return to == EMBRYO
	case EMBRYO:
		return to == RUNNABLE || to == UNUSED
	case RUNNABLE:
		return to == RUNNING
	case RUNNING:
		return to == RUNNABLE || to == SLEEPING || to == ZOMBIE
	case SLEEPING:
		return to == RUNNABLE
	case ZOMBIE:
		return to == UNUSED
	}
	return false
}

// Proc is a process slot.
type Proc struct {
	k   *Kernel
	idx int

	// ptable.lock must be held when using these:
	state  ProcState
	wchan  any // if non-nil, sleeping on wchan
	xstate int // exit status to be returned to parent's wait
	pid    int
	parent *Proc
	cpu    *CPU // cpu running this process, or nil

	killed atomic.Bool

	// these are private to the process, so ptable.lock need not be held.
	kstack     uint64 // virtual address of kernel stack
	pagetable  uint64 // root page table of the user address space
	tf         *TrapFrame
	context    *arch.Context // switch here to run process
	ofile      [NOFILE]file.File
	mem        []byte // user memory, at user address 0
	name       string
	prog       Program
	supervisor bool
}

// Pid returns the process id.
func (p *Proc) Pid() int { return p.pid }

// Name returns the program name.
func (p *Proc) Name() string { return p.name }

// Killed reports whether the process has been asked to exit.
func (p *Proc) Killed() bool { return p.killed.Load() }

// asid is the address space id; it also locates the trap frame.
func (p *Proc) asid() uint16 { return uint16(p.idx + 1) }

// CopyIn copies n bytes of user memory starting at addr.
func (p *Proc) CopyIn(addr, n uint64) ([]byte, bool) {
	b, ok := p.userSlice(addr, n)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

// CopyOut copies b to user memory at addr.
func (p *Proc) CopyOut(addr uint64, b []byte) bool {
	dst, ok := p.userSlice(addr, uint64(len(b)))
	if !ok {
		return false
	}
	copy(dst, b)
	return true
}

func (p *Proc) userSlice(addr, n uint64) ([]byte, bool) {
	size := uint64(len(p.mem))
	if addr > size || n > size-addr {
		return nil, false
	}
	return p.mem[addr : addr+n], true
}

// setState moves p along the state machine. ptable.lock must be held.
func (k *Kernel) setState(c *CPU, p *Proc, to ProcState) {
	if !k.ptable.lock.holding(c) {
		k.panicf(c.hart, "setState: ptable lock not held")
	}
	from := p.state
	if !validTransition(from, to) {
		k.panicf(c.hart, "proc %d %s: bad transition %s -> %s", p.pid, p.name, from, to)
	}
	p.state = to
	k.trace(Event{Kind: EvState, Hart: c.id, Pid: p.pid, From: from, To: to})
}

// procinit fixes each slot's kernel stack.
func (k *Kernel) procinit() {
	for i := range k.ptable.procs {
		p := &k.ptable.procs[i]
		p.k = k
		p.idx = i
		p.kstack = KSTACK(i)
	}
}

// allocproc looks in the process table for an UNUSED proc and sets it up
// to run in the kernel, entering at forkret.
func (k *Kernel) allocproc(c *CPU) (*Proc, error) {
	k.acquire(c, &k.ptable.lock)
	var p *Proc
	for i := range k.ptable.procs {
		if k.ptable.procs[i].state == UNUSED {
			p = &k.ptable.procs[i]
			break
		}
	}
	if p == nil {
		k.release(c, &k.ptable.lock)
		return nil, ErrNoProc
	}
	p.pid = k.nextpid
	k.nextpid++
	k.setState(c, p, EMBRYO)
	k.release(c, &k.ptable.lock)

	pt, err := k.spaces.New()
	if err != nil {
		k.acquire(c, &k.ptable.lock)
		k.setState(c, p, UNUSED)
		p.pid = 0
		k.release(c, &k.ptable.lock)
		return nil, fmt.Errorf("allocproc: address space: %w", err)
	}
	p.pagetable = pt
	p.tf = &TrapFrame{}
	p.killed.Store(false)
	p.xstate = 0

	// Set up new context to start executing at forkret, which returns to
	// user space.
	p.context = arch.NewContext(k.forkret(p))
	p.context.RA = forkretAddr
	p.context.SP = p.kstack + PGSIZE
	return p, nil
}

// spawn creates a process running prog. Its files are the parent's, or
// the console when there is no parent.
func (k *Kernel) spawn(c *CPU, parent *Proc, name string, prog Program, supervisor bool) (*Proc, error) {
	p, err := k.allocproc(c)
	if err != nil {
		return nil, err
	}
	p.name = name
	p.prog = prog
	p.supervisor = supervisor
	p.mem = make([]byte, k.cfg.UserMemory)
	p.tf.EPC = 0
	p.tf.Regs[hal.SP] = uint64(len(p.mem))
	p.tf.SATP = arch.BuildSATP(arch.Sv39, p.asid(), p.pagetable)

	if parent != nil {
		for fd, f := range parent.ofile {
			if f != nil {
				p.ofile[fd] = f.Dup()
			}
		}
	} else {
		cons := file.NewDevice(file.CONSOLE)
		p.ofile[0] = cons
		p.ofile[1] = cons.Dup()
		p.ofile[2] = cons.Dup()
	}

	k.acquire(c, &k.ptable.lock)
	p.parent = parent
	k.setState(c, p, RUNNABLE)
	k.release(c, &k.ptable.lock)
	return p, nil
}

// freeproc releases everything a zombie still holds. ptable.lock must be
// held.
func (k *Kernel) freeproc(c *CPU, p *Proc) {
	if p.pagetable != 0 {
		k.spaces.Free(p.pagetable)
	}
	p.pagetable = 0
	p.tf = nil
	p.context = nil
	p.mem = nil
	p.prog = nil
	p.name = ""
	p.parent = nil
	p.wchan = nil
	p.xstate = 0
	p.supervisor = false
	p.killed.Store(false)
	k.setState(c, p, UNUSED)
	p.pid = 0
}

// forkret is where a new process first runs, on the hart whose scheduler
// picked it. The scheduler still holds ptable.lock.
func (k *Kernel) forkret(p *Proc) func(h hal.Hart) {
	return func(h hal.Hart) {
		c := k.mycpu(h)
		k.release(c, &k.ptable.lock)

		u := &User{p: p}
		if p.supervisor {
			arch.IntrOn(c.hart)
		} else {
			k.usertrapret(c, p)
		}
		p.prog(u)
		u.Exit(0)
	}
}

// exit ends the current process. It does not return. The process stays a
// zombie until its parent calls wait, or the scheduler reaps it when it
// has no parent.
func (k *Kernel) exit(c *CPU, p *Proc, status int) {
	if p == k.initproc {
		k.panicf(c.hart, "init exiting")
	}

	for fd, f := range p.ofile {
		if f != nil {
			k.fileclose(c, f)
			p.ofile[fd] = nil
		}
	}

	k.acquire(c, &k.ptable.lock)

	// Parent might be sleeping in wait().
	if p.parent != nil {
		k.wakeup1(c, p.parent)
	}

	// Pass abandoned children to init.
	for i := range k.ptable.procs {
		q := &k.ptable.procs[i]
		if q.parent != p {
			continue
		}
		q.parent = k.initproc
		if q.state == ZOMBIE && k.initproc != nil {
			k.wakeup1(c, k.initproc)
		}
	}

	p.xstate = status
	k.setState(c, p, ZOMBIE)

	// Jump into the scheduler, never to return.
	k.schedExit(c, p)
}

// wait waits for a child process to exit and returns its pid, storing the
// exit status at addr when addr is non-zero. It returns -1 if p has no
// children.
func (k *Kernel) wait(c *CPU, p *Proc, addr uint64) int {
	k.acquire(c, &k.ptable.lock)
	for {
		// Scan through table looking for exited children.
		havekids := false
		for i := range k.ptable.procs {
			q := &k.ptable.procs[i]
			if q.parent != p {
				continue
			}
			havekids = true
			if q.state != ZOMBIE || q.cpu != nil {
				continue
			}
			pid := q.pid
			if addr != 0 {
				var buf [8]byte
				binary.LittleEndian.PutUint64(buf[:], uint64(int64(q.xstate)))
				if !p.CopyOut(addr, buf[:]) {
					k.release(c, &k.ptable.lock)
					return -1
				}
			}
			k.freeproc(c, q)
			k.release(c, &k.ptable.lock)
			return pid
		}

		// No point waiting if we don't have any children.
		if !havekids || p.killed.Load() {
			k.release(c, &k.ptable.lock)
			return -1
		}

		// Wait for children to exit. (See wakeup1 call in exit.)
		c = k.sleep(c, p, p, &k.ptable.lock)
	}
}

// sleep atomically releases lk and sleeps on ch. It reacquires lk when
// awakened and returns the cpu it woke up on.
func (k *Kernel) sleep(c *CPU, p *Proc, ch any, lk *Spinlock) *CPU {
	// Once we hold ptable.lock, we can be guaranteed that we won't miss
	// any wakeup (wakeup runs with ptable.lock locked), so it's okay to
	// release lk.
	if lk != &k.ptable.lock {
		k.acquire(c, &k.ptable.lock)
		k.release(c, lk)
	}

	p.wchan = ch
	k.setState(c, p, SLEEPING)

	c = k.sched(c, p)

	// Tidy up.
	p.wchan = nil

	if lk != &k.ptable.lock {
		k.release(c, &k.ptable.lock)
		k.acquire(c, lk)
	}
	return c
}

// wakeup1 wakes every process sleeping on ch. ptable.lock must be held.
func (k *Kernel) wakeup1(c *CPU, ch any) {
	for i := range k.ptable.procs {
		p := &k.ptable.procs[i]
		if p.state == SLEEPING && p.wchan == ch {
			k.setState(c, p, RUNNABLE)
		}
	}
}

// wakeup wakes every process sleeping on ch.
func (k *Kernel) wakeup(c *CPU, ch any) {
	k.acquire(c, &k.ptable.lock)
	k.wakeup1(c, ch)
	k.release(c, &k.ptable.lock)
}

// kill marks the process with the given pid. It won't exit until it next
// crosses the user/kernel boundary (see usertrap).
func (k *Kernel) kill(c *CPU, pid int) bool {
	k.acquire(c, &k.ptable.lock)
	defer k.release(c, &k.ptable.lock)
	for i := range k.ptable.procs {
		p := &k.ptable.procs[i]
		if p.pid != pid || p.state == UNUSED {
			continue
		}
		p.killed.Store(true)
		if p.state == SLEEPING {
			// Wake process from sleep().
			k.setState(c, p, RUNNABLE)
		}
		return true
	}
	return false
}

// procdump logs a process listing. Runs when the user types ^P on the
// console.
func (k *Kernel) procdump(c *CPU) {
	k.acquire(c, &k.ptable.lock)
	defer k.release(c, &k.ptable.lock)
	k.logf("")
	for i := range k.ptable.procs {
		p := &k.ptable.procs[i]
		if p.state == UNUSED {
			continue
		}
		where := "-"
		if p.cpu != nil {
			where = fmt.Sprintf("hart%d", p.cpu.id)
		}
		k.logf("%d %s %s %s", p.pid, p.state, where, p.name)
	}
}
