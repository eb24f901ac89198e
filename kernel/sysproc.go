package kernel

import (
	"fmt"
	"sync/atomic"

	"hartcore/hal"
)

// SpawnOptions modify how a process is created.
type SpawnOptions struct {
	// Supervisor runs the program as a kernel task in S-mode, with no
	// user half. It is preempted through kerneltrap.
	Supervisor bool
}

// Spawn starts prog as a process with no parent. It must be called from
// kernel code running on h, outside any trap handler that holds locks.
// The scheduler reaps the process once it exits.
func (k *Kernel) Spawn(h hal.Hart, name string, prog Program, opts SpawnOptions) (int, error) {
	if prog == nil {
		return 0, fmt.Errorf("spawn %q: %w", name, ErrNoProgram)
	}
	p, err := k.spawn(k.mycpu(h), nil, name, prog, opts.Supervisor)
	if err != nil {
		return 0, fmt.Errorf("spawn %q: %w", name, err)
	}
	return p.pid, nil
}

// Spawn starts prog as a child of p. Meant for custom SyscallFuncs.
func (p *Proc) Spawn(name string, prog Program, opts SpawnOptions) (int, error) {
	if prog == nil {
		return 0, fmt.Errorf("spawn %q: %w", name, ErrNoProgram)
	}
	q, err := p.k.spawn(p.cpu, p, name, prog, opts.Supervisor)
	if err != nil {
		return 0, fmt.Errorf("spawn %q: %w", name, err)
	}
	return q.pid, nil
}

// sysSpawn starts the registered program named by the string at a0 with
// length a1 as a child of the caller.
func sysSpawn(p *Proc, a [6]uint64) uint64 {
	k := p.k
	b, ok := p.CopyIn(a[0], a[1])
	if !ok {
		return failed
	}
	name := string(b)
	prog, ok := k.programs[name]
	if !ok {
		k.logf("%d %s: spawn %q: %v", p.pid, p.name, name, ErrNoProgram)
		return failed
	}
	q, err := k.spawn(p.cpu, p, name, prog, false)
	if err != nil {
		k.logf("%d %s: %v", p.pid, p.name, err)
		return failed
	}
	return uint64(q.pid)
}

func sysExit(p *Proc, a [6]uint64) uint64 {
	p.k.exit(p.cpu, p, argint(a[0]))
	return 0 // not reached
}

func sysWait(p *Proc, a [6]uint64) uint64 {
	return uint64(int64(p.k.wait(p.cpu, p, a[0])))
}

func sysKill(p *Proc, a [6]uint64) uint64 {
	if !p.k.kill(p.cpu, argint(a[0])) {
		return failed
	}
	return 0
}

func sysGetpid(p *Proc, _ [6]uint64) uint64 {
	return uint64(p.pid)
}

// sysSleep sleeps for a0 clock ticks.
func sysSleep(p *Proc, a [6]uint64) uint64 {
	k := p.k
	n := a[0]
	c := p.cpu
	k.acquire(c, &k.tickslock)
	ticks0 := atomic.LoadUint64(&k.ticks)
	for atomic.LoadUint64(&k.ticks)-ticks0 < n {
		if p.killed.Load() {
			k.release(c, &k.tickslock)
			return failed
		}
		c = k.sleep(c, p, &k.ticks, &k.tickslock)
	}
	k.release(c, &k.tickslock)
	return 0
}

// sysUptime returns how many clock tick interrupts have occurred since
// start.
func sysUptime(p *Proc, _ [6]uint64) uint64 {
	return p.k.Ticks()
}

func sysYield(p *Proc, _ [6]uint64) uint64 {
	p.k.yield(p.cpu, p)
	return 0
}
