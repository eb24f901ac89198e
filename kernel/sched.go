package kernel

import (
	"hartcore/hal"
	"hartcore/kernel/arch"
)

// scheduler is each hart's loop after boot. It never returns. It picks a
// RUNNABLE process, switches to it, and takes back control when the
// process gives up the hart through sched.
//
// A process that is still switching away has cpu set until its hart's
// scheduler resumes, so no other hart picks it up early.
func (k *Kernel) scheduler(c *CPU) {
	c.proc = nil
	for {
		// Avoid deadlock by ensuring that devices can interrupt.
		arch.IntrOn(c.hart)

		ran := false
		k.acquire(c, &k.ptable.lock)
		for i := range k.ptable.procs {
			p := &k.ptable.procs[i]
			if p.state == ZOMBIE && p.parent == nil && p.cpu == nil {
				// Nobody will wait for it.
				k.freeproc(c, p)
				continue
			}
			if p.state != RUNNABLE || p.cpu != nil {
				continue
			}

			// Switch to chosen process. It is the process's job to
			// release ptable.lock and then reacquire it before jumping
			// back to us.
			k.setState(c, p, RUNNING)
			c.proc = p
			p.cpu = c
			h := c.hart
			h.WriteCSR(hal.Satp, p.tf.SATP)
			h.SfenceVMA()

			h = arch.Switch(h, c.context, p.context)
			if h != c.hart {
				k.panicf(h, "scheduler: hart %d resumed on hart %d", c.id, h.ID())
			}
			h.WriteCSR(hal.Satp, k.kernSATP)
			h.SfenceVMA()

			// Process is done running for now.
			c.proc = nil
			p.cpu = nil
			ran = true
		}
		k.release(c, &k.ptable.lock)

		if !ran {
			c.hart.Pause()
		}
	}
}

// sched switches from p back to its hart's scheduler. It must hold only
// ptable.lock and have changed p's state. It returns the cpu p resumes on,
// which may be another hart's.
//
// Saves and restores intena because intena is a property of this kernel
// thread, not this CPU.
func (k *Kernel) sched(c *CPU, p *Proc) *CPU {
	k.schedCheck(c, p)
	intena := c.intena
	h := arch.Switch(c.hart, p.context, c.context)
	c = k.mycpu(h)
	c.intena = intena
	return c
}

// schedExit is sched for a process that will never run again.
func (k *Kernel) schedExit(c *CPU, p *Proc) {
	k.schedCheck(c, p)
	arch.SwitchExit(c.hart, p.context, c.context)
}

func (k *Kernel) schedCheck(c *CPU, p *Proc) {
	switch {
	case !k.ptable.lock.holding(c):
		k.panicf(c.hart, "sched ptable.lock")
	case c.noff != 1:
		k.panicf(c.hart, "sched locks")
	case p.state == RUNNING:
		k.panicf(c.hart, "sched running")
	case arch.IntrGet(c.hart):
		k.panicf(c.hart, "sched interruptible")
	case c.proc != p:
		k.panicf(c.hart, "sched: pid %d is not running on hart %d", p.pid, c.id)
	}
}

// yield gives up the hart for one scheduling round.
func (k *Kernel) yield(c *CPU, p *Proc) *CPU {
	k.acquire(c, &k.ptable.lock)
	k.setState(c, p, RUNNABLE)
	c = k.sched(c, p)
	k.release(c, &k.ptable.lock)
	return c
}
