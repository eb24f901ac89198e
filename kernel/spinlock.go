package kernel

import (
	"sync/atomic"

	"hartcore/kernel/arch"
)

// Spinlock is a mutual exclusion lock built on test-and-set. It is held
// with interrupts off so a timer interrupt on the holding hart cannot
// deadlock against it.
type Spinlock struct {
	locked uint32
	name   string
	cpu    atomic.Pointer[CPU] // the cpu holding the lock
}

// acquire loops (spins) until the lock is acquired.
func (k *Kernel) acquire(c *CPU, lk *Spinlock) {
	k.pushOff(c) // disable interrupts to avoid deadlock.
	if lk.holding(c) {
		k.panicf(c.hart, "acquire %s", lk.name)
	}
	for arch.TestAndSet(&lk.locked, 1) != 0 {
		c.hart.Pause()
	}
	// Loads and stores in the critical section happen strictly after
	// the lock is acquired.
	arch.Synchronize(c.hart)
	lk.cpu.Store(c)
}

func (k *Kernel) release(c *CPU, lk *Spinlock) {
	if !lk.holding(c) {
		k.panicf(c.hart, "release %s", lk.name)
	}
	lk.cpu.Store(nil)
	arch.Synchronize(c.hart)
	arch.Release(&lk.locked)
	k.popOff(c)
}

// holding reports whether c holds the lock. Interrupts must be off.
func (lk *Spinlock) holding(c *CPU) bool {
	return atomic.LoadUint32(&lk.locked) != 0 && lk.cpu.Load() == c
}
