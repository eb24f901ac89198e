package kernel

import (
	"golang.org/x/sys/cpu"

	"hartcore/hal"
	"hartcore/kernel/arch"
)

// CPU is the per-hart state. Slots are indexed by hart id and each hart
// only touches its own, so no lock guards them.
type CPU struct {
	_ cpu.CacheLinePad

	id      int
	hart    hal.Hart
	proc    *Proc         // process running on this cpu, or nil
	context *arch.Context // switch here to enter scheduler
	noff    int           // depth of pushOff nesting
	intena  bool          // were interrupts enabled before pushOff?

	_ cpu.CacheLinePad
}

// ID returns the hart id this slot belongs to.
func (c *CPU) ID() int { return c.id }

// mycpu returns the slot of the hart h. Valid once h has set tp at boot.
func (k *Kernel) mycpu(h hal.Hart) *CPU {
	return &k.cpus[arch.HartID(h)]
}

// pushOff is like IntrOff except that it is matched: it takes two popOff
// calls to undo two pushOff calls. If interrupts are initially off, then
// pushOff, popOff leaves them off.
func (k *Kernel) pushOff(c *CPU) {
	old := arch.IntrGet(c.hart)
	arch.IntrOff(c.hart)
	if c.noff == 0 {
		c.intena = old
	}
	c.noff++
}

func (k *Kernel) popOff(c *CPU) {
	if arch.IntrGet(c.hart) {
		k.panicf(c.hart, "pop_off - interruptible")
	}
	if c.noff < 1 {
		k.panicf(c.hart, "pop_off")
	}
	c.noff--
	if c.noff == 0 && c.intena {
		arch.IntrOn(c.hart)
	}
}
