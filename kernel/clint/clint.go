// Package clint drives the core-local interruptor that produces the
// scheduling quantum.
package clint

import "hartcore/hal"

// ScratchBase is where the per-hart machine scratch areas live. mscratch
// holds ScratchBase + 64*hart.
const ScratchBase = uint64(hal.KERNBASE) + 0x7000

const (
	scratchMtimecmp = 3
	scratchInterval = 4
)

// Timer owns the machine scratch areas. Each hart touches only its own.
type Timer struct {
	bus     hal.Bus
	scratch [hal.MaxHarts][8]uint64
}

func New(bus hal.Bus) *Timer {
	return &Timer{bus: bus}
}

// Now reads mtime.
func (t *Timer) Now() uint64 {
	return t.bus.Load64(hal.CLINT_MTIME)
}

// Init arms h's first timer interrupt quantum ticks from now and installs
// vec as the machine trap vector. It runs once per hart, in machine mode.
func (t *Timer) Init(h hal.Hart, quantum uint64, vec uint64) {
	id := int(h.ReadCSR(hal.Mhartid))
	cmp := hal.CLINT_MTIMECMP(id)
	t.bus.Store64(cmp, t.Now()+quantum)

	s := &t.scratch[id]
	s[scratchMtimecmp] = uint64(cmp)
	s[scratchInterval] = quantum
	h.WriteCSR(hal.Mscratch, ScratchBase+64*uint64(id))

	h.WriteCSR(hal.Mtvec, vec)
	h.SetCSR(hal.Mstatus, hal.StatusMIE)
	h.SetCSR(hal.Mie, hal.IntMTI)
}

// Scratch returns the scratch area mscratch points at.
func (t *Timer) Scratch(h hal.Hart) *[8]uint64 {
	i := (h.ReadCSR(hal.Mscratch) - ScratchBase) / 64
	return &t.scratch[i]
}

// Rearm schedules the next timer interrupt one interval after the last
// one. A compare value already in the past is moved to one interval from
// now, so a slow hart never sees a storm of stale interrupts.
func (t *Timer) Rearm(h hal.Hart) {
	s := t.Scratch(h)
	cmp := uintptr(s[scratchMtimecmp])
	next := t.bus.Load64(cmp) + s[scratchInterval]
	if now := t.Now(); next <= now {
		next = now + s[scratchInterval]
	}
	t.bus.Store64(cmp, next)
}
