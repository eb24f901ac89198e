// Package plic drives the platform-level interrupt controller: source
// priorities, per-hart supervisor enables, claim and complete.
package plic

import "hartcore/hal"

// PLIC is the supervisor-context view of the controller.
type PLIC struct {
	bus     hal.Bus
	sources []int
}

// New returns a driver that routes the given sources (defaults to the
// UART and the virtio disk).
func New(bus hal.Bus, sources ...int) *PLIC {
	if len(sources) == 0 {
		sources = []int{hal.UART0_IRQ, hal.VIRTIO0_IRQ}
	}
	return &PLIC{bus: bus, sources: sources}
}

// Init sets a non-zero priority for every routed source; zero disables.
func (p *PLIC) Init() {
	for _, src := range p.sources {
		p.bus.Store32(hal.PLIC_PRIORITY+4*uintptr(src), 1)
	}
}

// InitHart enables the routed sources for hart's S-mode context and
// opens its priority threshold.
func (p *PLIC) InitHart(hart int) {
	var mask uint32
	for _, src := range p.sources {
		mask |= 1 << src
	}
	p.bus.Store32(hal.PLIC_SENABLE(hart), mask)
	p.bus.Store32(hal.PLIC_SPRIORITY(hart), 0)
}

// Claim asks which source to serve next. ok is false when nothing is
// pending, e.g. another hart claimed it first.
func (p *PLIC) Claim(hart int) (uint32, bool) {
	irq := p.bus.Load32(hal.PLIC_SCLAIM(hart))
	return irq, irq != 0
}

// Complete tells the controller hart has served irq.
func (p *PLIC) Complete(hart int, irq uint32) {
	p.bus.Store32(hal.PLIC_SCLAIM(hart), irq)
}
