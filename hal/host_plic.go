//go:build !tinygo

package hal

import (
	"math/bits"
	"sync"
)

const plicSources = 32

// hostPLIC models the platform-level interrupt controller with one M-mode
// and one S-mode context per hart (context 2h and 2h+1).
type hostPLIC struct {
	mu    sync.Mutex
	harts []*hostHart

	priority  [plicSources]uint32
	line      uint32 // asserted level of each source
	pending   uint32
	inService uint32
	enable    [2 * MaxHarts]uint32
	threshold [2 * MaxHarts]uint32
}

func newHostPLIC() *hostPLIC {
	return &hostPLIC{}
}

// setLine drives a level-triggered source.
func (p *hostPLIC) setLine(src int, level bool) {
	if src <= 0 || src >= plicSources {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	bit := uint32(1) << src
	if level {
		p.line |= bit
		if p.inService&bit == 0 {
			p.pending |= bit
		}
	} else {
		p.line &^= bit
	}
	p.updateLocked()
}

// raise latches an edge on src.
func (p *hostPLIC) raise(src int) {
	if src <= 0 || src >= plicSources {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending |= 1 << src
	p.updateLocked()
}

func (p *hostPLIC) bestLocked(ctx int) int {
	cand := p.pending &^ p.inService & p.enable[ctx]
	best, bestPrio := 0, p.threshold[ctx]
	for cand != 0 {
		src := bits.TrailingZeros32(cand)
		cand &^= 1 << src
		if p.priority[src] > bestPrio {
			best, bestPrio = src, p.priority[src]
		}
	}
	return best
}

func (p *hostPLIC) updateLocked() {
	for h, hart := range p.harts {
		if p.bestLocked(2*h) != 0 {
			hart.raise(IntMEI)
		} else {
			hart.lower(IntMEI)
		}
		if p.bestLocked(2*h+1) != 0 {
			hart.raise(IntSEI)
		} else {
			hart.lower(IntSEI)
		}
	}
}

func (p *hostPLIC) claimLocked(ctx int) uint32 {
	src := p.bestLocked(ctx)
	if src == 0 {
		return 0
	}
	bit := uint32(1) << src
	p.pending &^= bit
	p.inService |= bit
	p.updateLocked()
	return uint32(src)
}

func (p *hostPLIC) completeLocked(src uint32) {
	if src == 0 || src >= plicSources {
		return
	}
	bit := uint32(1) << src
	p.inService &^= bit
	if p.line&bit != 0 {
		p.pending |= bit
	}
	p.updateLocked()
}

func (p *hostPLIC) read(off uint64, size int) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case off < 4*plicSources:
		return uint64(p.priority[off/4])
	case off == 0x1000:
		return uint64(p.pending)
	case off >= 0x2000 && off < 0x2000+0x80*2*MaxHarts:
		return uint64(p.enable[(off-0x2000)/0x80])
	case off >= 0x200000 && off < 0x200000+0x1000*2*MaxHarts:
		ctx := int((off - 0x200000) / 0x1000)
		switch off & 0xfff {
		case 0:
			return uint64(p.threshold[ctx])
		case 4:
			return uint64(p.claimLocked(ctx))
		}
	}
	return 0
}

func (p *hostPLIC) write(off uint64, size int, v uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case off < 4*plicSources:
		p.priority[off/4] = uint32(v) & 7
	case off >= 0x2000 && off < 0x2000+0x80*2*MaxHarts:
		p.enable[(off-0x2000)/0x80] = uint32(v) &^ 1
	case off >= 0x200000 && off < 0x200000+0x1000*2*MaxHarts:
		ctx := int((off - 0x200000) / 0x1000)
		switch off & 0xfff {
		case 0:
			p.threshold[ctx] = uint32(v) & 7
		case 4:
			p.completeLocked(uint32(v))
		}
	default:
		return
	}
	p.updateLocked()
}
