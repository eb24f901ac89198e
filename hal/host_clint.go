//go:build !tinygo

package hal

import "sync/atomic"

// CLINT register offsets
const (
	clintMsip     = 0x0000
	clintMtimecmp = 0x4000
	clintMtime    = 0xbff8
)

// hostCLINT implements the core local interruptor. MTIP is level-triggered:
// it is pending while mtime >= mtimecmp for that hart.
type hostCLINT struct {
	clock    *hostClock
	harts    []*hostHart
	mtimecmp [MaxHarts]atomic.Uint64
}

func newHostCLINT(clock *hostClock) *hostCLINT {
	c := &hostCLINT{clock: clock}
	for i := range c.mtimecmp {
		c.mtimecmp[i].Store(^uint64(0))
	}
	return c
}

func (c *hostCLINT) timerPending(hart int) bool {
	return c.clock.now() >= c.mtimecmp[hart].Load()
}

func (c *hostCLINT) read(off uint64, size int) uint64 {
	switch {
	case off < clintMsip+4*MaxHarts:
		h := int(off / 4)
		if h < len(c.harts) && c.harts[h].mip.Load()&IntMSI != 0 {
			return 1
		}
		return 0
	case off >= clintMtimecmp && off < clintMtimecmp+8*MaxHarts:
		return c.mtimecmp[(off-clintMtimecmp)/8].Load()
	case off >= clintMtime && off < clintMtime+8:
		return c.clock.now()
	}
	return 0
}

func (c *hostCLINT) write(off uint64, size int, v uint64) {
	switch {
	case off < clintMsip+4*MaxHarts:
		h := int(off / 4)
		if h >= len(c.harts) {
			return
		}
		if v&1 != 0 {
			c.harts[h].raise(IntMSI)
		} else {
			c.harts[h].lower(IntMSI)
		}
	case off >= clintMtimecmp && off < clintMtimecmp+8*MaxHarts:
		c.mtimecmp[(off-clintMtimecmp)/8].Store(v)
	case off >= clintMtime && off < clintMtime+8:
		c.clock.set(v)
	}
}
