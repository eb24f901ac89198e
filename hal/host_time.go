//go:build !tinygo

package hal

import (
	"sync/atomic"
	"time"
)

// ClockMode selects how mtime advances on the host machine.
type ClockMode uint8

const (
	// ClockWall derives mtime from elapsed wall time at 10 MHz, like qemu.
	ClockWall ClockMode = iota
	// ClockStep advances mtime by a fixed amount per executed instruction
	// or pause, on any hart. Timer interrupts follow executed work, so a
	// slow host does not see more of them.
	ClockStep
)

const nsPerTick = 100

type hostClock struct {
	mode      ClockMode
	stepTicks uint64

	start time.Time
	ticks atomic.Uint64
}

func newHostClock(mode ClockMode, stepTicks uint64) *hostClock {
	if stepTicks == 0 {
		stepTicks = 1
	}
	return &hostClock{mode: mode, stepTicks: stepTicks, start: time.Now()}
}

// now returns mtime.
func (c *hostClock) now() uint64 {
	if c.mode == ClockWall {
		return uint64(time.Since(c.start).Nanoseconds()) / nsPerTick
	}
	return c.ticks.Load()
}

// step accounts for n executed instructions.
func (c *hostClock) step(n uint64) {
	if c.mode == ClockStep && n > 0 {
		c.ticks.Add(n * c.stepTicks)
	}
}

// set moves mtime forward to at least v. Writes never move time backwards
// and are ignored on the wall clock.
func (c *hostClock) set(v uint64) {
	if c.mode == ClockWall {
		return
	}
	for {
		cur := c.ticks.Load()
		if v <= cur || c.ticks.CompareAndSwap(cur, v) {
			return
		}
	}
}
