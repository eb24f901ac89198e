// Package uart drives the 16550a console UART.
package uart

import (
	"sync/atomic"

	"hartcore/hal"
)

const (
	rhr = 0 // receive holding register (for input bytes)
	thr = 0 // transmit holding register (for output bytes)
	ier = 1 // interrupt enable register
	fcr = 2 // FIFO control register
	lcr = 3 // line control register
	lsr = 5 // line status register

	ierRxEnable    = 1 << 0
	fcrFIFOEnable  = 1 << 0
	fcrFIFOClear   = 3 << 1
	lcrEightBits   = 3 << 0
	lcrBaudLatch   = 1 << 7
	lsrRxReady     = 1 << 0
	lsrTxIdle      = 1 << 5
	inputRingSlots = 128
)

// UART is the console device. Received bytes are buffered in a ring
// until Getc takes them.
type UART struct {
	bus  hal.Bus
	base uintptr

	head atomic.Uint32
	tail atomic.Uint32
	ring [inputRingSlots]byte

	dropped atomic.Uint64
}

func New(bus hal.Bus) *UART {
	return &UART{bus: bus, base: hal.UART0}
}

func (u *UART) reg(r uintptr) uintptr { return u.base + r }

// Init sets 38.4K baud, 8 data bits, FIFOs on and receive interrupts on.
func (u *UART) Init() {
	u.bus.Store8(u.reg(ier), 0x00)
	u.bus.Store8(u.reg(lcr), lcrBaudLatch)
	u.bus.Store8(u.reg(0), 0x03) // LSB for 38.4K
	u.bus.Store8(u.reg(1), 0x00) // MSB for 38.4K
	u.bus.Store8(u.reg(lcr), lcrEightBits)
	u.bus.Store8(u.reg(fcr), fcrFIFOEnable|fcrFIFOClear)
	u.bus.Store8(u.reg(ier), ierRxEnable)
}

// Putc transmits one byte, spinning until the transmitter is idle.
func (u *UART) Putc(h hal.Hart, c byte) {
	for u.bus.Load8(u.reg(lsr))&lsrTxIdle == 0 {
		h.Pause()
	}
	u.bus.Store8(u.reg(thr), c)
}

// Intr drains the receive FIFO into the ring and returns the bytes it took. Bytes arriving while the ring is full are dropped.
func (u *UART) Intr() []byte {
	var got []byte
	for u.bus.Load8(u.reg(lsr))&lsrRxReady != 0 {
		c := u.bus.Load8(u.reg(rhr))
		if !u.push(c) {
			u.dropped.Add(1)
			continue
		}
		got = append(got, c)
	}
	return got
}

// push has a single producer: the PLIC hands the UART source to one hart at
// a time.
func (u *UART) push(c byte) bool {
	head := u.head.Load()
	if head-u.tail.Load() >= inputRingSlots {
		return false
	}
	u.ring[head%inputRingSlots] = c
	u.head.Store(head + 1)
	return true
}

// Getc takes the oldest buffered input byte. Callers serialise on the
// console lock.
func (u *UART) Getc() (byte, bool) {
	tail := u.tail.Load()
	if tail == u.head.Load() {
		return 0, false
	}
	c := u.ring[tail%inputRingSlots]
	u.tail.Store(tail + 1)
	return c, true
}

// Dropped returns how many input bytes were lost to a full ring.
func (u *UART) Dropped() uint64 { return u.dropped.Load() }
