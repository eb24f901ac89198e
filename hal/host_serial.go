//go:build !tinygo

package hal

import (
	"io"
	"sync"
)

// 16550a UART registers.
const (
	uartRHR = 0 // receive holding register (read)
	uartTHR = 0 // transmit holding register (write)
	uartIER = 1 // interrupt enable register
	uartFCR = 2 // FIFO control register (write)
	uartISR = 2 // interrupt status register (read)
	uartLCR = 3 // line control register
	uartLSR = 5 // line status register

	uartIERRxEnable = 1 << 0
	uartLSRRxReady  = 1 << 0
	uartLSRTxIdle   = 1 << 5

	uartSize      = 0x100
	scrollbackMax = 64 * 1024
)

// hostSerial is a 16550-compatible UART. Transmission completes
// synchronously, so only receive interrupts are ever raised.
type hostSerial struct {
	mu   sync.Mutex
	w    io.Writer
	plic *hostPLIC

	ier  uint8
	lcr  uint8
	rx   []byte
	back []byte
}

func newHostSerial(w io.Writer, plic *hostPLIC) *hostSerial {
	return &hostSerial{w: w, plic: plic}
}

// input queues bytes as if they arrived on the wire.
func (s *hostSerial) input(b []byte) {
	s.mu.Lock()
	s.rx = append(s.rx, b...)
	s.mu.Unlock()
	s.updateLine()
}

func (s *hostSerial) updateLine() {
	s.mu.Lock()
	level := s.ier&uartIERRxEnable != 0 && len(s.rx) > 0
	s.mu.Unlock()
	s.plic.setLine(UART0_IRQ, level)
}

// scrollback returns a copy of everything transmitted so far, bounded.
func (s *hostSerial) scrollback() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.back...)
}

// screenLines renders transmitted bytes the way a terminal would show them:
// '\r' returns to column 0, '\b' moves back one column and later bytes
// overwrite, other control bytes are dropped.
func screenLines(b []byte) []string {
	var lines []string
	var line []byte
	col := 0
	for _, c := range b {
		switch {
		case c == '\n':
			lines = append(lines, string(line))
			line, col = line[:0], 0
		case c == '\r':
			col = 0
		case c == '\b':
			if col > 0 {
				col--
			}
		case c < ' ' || c == 0x7f:
		default:
			if col < len(line) {
				line[col] = c
			} else {
				line = append(line, c)
			}
			col++
		}
	}
	return append(lines, string(line))
}

func (s *hostSerial) read(off uint64, size int) uint64 {
	var v uint8
	switch off {
	case uartRHR:
		s.mu.Lock()
		if len(s.rx) > 0 {
			v = s.rx[0]
			s.rx = s.rx[1:]
		}
		s.mu.Unlock()
		s.updateLine()
	case uartIER:
		s.mu.Lock()
		v = s.ier
		s.mu.Unlock()
	case uartISR:
		s.mu.Lock()
		if s.ier&uartIERRxEnable != 0 && len(s.rx) > 0 {
			v = 0x04
		} else {
			v = 0x01
		}
		s.mu.Unlock()
	case uartLCR:
		s.mu.Lock()
		v = s.lcr
		s.mu.Unlock()
	case uartLSR:
		s.mu.Lock()
		v = uartLSRTxIdle
		if len(s.rx) > 0 {
			v |= uartLSRRxReady
		}
		s.mu.Unlock()
	}
	return uint64(v)
}

func (s *hostSerial) write(off uint64, size int, v uint64) {
	switch off {
	case uartTHR:
		s.mu.Lock()
		if s.lcr&0x80 == 0 {
			c := byte(v)
			if s.w != nil {
				s.w.Write([]byte{c})
			}
			s.back = append(s.back, c)
			if len(s.back) > scrollbackMax {
				s.back = s.back[len(s.back)-scrollbackMax/2:]
			}
		}
		s.mu.Unlock()
	case uartIER:
		s.mu.Lock()
		dlab := s.lcr&0x80 != 0
		if !dlab {
			s.ier = uint8(v)
		}
		s.mu.Unlock()
		if !dlab {
			s.updateLine()
		}
	case uartLCR:
		s.mu.Lock()
		s.lcr = uint8(v)
		s.mu.Unlock()
	case uartFCR:
		if v&0x02 != 0 {
			s.mu.Lock()
			s.rx = s.rx[:0]
			s.mu.Unlock()
			s.updateLine()
		}
	}
}
