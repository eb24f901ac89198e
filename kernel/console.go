package kernel

import "sync/atomic"

// ctrl returns the control character for x.
func ctrl(x byte) byte { return x - '@' }

const backspace = 0x7f

// consputc writes one byte to the console UART. '\n' goes out as "\r\n".
func (k *Kernel) consputc(c *CPU, b byte) {
	if b == '\n' {
		k.console.Putc(c.hart, '\r')
	}
	k.console.Putc(c.hart, b)
}

// consputs writes s while holding the console lock, so lines from
// different harts do not interleave.
func (k *Kernel) consputs(c *CPU, s string) {
	k.acquire(c, &k.cons)
	for i := 0; i < len(s); i++ {
		k.consputc(c, s[i])
	}
	k.release(c, &k.cons)
}

// consolewrite copies a user buffer to the console.
func (k *Kernel) consolewrite(c *CPU, src []byte) int {
	k.acquire(c, &k.cons)
	for _, b := range src {
		k.consputc(c, b)
	}
	k.release(c, &k.cons)
	return len(src)
}

// lineBuf holds console input being edited. Bytes in [r, w) are committed
// lines a reader may take; [w, e) is the line still being typed. Guarded by
// the console lock.
type lineBuf struct {
	buf     [inputBuf]byte
	r, w, e uint32
}

const inputBuf = 128

// conserase rubs out the last echoed byte.
func (k *Kernel) conserase(c *CPU) {
	k.consputc(c, '\b')
	k.consputc(c, ' ')
	k.consputc(c, '\b')
}

// consoleread copies at most one line of input to dst. It blocks until a
// whole line has been typed. ^D ends the read and, at the start of a line,
// means end of file.
func (k *Kernel) consoleread(p *Proc, dst []byte) (int, error) {
	c := p.cpu
	l := &k.line
	k.acquire(c, &k.cons)
	n := 0
	for n < len(dst) {
		for l.r == l.w {
			if p.killed.Load() {
				k.release(c, &k.cons)
				return 0, errKilled
			}
			c = k.sleep(c, p, &k.cons, &k.cons)
		}
		b := l.buf[l.r%inputBuf]
		l.r++
		if b == ctrl('D') {
			if n > 0 {
				// leave ^D for the next read so the caller sees a
				// zero-length read.
				l.r--
			}
			break
		}
		dst[n] = b
		n++
		if b == '\n' {
			break
		}
	}
	k.release(c, &k.cons)
	return n, nil
}

// consoleintr takes input from the UART, applies line editing, echoes it,
// and wakes readers once a line is complete.
// ^H and DEL erase a byte, ^U erases the line, ^P prints the process list.
func (k *Kernel) consoleintr(c *CPU) {
	k.acquire(c, &k.cons)
	k.console.Intr()
	l := &k.line
	dump := false
	for {
		b, ok := k.console.Getc()
		if !ok {
			break
		}
		switch b {
		case ctrl('P'):
			dump = true
		case ctrl('U'):
			for l.e != l.w && l.buf[(l.e-1)%inputBuf] != '\n' {
				l.e--
				k.conserase(c)
			}
		case backspace, ctrl('H'):
			if l.e != l.w {
				l.e--
				k.conserase(c)
			}
		default:
			if b == 0 || l.e-l.r >= inputBuf {
				continue
			}
			if b == '\r' {
				b = '\n'
			}
			if b != ctrl('D') {
				k.consputc(c, b)
			}
			l.buf[l.e%inputBuf] = b
			l.e++
			if b == '\n' || b == ctrl('D') || l.e-l.r == inputBuf {
				l.w = l.e
				k.wakeup(c, &k.cons)
			}
		}
	}
	k.release(c, &k.cons)

	if dump {
		k.procdump(c)
	}
	if n := k.console.Dropped(); n > 0 && atomic.SwapUint64(&k.droppedLogged, n) != n {
		k.logf("console: %d input bytes dropped", n)
	}
}
