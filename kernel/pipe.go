package kernel

import (
	"errors"

	"hartcore/kernel/file"
)

var errKilled = errors.New("kernel: process killed")

// pipeWait is the sleep channel for one side of a pipe: writer is true
// for processes waiting for room, false for those waiting for data.
type pipeWait struct {
	b      *file.PipeBuf
	writer bool
}

func (k *Kernel) pipewrite(p *Proc, pf *file.Pipe, src []byte) (int, error) {
	c := p.cpu
	b := pf.Buf
	k.acquire(c, &k.pipelock)
	i := 0
	for i < len(src) {
		if !b.ReadOpen() {
			k.release(c, &k.pipelock)
			return i, file.ErrClosed
		}
		if p.killed.Load() {
			k.release(c, &k.pipelock)
			return i, errKilled
		}
		if b.Full() {
			k.wakeup(c, pipeWait{b, false})
			c = k.sleep(c, p, pipeWait{b, true}, &k.pipelock)
			continue
		}
		b.Put(src[i])
		i++
	}
	k.wakeup(c, pipeWait{b, false})
	k.release(c, &k.pipelock)
	return i, nil
}

// piperead returns once at least one byte is available, or 0 at end of
// file when the write end is closed.
func (k *Kernel) piperead(p *Proc, pf *file.Pipe, dst []byte) (int, error) {
	c := p.cpu
	b := pf.Buf
	k.acquire(c, &k.pipelock)
	for b.Empty() && b.WriteOpen() {
		if p.killed.Load() {
			k.release(c, &k.pipelock)
			return 0, errKilled
		}
		c = k.sleep(c, p, pipeWait{b, false}, &k.pipelock)
	}
	n := 0
	for n < len(dst) && !b.Empty() {
		dst[n] = b.Get()
		n++
	}
	k.wakeup(c, pipeWait{b, true})
	k.release(c, &k.pipelock)
	return n, nil
}
