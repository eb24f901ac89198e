package arch

import (
	"runtime"

	"hartcore/hal"
)

// Context is the callee-saved register set of a kernel thread, plus the
// baton its goroutine waits on while switched out.
type Context struct {
	RA uint64
	SP uint64
	S  [12]uint64

	entry   func(h hal.Hart)
	started bool
	baton   chan hal.Hart
}

// NewContext returns a context that starts running entry the first time
// something switches to it. A nil entry is for a thread that is already
// running, such as a hart's scheduler loop.
func NewContext(entry func(h hal.Hart)) *Context {
	return &Context{
		entry:   entry,
		started: entry == nil,
		baton:   make(chan hal.Hart, 1),
	}
}

func (c *Context) save(h hal.Hart) {
	c.RA = h.Reg(hal.RA)
	c.SP = h.Reg(hal.SP)
	for i, r := range hal.CalleeSaved {
		c.S[i] = h.Reg(r)
	}
}

func (c *Context) load(h hal.Hart) {
	h.SetReg(hal.RA, c.RA)
	h.SetReg(hal.SP, c.SP)
	for i, r := range hal.CalleeSaved {
		h.SetReg(r, c.S[i])
	}
}

// handoff makes next the thread executing on h.
func (c *Context) handoff(h hal.Hart) {
	c.load(h)
	if !c.started {
		c.started = true
		entry := c.entry
		h.Machine().Go(func() { entry(h) })
		return
	}
	c.baton <- h
}

func (c *Context) park(done <-chan struct{}) hal.Hart {
	select {
	case h := <-c.baton:
		return h
	case <-done:
		hal.Unwind()
		return nil
	}
}

// Switch saves h's callee-saved registers into old, loads new's and runs
// new on h. The caller blocks until something switches back to old, and
// then returns the hart it resumed on, which need not be h.
func Switch(h hal.Hart, old, new *Context) hal.Hart {
	old.save(h)
	done := h.Done()
	new.handoff(h)
	return old.park(done)
}

// SwitchExit runs new on h and ends the calling goroutine. old is never
// resumed.
func SwitchExit(h hal.Hart, old, new *Context) {
	old.save(h)
	new.handoff(h)
	runtime.Goexit()
}
