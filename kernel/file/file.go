// Package file defines the open-file variants a process can hold: a
// device or one end of a pipe.
package file

import (
	"errors"
	"sync/atomic"
)

var ErrClosed = errors.New("file: other end closed")

const (
	PIPESIZE = 512

	// CONSOLE is the console device's major number.
	CONSOLE = 1
)

// File is an open file shared by every descriptor that dups it. The only
// implementations are *Device and *Pipe.
type File interface {
	// Dup adds a reference.
	Dup() File
	// Close drops a reference and reports whether it was the last.
	Close() bool

	sealed()
}

type ref struct {
	n atomic.Int32
}

func (r *ref) get()      { r.n.Add(1) }
func (r *ref) put() bool { return r.n.Add(-1) == 0 }

// Refs returns the number of live references.
func (r *ref) Refs() int { return int(r.n.Load()) }

// Device is a character device identified by its major number.
type Device struct {
	ref
	Major int
}

func NewDevice(major int) *Device {
	d := &Device{Major: major}
	d.n.Store(1)
	return d
}

func (d *Device) Dup() File   { d.get(); return d }
func (d *Device) Close() bool { return d.put() }
func (*Device) sealed()       {}

// Pipe is one end of a pipe. Its Buf is shared with the other end.
// Callers hold the kernel's pipe lock around every Buf access and
// around Close.
type Pipe struct {
	ref
	Buf      *PipeBuf
	Writable bool
}

// NewPipe returns the read and write ends of a new pipe.
func NewPipe() (r, w *Pipe) {
	buf := &PipeBuf{readopen: true, writeopen: true}
	r = &Pipe{Buf: buf}
	w = &Pipe{Buf: buf, Writable: true}
	r.n.Store(1)
	w.n.Store(1)
	return r, w
}

func (p *Pipe) Dup() File { p.get(); return p }

func (p *Pipe) Close() bool {
	if !p.put() {
		return false
	}
	if p.Writable {
		p.Buf.writeopen = false
	} else {
		p.Buf.readopen = false
	}
	return true
}

func (*Pipe) sealed() {}

// PipeBuf is the ring shared by the two ends of a pipe.
type PipeBuf struct {
	data      [PIPESIZE]byte
	nread     uint32
	nwrite    uint32
	readopen  bool
	writeopen bool
}

func (b *PipeBuf) ReadOpen() bool  { return b.readopen }
func (b *PipeBuf) WriteOpen() bool { return b.writeopen }
func (b *PipeBuf) Empty() bool     { return b.nread == b.nwrite }
func (b *PipeBuf) Full() bool      { return b.nwrite == b.nread+PIPESIZE }

// Put appends c. The caller checks Full first.
func (b *PipeBuf) Put(c byte) {
	b.data[b.nwrite%PIPESIZE] = c
	b.nwrite++
}

// Get removes the oldest byte. The caller checks Empty first.
func (b *PipeBuf) Get() byte {
	c := b.data[b.nread%PIPESIZE]
	b.nread++
	return c
}
