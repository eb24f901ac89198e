package kernel

import (
	"encoding/binary"

	"hartcore/kernel/file"
)

// fileclose drops one reference to f, waking the other end of a pipe when
// the last one goes.
func (k *Kernel) fileclose(c *CPU, f file.File) {
	switch f := f.(type) {
	case *file.Pipe:
		k.acquire(c, &k.pipelock)
		if f.Close() {
			k.wakeup(c, pipeWait{f.Buf, false})
			k.wakeup(c, pipeWait{f.Buf, true})
		}
		k.release(c, &k.pipelock)
	default:
		f.Close()
	}
}

// sysRead reads up to a2 bytes from descriptor a0 into user memory at a1.
func sysRead(p *Proc, a [6]uint64) uint64 {
	f := p.fd(a[0])
	if f == nil {
		return failed
	}
	dst, ok := p.userSlice(a[1], a[2])
	if !ok {
		return failed
	}
	var n int
	var err error
	switch f := f.(type) {
	case *file.Device:
		if f.Major != file.CONSOLE {
			return failed
		}
		n, err = p.k.consoleread(p, dst)
	case *file.Pipe:
		if f.Writable {
			return failed
		}
		n, err = p.k.piperead(p, f, dst)
	}
	if err != nil {
		return failed
	}
	return uint64(n)
}

// sysWrite writes a2 bytes from user memory at a1 to descriptor a0.
func sysWrite(p *Proc, a [6]uint64) uint64 {
	f := p.fd(a[0])
	if f == nil {
		return failed
	}
	src, ok := p.userSlice(a[1], a[2])
	if !ok {
		return failed
	}
	var n int
	var err error
	switch f := f.(type) {
	case *file.Device:
		if f.Major != file.CONSOLE {
			return failed
		}
		n = p.k.consolewrite(p.cpu, src)
	case *file.Pipe:
		if !f.Writable {
			return failed
		}
		n, err = p.k.pipewrite(p, f, src)
	}
	if err != nil {
		return failed
	}
	return uint64(n)
}

func sysClose(p *Proc, a [6]uint64) uint64 {
	f := p.fd(a[0])
	if f == nil {
		return failed
	}
	p.ofile[a[0]] = nil
	p.k.fileclose(p.cpu, f)
	return 0
}

func sysDup(p *Proc, a [6]uint64) uint64 {
	f := p.fd(a[0])
	if f == nil {
		return failed
	}
	fd := p.fdalloc(f)
	if fd < 0 {
		return failed
	}
	f.Dup()
	return uint64(fd)
}

// sysPipe creates a pipe and stores its read and write descriptors as two
// little-endian 32-bit words at a0.
func sysPipe(p *Proc, a [6]uint64) uint64 {
	addr := a[0]
	if _, ok := p.userSlice(addr, 8); !ok {
		return failed
	}
	r, w := file.NewPipe()
	fd0 := p.fdalloc(r)
	if fd0 < 0 {
		p.k.fileclose(p.cpu, r)
		p.k.fileclose(p.cpu, w)
		return failed
	}
	fd1 := p.fdalloc(w)
	if fd1 < 0 {
		p.ofile[fd0] = nil
		p.k.fileclose(p.cpu, r)
		p.k.fileclose(p.cpu, w)
		return failed
	}
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(fd0))
	binary.LittleEndian.PutUint32(buf[4:], uint32(fd1))
	p.CopyOut(addr, buf[:])
	return 0
}
