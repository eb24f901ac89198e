// Package userland holds the library calls and builtin programs that run
// as processes on the kernel.
package userland

import (
	"encoding/binary"
	"errors"
	"fmt"

	"hartcore/kernel"
)

// Standard descriptors every process starts with.
const (
	Stdin  = 0
	Stdout = 1
	Stderr = 2
)

// ErrPipe is returned when the kernel cannot create a pipe.
var ErrPipe = errors.New("pipe: failed")

// signed reinterprets a0 as a C int.
func signed(r uint64) int { return int(int64(r)) }

// Write writes b to fd through the staging area. It returns the number of
// bytes written or -1.
func Write(u *kernel.User, fd int, b []byte) int {
	addr, size := u.IOBuf()
	n := 0
	for len(b) > 0 {
		chunk := b
		if uint64(len(chunk)) > size {
			chunk = chunk[:size]
		}
		u.Poke(addr, chunk)
		r := signed(u.Syscall(kernel.SysWrite, uint64(fd), addr, uint64(len(chunk))))
		if r < 0 {
			return -1
		}
		n += r
		b = b[len(chunk):]
	}
	return n
}

// Read reads at most max bytes from fd. It returns nil at end of file and
// on error.
func Read(u *kernel.User, fd int, max int) []byte {
	addr, size := u.IOBuf()
	if uint64(max) > size {
		max = int(size)
	}
	r := signed(u.Syscall(kernel.SysRead, uint64(fd), addr, uint64(max)))
	if r <= 0 {
		return nil
	}
	return u.Peek(addr, uint64(r))
}

// Print writes s to standard output.
func Print(u *kernel.User, s string) {
	Write(u, Stdout, []byte(s))
}

// Printf formats to standard output.
func Printf(u *kernel.User, format string, args ...any) {
	Print(u, fmt.Sprintf(format, args...))
}

// Spawn starts the registered program name as a child and returns its pid
// or -1.
func Spawn(u *kernel.User, name string) int {
	addr, _ := u.IOBuf()
	u.Poke(addr, []byte(name))
	return signed(u.Syscall(kernel.SysSpawn, addr, uint64(len(name))))
}

// Wait waits for a child to exit. It returns -1 when there are no
// children.
func Wait(u *kernel.User) (pid, status int) {
	addr, _ := u.IOBuf()
	pid = signed(u.Syscall(kernel.SysWait, addr))
	if pid < 0 {
		return -1, 0
	}
	return pid, int(int64(binary.LittleEndian.Uint64(u.Peek(addr, 8))))
}

// Exit ends the process.
func Exit(u *kernel.User, status int) {
	u.Exit(status)
}

// Sleep sleeps for n clock ticks.
func Sleep(u *kernel.User, n int) int {
	return signed(u.Syscall(kernel.SysSleep, uint64(n)))
}

// Uptime returns the clock tick count.
func Uptime(u *kernel.User) uint64 {
	return u.Syscall(kernel.SysUptime)
}

func Getpid(u *kernel.User) int {
	return signed(u.Syscall(kernel.SysGetpid))
}

func Kill(u *kernel.User, pid int) int {
	return signed(u.Syscall(kernel.SysKill, uint64(pid)))
}

func Yield(u *kernel.User) {
	u.Syscall(kernel.SysYield)
}

// Pipe returns the read and write descriptors of a new pipe.
func Pipe(u *kernel.User) (r, w int, err error) {
	addr, _ := u.IOBuf()
	if signed(u.Syscall(kernel.SysPipe, addr)) < 0 {
		return -1, -1, ErrPipe
	}
	b := u.Peek(addr, 8)
	return int(binary.LittleEndian.Uint32(b[0:])), int(binary.LittleEndian.Uint32(b[4:])), nil
}

func Close(u *kernel.User, fd int) int {
	return signed(u.Syscall(kernel.SysClose, uint64(fd)))
}

func Dup(u *kernel.User, fd int) int {
	return signed(u.Syscall(kernel.SysDup, uint64(fd)))
}
