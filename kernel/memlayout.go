package kernel

import (
	"hartcore/hal"
	"hartcore/kernel/arch"
)

const (
	NCPU   = hal.MaxHarts // maximum number of harts
	NPROC  = 64           // maximum number of processes
	NOFILE = 16           // open files per process
	PGSIZE = arch.PGSIZE
)

// one beyond the highest possible virtual address.
// MAXVA is actually one bit less than the max allowed by
// Sv39, to avoid having to sign-extend virtual addresses
// that have the high bit set.
const MAXVA = uint64(1) << (9 + 9 + 9 + 12 - 1)

// map the trampoline page to the highest address,
// in both user and kernel space.
const TRAMPOLINE = MAXVA - PGSIZE

// TRAPFRAME is the per-process trap frame page, just below the trampoline
// in every user address space.
const TRAPFRAME = TRAMPOLINE - PGSIZE

// KSTACK returns the kernel stack of process slot i, each followed by an
// invalid guard page.
func KSTACK(i int) uint64 {
	return TRAMPOLINE - uint64(i+1)*2*PGSIZE
}

// Code addresses of the trap vectors and entry points, as the linker would
// place them in kernel text and the trampoline page.
const (
	kernelText = uint64(hal.KERNBASE)

	mainAddr      = kernelText + 0x1000
	timervecAddr  = kernelText + 0x1100
	kernelvecAddr = kernelText + 0x1200
	usertrapAddr  = kernelText + 0x1300
	forkretAddr   = kernelText + 0x1400

	uservecAddr = TRAMPOLINE

	// kernelEnd is the first address after kernel text and data. Pages
	// from here to PHYSTOP are handed out by kalloc.
	kernelEnd = kernelText + 0x20_0000
)

// ioBufSize is the top-of-memory staging area user helpers copy syscall
// buffers through.
const ioBufSize = 512
