// Package arch holds the RISC-V primitives the kernel builds on: hart
// identity, the supervisor interrupt flag, fences, the test-and-set lock
// word and satp encoding.
package arch

import (
	"fmt"
	"sync/atomic"

	"hartcore/hal"
)

const (
	PGSIZE  = 4096
	PGSHIFT = 12
)

// HartID returns the calling hart's id. The boot code keeps it in tp, so it
// is readable before paging is on.
func HartID(h hal.Hart) int {
	return int(h.Reg(hal.TP))
}

// IntrOn enables supervisor interrupts (external, timer, software).
func IntrOn(h hal.Hart) {
	h.SetCSR(hal.Sie, hal.IntSEI|hal.IntSTI|hal.IntSSI)
	h.SetCSR(hal.Sstatus, hal.StatusSIE)
}

// IntrOff disables supervisor interrupts. It does not nest.
func IntrOff(h hal.Hart) {
	h.ClearCSR(hal.Sstatus, hal.StatusSIE)
}

// IntrGet reports whether supervisor interrupts are enabled.
func IntrGet(h hal.Hart) bool {
	return h.ReadCSR(hal.Sstatus)&hal.StatusSIE != 0
}

// Synchronize issues a full fence.
func Synchronize(h hal.Hart) {
	h.Fence()
}

// TestAndSet atomically stores v at addr and returns the previous value.
func TestAndSet(addr *uint32, v uint32) uint32 {
	return atomic.SwapUint32(addr, v)
}

// Release atomically clears a word set by TestAndSet.
func Release(addr *uint32) {
	atomic.StoreUint32(addr, 0)
}

// SatpMode is the translation mode field of satp.
type SatpMode uint64

const (
	Bare SatpMode = 0
	Sv39 SatpMode = 8
	Sv48 SatpMode = 9
)

// BuildSATP encodes a translation mode, address space id and root page
// table address. base must be page aligned.
func BuildSATP(mode SatpMode, asid uint16, base uint64) uint64 {
	if base%PGSIZE != 0 {
		panic(fmt.Sprintf("satp: page table base %#x not page aligned", base))
	}
	return uint64(mode)<<60 | uint64(asid)<<44 | base>>PGSHIFT
}

// SatpASID extracts the address space id from a satp value.
func SatpASID(satp uint64) uint16 {
	return uint16(satp >> 44)
}

// SatpBase extracts the root page table address from a satp value.
func SatpBase(satp uint64) uint64 {
	return (satp & (1<<44 - 1)) << PGSHIFT
}
