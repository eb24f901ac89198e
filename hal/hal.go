package hal

import (
	"errors"
	"fmt"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var (
	ErrNotImplemented = errors.New("not implemented")

	// ErrHalted is returned once any hart has stopped the machine.
	ErrHalted = errors.New("machine halted")
)

// HaltError records why and where the machine stopped.
type HaltError struct {
	Hart   int
	Reason string
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("machine halted on hart %d: %s", e.Hart, e.Reason)
}

func (e *HaltError) Unwrap() error { return ErrHalted }

// Vector is a trap handler bound to a code address. It runs on the hart that
// took the trap and must leave through Mret or Sret.
type Vector func(h Hart)

// Bus is the physical address space seen by MMIO loads and stores.
type Bus interface {
	Load8(addr uintptr) uint8
	Store8(addr uintptr, v uint8)
	Load32(addr uintptr) uint32
	Store32(addr uintptr, v uint32)
	Load64(addr uintptr) uint64
	Store64(addr uintptr, v uint64)
}

// Hart is one hardware thread: its register file, CSRs and trap mechanics.
//
// A Hart must only be driven by the goroutine currently executing on it.
type Hart interface {
	ID() int

	ReadCSR(csr CSR) uint64
	WriteCSR(csr CSR, v uint64)
	SetCSR(csr CSR, bits uint64)
	ClearCSR(csr CSR, bits uint64)

	Reg(r Reg) uint64
	SetReg(r Reg, v uint64)
	PC() uint64
	SetPC(pc uint64)
	Privilege() Privilege

	// Step executes up to n instructions at the current privilege level and
	// returns how many were not executed because a trap was taken. After a
	// trap the caller may be running on a different hart.
	Step(n int) int
	// Pause is a spin-loop hint; it is also an instruction boundary.
	Pause()
	Ecall()
	Exception(code uint64, tval uint64)
	Mret()
	Sret()
	Fence()
	SfenceVMA()

	Bus() Bus
	Machine() Machine
	// Done is closed when the machine halts.
	Done() <-chan struct{}
	// Halt stops the whole machine and unwinds the calling goroutine.
	Halt(reason string)
}

// Machine is a complete board: harts, bus and trap vector symbols.
type Machine interface {
	Harts() []Hart
	Bus() Bus
	Logger() Logger

	// Bind associates a code address with a trap vector. All binds must
	// happen before any hart starts.
	Bind(addr uint64, v Vector)

	// Input queues bytes on the UART receive FIFO.
	Input(b []byte)

	// Go runs f on a new goroutine that the machine waits for before Run
	// returns. A halt unwind inside f is absorbed; any other panic halts
	// the machine.
	Go(f func())

	// Ticks returns mtime.
	Ticks() uint64
	Done() <-chan struct{}
	Err() error
	Halt(hart int, reason string)
}

type unwind struct{}

// Unwinding reports whether a recovered value is the halt unwind signal.
func Unwinding(r any) bool {
	_, ok := r.(unwind)
	return ok
}

// Unwind ends the calling goroutine's execution on a halted machine.
func Unwind() {
	panic(unwind{})
}
