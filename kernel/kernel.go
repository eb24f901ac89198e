// Package kernel is the trap, interrupt and scheduling core: boot across
// harts, machine and supervisor trap dispatch, the process table, the
// per-hart round-robin scheduler and the syscall gateway.
package kernel

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"hartcore/hal"
	"hartcore/kernel/clint"
	"hartcore/kernel/kalloc"
	"hartcore/kernel/plic"
	"hartcore/kernel/uart"
)

var (
	ErrNoProc    = errors.New("kernel: process table full")
	ErrNoProgram = errors.New("kernel: no such program")
)

// InterruptController hands out pending device interrupts. Every
// successful Claim is followed by exactly one Complete with the same irq.
type InterruptController interface {
	Claim(hart int) (uint32, bool)
	Complete(hart int, irq uint32)
}

// Interrupter is a device interrupt entry point. The device clears its own
// interrupt condition.
type Interrupter interface {
	Intr()
}

// AddressSpaces provides page-aligned root page tables. The kernel only
// ever puts the base into satp.
type AddressSpaces interface {
	New() (uint64, error)
	Free(base uint64)
}

// FaultPolicy decides what a user page fault does to the process.
type FaultPolicy uint8

const (
	// FaultKill marks the process killed; it exits with status -1 before
	// returning to user mode.
	FaultKill FaultPolicy = iota
	// FaultSkip logs and resumes after the faulting instruction.
	FaultSkip
)

func (f FaultPolicy) String() string {
	switch f {
	case FaultKill:
		return "kill"
	case FaultSkip:
		return "skip"
	default:
		return fmt.Sprintf("FaultPolicy(%d)", uint8(f))
	}
}

// BootProc is a process hart 0 starts before releasing the other harts.
type BootProc struct {
	Name string
	Prog Program
	SpawnOptions
}

// Config configures a kernel instance. Zero fields take defaults in New.
type Config struct {
	// Quantum is the scheduling quantum in mtime ticks.
	Quantum uint64
	// UserMemory is the size of each process's user memory window.
	UserMemory int
	FaultPolicy FaultPolicy

	// Programs can be started by name with the spawn syscall.
	Programs map[string]Program
	// Init names the first user program. It becomes the init process,
	// which adopts orphans.
	Init string
	// Boot lists further processes, started without a parent.
	Boot []BootProc

	// Syscalls overrides or extends the default syscall table.
	Syscalls map[uint64]SyscallFunc

	Interrupts    InterruptController // defaults to the PLIC
	Disk          Interrupter         // optional virtio disk
	AddressSpaces AddressSpaces       // defaults to kalloc pages

	Logger hal.Logger
	Trace  func(Event)
}

const (
	defaultQuantum    = 100_000 // 10ms at 10 MHz
	defaultUserMemory = 64 * 1024
)

// Kernel is one booted instance on one machine.
type Kernel struct {
	cfg Config
	m   hal.Machine
	log hal.Logger

	ncpu int
	cpus [NCPU]CPU

	ptable struct {
		lock  Spinlock
		procs [NPROC]Proc
	}
	nextpid  int
	initproc *Proc

	tickslock Spinlock
	ticks     uint64

	cons          Spinlock
	console       *uart.UART
	line          lineBuf
	droppedLogged uint64

	pipelock Spinlock

	timer    *clint.Timer
	intc     InterruptController
	hwplic   *plic.PLIC
	disk     Interrupter
	spaces   AddressSpaces
	kmem     *kalloc.Allocator
	kernelPT uint64
	kernSATP uint64

	syscalls map[uint64]SyscallFunc
	programs map[string]Program

	started   atomic.Bool
	bootSteps atomic.Uint32

	panicOnce sync.Once
	panicking atomic.Bool
}

// New builds a kernel for m and binds its trap vectors. Harts enter it
// through Start.
func New(m hal.Machine, cfg Config) (*Kernel, error) {
	if cfg.Quantum == 0 {
		cfg.Quantum = defaultQuantum
	}
	if cfg.UserMemory <= 0 {
		cfg.UserMemory = defaultUserMemory
	}
	if cfg.UserMemory < ioBufSize*2 {
		return nil, fmt.Errorf("kernel: user memory %d below %d bytes", cfg.UserMemory, ioBufSize*2)
	}
	ncpu := len(m.Harts())
	if ncpu > NCPU {
		return nil, fmt.Errorf("kernel: %d harts, at most %d supported", ncpu, NCPU)
	}
	if cfg.Init != "" {
		if _, ok := cfg.Programs[cfg.Init]; !ok {
			return nil, fmt.Errorf("kernel: init program %q: %w", cfg.Init, ErrNoProgram)
		}
	}

	k := &Kernel{
		cfg:      cfg,
		m:        m,
		log:      cfg.Logger,
		ncpu:     ncpu,
		nextpid:  1,
		console:  uart.New(m.Bus()),
		timer:    clint.New(m.Bus()),
		hwplic:   plic.New(m.Bus()),
		disk:     cfg.Disk,
		programs: cfg.Programs,
	}
	if k.log == nil {
		k.log = m.Logger()
	}
	k.intc = cfg.Interrupts
	if k.intc == nil {
		k.intc = k.hwplic
	}
	k.ptable.lock.name = "ptable"
	k.tickslock.name = "time"
	k.cons.name = "cons"
	k.pipelock.name = "pipe"

	k.syscalls = defaultSyscalls()
	for num, fn := range cfg.Syscalls {
		k.syscalls[num] = fn
	}
	for i := range k.cpus {
		k.cpus[i].id = i
	}

	m.Bind(mainAddr, func(h hal.Hart) { k.panicf(h, "main is entered by mret, not by trap") })
	m.Bind(timervecAddr, k.timervec)
	m.Bind(kernelvecAddr, k.kernelvec)
	m.Bind(uservecAddr, k.uservec)
	return k, nil
}

// Ticks returns the clock interrupt count kept by hart 0.
func (k *Kernel) Ticks() uint64 {
	return atomic.LoadUint64(&k.ticks)
}

// Started reports whether hart 0 has published the boot flag.
func (k *Kernel) Started() bool { return k.started.Load() }

func (k *Kernel) logf(format string, args ...any) {
	k.log.WriteLineString(fmt.Sprintf(format, args...))
}

// panicf reports a fatal kernel condition and halts the machine from h.
// It does not return.
func (k *Kernel) panicf(h hal.Hart, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	k.panicOnce.Do(func() {
		k.panicking.Store(true)
		k.logf("panic: hart %d: %s", h.ID(), msg)
	})
	h.Halt(msg)
}

// EventKind says what an Event reports.
type EventKind uint8

const (
	// EvState is a process state transition.
	EvState EventKind = iota
	// EvBoot is a completed boot step.
	EvBoot
	// EvTrap is a classified supervisor trap.
	EvTrap
)

func (e EventKind) String() string {
	switch e {
	case EvState:
		return "state"
	case EvBoot:
		return "boot"
	case EvTrap:
		return "trap"
	default:
		return "?"
	}
}

// Event is delivered to Config.Trace. It may be called from any hart with
// kernel locks held and must not block.
type Event struct {
	Kind EventKind
	Hart int
	Pid  int

	From, To ProcState // EvState
	Step     string    // EvBoot
	Cause    Cause     // EvTrap
	User     bool      // EvTrap: trapped from user mode
}

func (k *Kernel) trace(e Event) {
	if k.cfg.Trace != nil {
		k.cfg.Trace(e)
	}
}

var _ AddressSpaces = kalloc.Spaces{}
var _ InterruptController = (*plic.PLIC)(nil)
