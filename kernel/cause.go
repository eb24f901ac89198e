package kernel

import (
	"fmt"

	"hartcore/hal"
)

// CauseKind classifies a trap.
type CauseKind uint8

const (
	Unknown CauseKind = iota
	Timer
	ExternalDevice
	Syscall
	PageFault
	IllegalInstruction
)

func (k CauseKind) String() string {
	switch k {
	case Timer:
		return "timer"
	case ExternalDevice:
		return "external"
	case Syscall:
		return "syscall"
	case PageFault:
		return "page fault"
	case IllegalInstruction:
		return "illegal instruction"
	default:
		return "unknown"
	}
}

// FaultKind is the access that page faulted.
type FaultKind uint8

const (
	FaultInstruction FaultKind = iota
	FaultLoad
	FaultStore
)

func (f FaultKind) String() string {
	switch f {
	case FaultInstruction:
		return "instruction"
	case FaultLoad:
		return "load"
	case FaultStore:
		return "store"
	default:
		return "?"
	}
}

// Cause is a decoded scause/mcause.
type Cause struct {
	Kind  CauseKind
	Async bool
	Code  uint64

	Source uint32    // ExternalDevice: the claimed irq, once claimed
	Fault  FaultKind // PageFault
	Addr   uint64    // PageFault: faulting address
}

// Decode classifies a raw cause register value. tval is the matching
// stval/mtval.
func Decode(cause, tval uint64) Cause {
	c := Cause{
		Async: cause&hal.CauseInterrupt != 0,
		Code:  cause &^ hal.CauseInterrupt,
	}
	if c.Async {
		switch c.Code {
		case hal.IRQSupervisorSoft, hal.IRQSupervisorTimer, hal.IRQMachineTimer:
			// The machine timer handler forwards each tick as a
			// supervisor software interrupt.
			c.Kind = Timer
		case hal.IRQSupervisorExt, hal.IRQMachineExt:
			c.Kind = ExternalDevice
		}
		return c
	}
	switch c.Code {
	case hal.ExcEcallU, hal.ExcEcallS, hal.ExcEcallM:
		c.Kind = Syscall
	case hal.ExcInstructionPageFault:
		c.Kind, c.Fault, c.Addr = PageFault, FaultInstruction, tval
	case hal.ExcLoadPageFault:
		c.Kind, c.Fault, c.Addr = PageFault, FaultLoad, tval
	case hal.ExcStorePageFault:
		c.Kind, c.Fault, c.Addr = PageFault, FaultStore, tval
	case hal.ExcIllegalInstruction:
		c.Kind = IllegalInstruction
	}
	return c
}

func (c Cause) String() string {
	switch c.Kind {
	case ExternalDevice:
		return fmt.Sprintf("external(%d)", c.Source)
	case PageFault:
		return fmt.Sprintf("page fault(%s, %#x)", c.Fault, c.Addr)
	case Unknown:
		if c.Async {
			return fmt.Sprintf("unknown(async %d)", c.Code)
		}
		return fmt.Sprintf("unknown(%d)", c.Code)
	default:
		return c.Kind.String()
	}
}
