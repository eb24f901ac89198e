package hal

// CSR is a control and status register number.
type CSR uint16

const (
	Sstatus  CSR = 0x100
	Sie      CSR = 0x104
	Stvec    CSR = 0x105
	Sscratch CSR = 0x140
	Sepc     CSR = 0x141
	Scause   CSR = 0x142
	Stval    CSR = 0x143
	Sip      CSR = 0x144
	Satp     CSR = 0x180

	Mstatus  CSR = 0x300
	Medeleg  CSR = 0x302
	Mideleg  CSR = 0x303
	Mie      CSR = 0x304
	Mtvec    CSR = 0x305
	Mscratch CSR = 0x340
	Mepc     CSR = 0x341
	Mcause   CSR = 0x342
	Mtval    CSR = 0x343
	Mip      CSR = 0x344
	Pmpcfg0  CSR = 0x3A0
	Pmpaddr0 CSR = 0x3B0

	Time    CSR = 0xC01
	Mhartid CSR = 0xF14
)

// Privilege is a RISC-V privilege level.
type Privilege uint8

const (
	UserMode       Privilege = 0
	SupervisorMode Privilege = 1
	MachineMode    Privilege = 3
)

func (p Privilege) String() string {
	switch p {
	case UserMode:
		return "U"
	case SupervisorMode:
		return "S"
	case MachineMode:
		return "M"
	default:
		return "?"
	}
}

// mstatus / sstatus bits.
const (
	StatusSIE  = 1 << 1
	StatusMIE  = 1 << 3
	StatusSPIE = 1 << 5
	StatusMPIE = 1 << 7
	StatusSPP  = 1 << 8
	StatusMPP  = 3 << 11

	StatusMPPShift = 11

	// sstatus is a restricted view of mstatus.
	sstatusMask = StatusSIE | StatusSPIE | StatusSPP
)

// mip / mie bits. The same positions are used by sip / sie.
const (
	IntSSI = 1 << 1
	IntMSI = 1 << 3
	IntSTI = 1 << 5
	IntMTI = 1 << 7
	IntSEI = 1 << 9
	IntMEI = 1 << 11
)

// CauseInterrupt is the top bit of mcause / scause.
const CauseInterrupt = uint64(1) << 63

// Interrupt cause codes.
const (
	IRQSupervisorSoft  = 1
	IRQMachineSoft     = 3
	IRQSupervisorTimer = 5
	IRQMachineTimer    = 7
	IRQSupervisorExt   = 9
	IRQMachineExt      = 11
)

// Exception cause codes.
const (
	ExcInstructionMisaligned = 0
	ExcInstructionAccess     = 1
	ExcIllegalInstruction    = 2
	ExcBreakpoint            = 3
	ExcLoadAccess            = 5
	ExcStoreAccess           = 7
	ExcEcallU                = 8
	ExcEcallS                = 9
	ExcEcallM                = 11
	ExcInstructionPageFault  = 12
	ExcLoadPageFault         = 13
	ExcStorePageFault        = 15
)

// Reg is a general purpose register number.
type Reg uint8

const (
	Zero Reg = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6

	NumRegs = 32
)

// CalleeSaved lists s0..s11 in context order.
var CalleeSaved = [12]Reg{S0, S1, S2, S3, S4, S5, S6, S7, S8, S9, S10, S11}
