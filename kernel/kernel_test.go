package kernel

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"go.uber.org/mock/gomock"

	"hartcore/hal"
	"hartcore/kernel/arch"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// newTestKernel builds a kernel on a one-hart machine that is never run.
// The returned CPU is bound to hart 0, which is still in machine mode.
func newTestKernel(t *testing.T, cfg Config) (*Kernel, *CPU, *syncBuffer, *syncBuffer) {
	t.Helper()
	var out, log syncBuffer
	m, err := hal.New(hal.Config{Harts: 1, Clock: hal.ClockStep, Output: &out, Logger: hal.NewLogger(&log)})
	if err != nil {
		t.Fatalf("hal.New() err = %v", err)
	}
	k, err := New(m, cfg)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	c := &k.cpus[0]
	c.hart = m.Harts()[0]
	k.procinit()
	return k, c, &out, &log
}

func TestNewValidates(t *testing.T) {
	m, err := hal.New(hal.Config{Harts: 1, Output: io.Discard, Logger: hal.NewLogger(io.Discard)})
	if err != nil {
		t.Fatalf("hal.New() err = %v", err)
	}
	if _, err := New(m, Config{Init: "missing"}); !errors.Is(err, ErrNoProgram) {
		t.Fatalf("New(Init: missing) err = %v, want ErrNoProgram", err)
	}
	if _, err := New(m, Config{UserMemory: ioBufSize}); err == nil {
		t.Fatalf("New(UserMemory: %d) err = nil, want error", ioBufSize)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		cause, tval uint64
		want        Cause
	}{
		{hal.CauseInterrupt | hal.IRQSupervisorSoft, 0, Cause{Kind: Timer, Async: true, Code: 1}},
		{hal.CauseInterrupt | hal.IRQSupervisorTimer, 0, Cause{Kind: Timer, Async: true, Code: 5}},
		{hal.CauseInterrupt | hal.IRQMachineTimer, 0, Cause{Kind: Timer, Async: true, Code: 7}},
		{hal.CauseInterrupt | hal.IRQSupervisorExt, 0, Cause{Kind: ExternalDevice, Async: true, Code: 9}},
		{hal.CauseInterrupt | hal.IRQMachineExt, 0, Cause{Kind: ExternalDevice, Async: true, Code: 11}},
		{hal.CauseInterrupt | 4, 0, Cause{Kind: Unknown, Async: true, Code: 4}},
		{hal.ExcEcallU, 0, Cause{Kind: Syscall, Code: 8}},
		{hal.ExcEcallS, 0, Cause{Kind: Syscall, Code: 9}},
		{hal.ExcInstructionPageFault, 0x10, Cause{Kind: PageFault, Code: 12, Fault: FaultInstruction, Addr: 0x10}},
		{hal.ExcLoadPageFault, 0x20, Cause{Kind: PageFault, Code: 13, Fault: FaultLoad, Addr: 0x20}},
		{hal.ExcStorePageFault, 0x30, Cause{Kind: PageFault, Code: 15, Fault: FaultStore, Addr: 0x30}},
		{hal.ExcIllegalInstruction, 0, Cause{Kind: IllegalInstruction, Code: 2}},
		{hal.ExcBreakpoint, 0, Cause{Kind: Unknown, Code: 3}},
	}
	for _, tt := range tests {
		if got := Decode(tt.cause, tt.tval); got != tt.want {
			t.Fatalf("Decode(%#x, %#x) = %+v, want %+v", tt.cause, tt.tval, got, tt.want)
		}
	}
}

func TestValidTransition(t *testing.T) {
	allowed := map[[2]ProcState]bool{
		{UNUSED, EMBRYO}:     true,
		{EMBRYO, RUNNABLE}:   true,
		{EMBRYO, UNUSED}:     true,
		{RUNNABLE, RUNNING}:  true,
		{RUNNING, RUNNABLE}:  true,
		{RUNNING, SLEEPING}:  true,
		{RUNNING, ZOMBIE}:    true,
		{SLEEPING, RUNNABLE}: true,
		{ZOMBIE, UNUSED}:     true,
	}
	for from := UNUSED; from <= ZOMBIE; from++ {
		for to := UNUSED; to <= ZOMBIE; to++ {
			want := allowed[[2]ProcState{from, to}]
			if got := validTransition(from, to); got != want {
				t.Fatalf("validTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTrapFrameArgs(t *testing.T) {
	var tf TrapFrame
	for i := 0; i < 8; i++ {
		tf.Regs[hal.A0+hal.Reg(i)] = uint64(i + 1)
	}
	want := [6]uint64{1, 2, 3, 4, 5, 6}
	if got := tf.args(); got != want {
		t.Fatalf("args() = %v, want %v", got, want)
	}
}

func TestPushOffNests(t *testing.T) {
	k, c, _, _ := newTestKernel(t, Config{})
	arch.IntrOn(c.hart)

	var a, b Spinlock
	k.acquire(c, &a)
	k.acquire(c, &b)
	if arch.IntrGet(c.hart) {
		t.Fatalf("IntrGet() = true while holding locks")
	}
	if c.noff != 2 {
		t.Fatalf("noff = %d, want 2", c.noff)
	}
	k.release(c, &b)
	if arch.IntrGet(c.hart) {
		t.Fatalf("IntrGet() = true with one lock still held")
	}
	k.release(c, &a)
	if !arch.IntrGet(c.hart) {
		t.Fatalf("IntrGet() = false after last release, want restored")
	}
	if a.holding(c) || b.holding(c) {
		t.Fatalf("holding() = true after release")
	}
}

func TestDevintrUnexpectedIRQ(t *testing.T) {
	ctrl := gomock.NewController(t)
	ic := NewMockInterruptController(ctrl)
	k, c, _, log := newTestKernel(t, Config{Interrupts: ic})

	gomock.InOrder(
		ic.EXPECT().Claim(0).Return(uint32(42), true),
		ic.EXPECT().Complete(0, uint32(42)),
	)
	got := k.devintr(c, Cause{Kind: ExternalDevice, Async: true, Code: hal.IRQSupervisorExt})
	if got.Source != 42 {
		t.Fatalf("devintr().Source = %d, want 42", got.Source)
	}
	if !strings.Contains(log.String(), "unexpected interrupt irq=42") {
		t.Fatalf("log = %q, want unexpected interrupt", log.String())
	}
}

func TestDevintrDisk(t *testing.T) {
	ctrl := gomock.NewController(t)
	ic := NewMockInterruptController(ctrl)
	disk := NewMockInterrupter(ctrl)
	k, c, _, _ := newTestKernel(t, Config{Interrupts: ic, Disk: disk})

	gomock.InOrder(
		ic.EXPECT().Claim(0).Return(uint32(hal.VIRTIO0_IRQ), true),
		disk.EXPECT().Intr(),
		ic.EXPECT().Complete(0, uint32(hal.VIRTIO0_IRQ)),
	)
	k.devintr(c, Cause{Kind: ExternalDevice})
}

func TestDevintrNothingClaimed(t *testing.T) {
	ctrl := gomock.NewController(t)
	ic := NewMockInterruptController(ctrl)
	k, c, _, _ := newTestKernel(t, Config{Interrupts: ic})

	// No Complete: nothing was claimed.
	ic.EXPECT().Claim(0).Return(uint32(0), false)
	if got := k.devintr(c, Cause{Kind: ExternalDevice}); got.Source != 0 {
		t.Fatalf("devintr().Source = %d, want 0", got.Source)
	}
}

func TestDevintrConsole(t *testing.T) {
	ctrl := gomock.NewController(t)
	ic := NewMockInterruptController(ctrl)
	k, c, out, _ := newTestKernel(t, Config{Interrupts: ic})
	k.m.Input([]byte("ab\x7fc\r"))

	gomock.InOrder(
		ic.EXPECT().Claim(0).Return(uint32(hal.UART0_IRQ), true),
		ic.EXPECT().Complete(0, uint32(hal.UART0_IRQ)),
	)
	k.devintr(c, Cause{Kind: ExternalDevice})

	if got, want := out.String(), "ab\b \bc\r\n"; got != want {
		t.Fatalf("echo = %q, want %q", got, want)
	}
	if got, want := string(k.line.buf[k.line.r:k.line.w]), "ac\n"; got != want {
		t.Fatalf("committed line = %q, want %q", got, want)
	}
	if _, ok := k.console.Getc(); ok {
		t.Fatalf("Getc() ok = true after devintr, want the ring drained")
	}
}

func TestConsoleLineEditing(t *testing.T) {
	k, c, out, _ := newTestKernel(t, Config{})
	p := &k.ptable.procs[0]
	p.cpu = c

	k.m.Input([]byte("ab\x7fc\rx\x15yz\x04q\b"))
	k.consoleintr(c)

	if got, want := out.String(), "ab\b \bc\r\nx\b \byzq\b \b"; got != want {
		t.Fatalf("echo = %q, want %q", got, want)
	}
	buf := make([]byte, 64)
	for _, want := range []string{"ac\n", "yz", ""} {
		n, err := k.consoleread(p, buf)
		if err != nil || string(buf[:n]) != want {
			t.Fatalf("consoleread() = %q, %v, want %q, nil", buf[:n], err, want)
		}
	}
	if k.line.r != k.line.w || k.line.e != k.line.w {
		t.Fatalf("line r=%d w=%d e=%d, want everything consumed", k.line.r, k.line.w, k.line.e)
	}
}

func TestDevintrTimer(t *testing.T) {
	k, c, _, _ := newTestKernel(t, Config{})
	h := c.hart
	h.WriteCSR(hal.Mideleg, 0xffff)
	h.SetCSR(hal.Mip, hal.IntSSI)

	k.devintr(c, Cause{Kind: Timer, Async: true, Code: hal.IRQSupervisorSoft})
	if got := k.Ticks(); got != 1 {
		t.Fatalf("Ticks() = %d, want 1", got)
	}
	if h.ReadCSR(hal.Sip)&hal.IntSSI != 0 {
		t.Fatalf("sip.SSIP still set")
	}
}

func TestSpawnAddressSpaceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	spaces := NewMockAddressSpaces(ctrl)
	var events []Event
	k, c, _, _ := newTestKernel(t, Config{Trace: func(e Event) { events = append(events, e) }})
	k.spaces = spaces

	errFull := errors.New("no pages")
	spaces.EXPECT().New().Return(uint64(0), errFull)
	if _, err := k.spawn(c, nil, "x", func(*User) {}, false); !errors.Is(err, errFull) {
		t.Fatalf("spawn() err = %v, want %v", err, errFull)
	}
	want := []Event{
		{Kind: EvState, Pid: 1, From: UNUSED, To: EMBRYO},
		{Kind: EvState, Pid: 1, From: EMBRYO, To: UNUSED},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d] = %+v, want %+v", i, events[i], want[i])
		}
	}
	if st := k.ptable.procs[0].state; st != UNUSED {
		t.Fatalf("slot 0 state = %s, want unused", st)
	}
}

func TestSpawnAndFree(t *testing.T) {
	ctrl := gomock.NewController(t)
	spaces := NewMockAddressSpaces(ctrl)
	k, c, _, _ := newTestKernel(t, Config{})
	k.spaces = spaces

	const base = 0x8100_0000
	spaces.EXPECT().New().Return(uint64(base), nil)
	p, err := k.spawn(c, nil, "x", func(*User) {}, false)
	if err != nil {
		t.Fatalf("spawn() err = %v", err)
	}
	if p.state != RUNNABLE {
		t.Fatalf("state = %s, want runnable", p.state)
	}
	if got := arch.SatpASID(p.tf.SATP); got != p.asid() {
		t.Fatalf("satp asid = %d, want %d", got, p.asid())
	}
	if got := arch.SatpBase(p.tf.SATP); got != base {
		t.Fatalf("satp base = %#x, want %#x", got, base)
	}
	if got := p.tf.Regs[hal.SP]; got != uint64(k.cfg.UserMemory) {
		t.Fatalf("sp = %#x, want %#x", got, k.cfg.UserMemory)
	}
	for fd := 0; fd < 3; fd++ {
		if p.ofile[fd] == nil {
			t.Fatalf("ofile[%d] = nil, want console", fd)
		}
	}

	spaces.EXPECT().Free(uint64(base))
	k.acquire(c, &k.ptable.lock)
	p.state = ZOMBIE
	k.freeproc(c, p)
	k.release(c, &k.ptable.lock)
	if p.state != UNUSED || p.pid != 0 || p.mem != nil {
		t.Fatalf("after freeproc state=%s pid=%d mem=%v", p.state, p.pid, p.mem != nil)
	}
}

func TestSyscallGateway(t *testing.T) {
	k, c, _, log := newTestKernel(t, Config{
		Syscalls: map[uint64]SyscallFunc{
			100: func(p *Proc, a [6]uint64) uint64 { return a[0] + a[1] },
		},
	})
	p := &k.ptable.procs[0]
	p.pid = 7
	p.name = "t"
	p.cpu = c

	var tf TrapFrame
	tf.EPC = 0x100
	tf.Regs[hal.A7] = SysGetpid
	k.syscall(c, p, &tf)
	if tf.Regs[hal.A0] != 7 || tf.EPC != 0x104 {
		t.Fatalf("getpid: a0=%d epc=%#x, want 7, 0x104", tf.Regs[hal.A0], tf.EPC)
	}
	if !arch.IntrGet(c.hart) {
		t.Fatalf("IntrGet() = false after gateway, want interrupts on")
	}

	tf.Regs[hal.A7] = 100
	tf.Regs[hal.A0], tf.Regs[hal.A1] = 40, 2
	k.syscall(c, p, &tf)
	if tf.Regs[hal.A0] != 42 {
		t.Fatalf("custom syscall a0 = %d, want 42", tf.Regs[hal.A0])
	}

	tf.Regs[hal.A7] = 999
	k.syscall(c, p, &tf)
	if tf.Regs[hal.A0] != ^uint64(0) {
		t.Fatalf("unknown syscall a0 = %#x, want -1", tf.Regs[hal.A0])
	}
	if !strings.Contains(log.String(), "unknown sys call 999") {
		t.Fatalf("log = %q, want unknown sys call", log.String())
	}
}

func TestMachineTrapTimer(t *testing.T) {
	k, c, _, _ := newTestKernel(t, Config{})
	h := c.hart
	k.timer.Init(h, 100, timervecAddr)
	cmp := k.m.Bus().Load64(hal.CLINT_MTIMECMP(0))

	var f TrapFrame
	pc := k.MachineTrap(h, 0x8000_2000, 0, hal.CauseInterrupt|hal.IRQMachineTimer, 0, 0, &f)
	if pc != 0x8000_2000 {
		t.Fatalf("MachineTrap() = %#x, want mepc", pc)
	}
	if h.ReadCSR(hal.Mip)&hal.IntSSI == 0 {
		t.Fatalf("mip.SSIP not raised")
	}
	if got := k.m.Bus().Load64(hal.CLINT_MTIMECMP(0)); got != cmp+100 {
		t.Fatalf("mtimecmp = %d, want %d", got, cmp+100)
	}
}

func TestMachineTrapSync(t *testing.T) {
	k, c, _, log := newTestKernel(t, Config{})
	h := c.hart

	var f TrapFrame
	if pc := k.MachineTrap(h, 0x100, 0xdead, hal.ExcLoadPageFault, 0, 0, &f); pc != 0x104 {
		t.Fatalf("MachineTrap(page fault) = %#x, want 0x104", pc)
	}
	if !strings.Contains(log.String(), "page fault") {
		t.Fatalf("log = %q, want page fault", log.String())
	}
	if pc := k.MachineTrap(h, 0x200, 0, hal.CauseInterrupt|hal.IRQMachineSoft, 0, 0, &f); pc != 0x200 {
		t.Fatalf("MachineTrap(msi) = %#x, want 0x200", pc)
	}

	p := &k.ptable.procs[0]
	p.pid = 3
	p.cpu = c
	c.proc = p
	f.Regs[hal.A7] = SysGetpid
	if pc := k.MachineTrap(h, 0x300, 0, hal.ExcEcallU, 0, 0, &f); pc != 0x304 {
		t.Fatalf("MachineTrap(ecall) = %#x, want 0x304", pc)
	}
	if f.Regs[hal.A0] != 3 {
		t.Fatalf("ecall a0 = %d, want 3", f.Regs[hal.A0])
	}
}

func TestCopyBounds(t *testing.T) {
	p := &Proc{mem: make([]byte, 16)}
	if !p.CopyOut(12, []byte{1, 2, 3, 4}) {
		t.Fatalf("CopyOut(12, 4 bytes) = false, want true")
	}
	if p.CopyOut(13, []byte{1, 2, 3, 4}) {
		t.Fatalf("CopyOut(13, 4 bytes) = true, want false")
	}
	if _, ok := p.CopyIn(^uint64(0), 2); ok {
		t.Fatalf("CopyIn(overflow) ok = true, want false")
	}
	b, ok := p.CopyIn(12, 4)
	if !ok || !bytes.Equal(b, []byte{1, 2, 3, 4}) {
		t.Fatalf("CopyIn(12, 4) = %v, %v", b, ok)
	}
}
