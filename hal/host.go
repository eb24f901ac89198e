//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Config describes the host board.
type Config struct {
	Harts     int
	Clock     ClockMode
	StepTicks uint64

	// Output receives UART transmissions. Defaults to os.Stdout.
	Output io.Writer
	// Logger receives host diagnostics. Defaults to stderr.
	Logger Logger
}

type hostMachine struct {
	cfg Config

	clock *hostClock
	clint *hostCLINT
	plic  *hostPLIC
	uart  *hostSerial
	bus   *hostBus
	harts []*hostHart
	iface []Hart

	vectors map[uint64]Vector
	logger  Logger

	once   sync.Once
	halted atomic.Bool
	done   chan struct{}
	err    error

	wg sync.WaitGroup
}

// New returns a simulated qemu virt board with cfg.Harts harts.
func New(cfg Config) (Machine, error) {
	if cfg.Harts <= 0 || cfg.Harts > MaxHarts {
		return nil, fmt.Errorf("hal: harts must be in 1..%d, got %d", MaxHarts, cfg.Harts)
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &hostLogger{w: os.Stderr}
	}

	m := &hostMachine{
		cfg:     cfg,
		clock:   newHostClock(cfg.Clock, cfg.StepTicks),
		plic:    newHostPLIC(),
		vectors: make(map[uint64]Vector),
		logger:  logger,
		done:    make(chan struct{}),
	}
	m.clint = newHostCLINT(m.clock)
	m.uart = newHostSerial(cfg.Output, m.plic)
	for i := 0; i < cfg.Harts; i++ {
		h := newHostHart(m, i)
		m.harts = append(m.harts, h)
		m.iface = append(m.iface, h)
	}
	m.clint.harts = m.harts
	m.plic.harts = m.harts
	m.bus = &hostBus{regions: []region{
		{base: CLINT, size: clintSize, dev: m.clint},
		{base: PLIC, size: plicSize, dev: m.plic},
		{base: UART0, size: uartSize, dev: m.uart},
	}}
	return m, nil
}

func (m *hostMachine) Harts() []Hart  { return m.iface }
func (m *hostMachine) Bus() Bus       { return m.bus }
func (m *hostMachine) Logger() Logger { return m.logger }
func (m *hostMachine) Ticks() uint64  { return m.clock.now() }

func (m *hostMachine) Done() <-chan struct{} { return m.done }

func (m *hostMachine) Bind(addr uint64, v Vector) {
	m.vectors[addr&^3] = v
}

func (m *hostMachine) Input(b []byte) { m.uart.input(b) }

// Err returns the halt cause once Done is closed.
func (m *hostMachine) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// Halt stops every hart. The first caller wins; later halts are ignored.
func (m *hostMachine) Halt(hart int, reason string) {
	m.once.Do(func() {
		m.err = &HaltError{Hart: hart, Reason: reason}
		m.halted.Store(true)
		close(m.done)
	})
}

func (m *hostMachine) Go(f func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.recoverHalt(-1)
		f()
	}()
}

// recoverHalt absorbs the halt unwind and turns any other panic into a halt.
func (m *hostMachine) recoverHalt(hart int) {
	r := recover()
	if r == nil || Unwinding(r) {
		return
	}
	m.Halt(hart, fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
}

func (h *hostHart) run(boot func(Hart)) {
	defer h.m.recoverHalt(h.id)
	boot(h)
	h.m.Halt(h.id, "boot returned")
}

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

// NewLogger returns a Logger writing lines to w.
func NewLogger(w io.Writer) Logger {
	return &hostLogger{w: w}
}
