package plic

import (
	"io"
	"testing"

	"hartcore/hal"
)

func TestClaimComplete(t *testing.T) {
	m, err := hal.New(hal.Config{Harts: 2, Clock: hal.ClockStep, Output: io.Discard, Logger: hal.NewLogger(io.Discard)})
	if err != nil {
		t.Fatalf("hal.New() err = %v", err)
	}
	p := New(m.Bus())
	p.Init()
	p.InitHart(0)
	p.InitHart(1)

	if _, ok := p.Claim(0); ok {
		t.Fatalf("Claim() with nothing pending ok = true, want false")
	}

	m.Bus().Store8(hal.UART0+1, 1) // receive interrupts on
	m.Input([]byte("a"))

	irq, ok := p.Claim(1)
	if !ok || irq != hal.UART0_IRQ {
		t.Fatalf("Claim(1) = %d, %v, want %d, true", irq, ok, hal.UART0_IRQ)
	}
	if _, ok := p.Claim(0); ok {
		t.Fatalf("Claim(0) of an in-service source ok = true, want false")
	}
	m.Bus().Load8(hal.UART0) // drain
	p.Complete(1, irq)
	if _, ok := p.Claim(0); ok {
		t.Fatalf("Claim(0) after drain and complete ok = true, want false")
	}
}

func TestInitHartEnablesOnlyRoutedSources(t *testing.T) {
	m, err := hal.New(hal.Config{Harts: 1, Clock: hal.ClockStep, Output: io.Discard, Logger: hal.NewLogger(io.Discard)})
	if err != nil {
		t.Fatalf("hal.New() err = %v", err)
	}
	p := New(m.Bus(), hal.VIRTIO0_IRQ)
	p.Init()
	p.InitHart(0)

	m.Bus().Store8(hal.UART0+1, 1)
	m.Input([]byte("a"))
	if irq, ok := p.Claim(0); ok {
		t.Fatalf("Claim() = %d for an unrouted source, want none", irq)
	}
}
