package uart

import (
	"bytes"
	"io"
	"testing"

	"hartcore/hal"
)

func TestPutcAndIntr(t *testing.T) {
	var out bytes.Buffer
	m, err := hal.New(hal.Config{Harts: 1, Clock: hal.ClockStep, Output: &out, Logger: hal.NewLogger(io.Discard)})
	if err != nil {
		t.Fatalf("hal.New() err = %v", err)
	}
	h := m.Harts()[0]
	u := New(m.Bus())
	u.Init()

	for _, c := range []byte("hi") {
		u.Putc(h, c)
	}
	if out.String() != "hi" {
		t.Fatalf("output = %q, want %q", out.String(), "hi")
	}

	if _, ok := u.Getc(); ok {
		t.Fatalf("Getc() on empty ring ok = true, want false")
	}
	m.Input([]byte("abc"))
	if got := u.Intr(); string(got) != "abc" {
		t.Fatalf("Intr() = %q, want %q", got, "abc")
	}
	for _, want := range []byte("abc") {
		c, ok := u.Getc()
		if !ok || c != want {
			t.Fatalf("Getc() = %q, %v, want %q, true", c, ok, want)
		}
	}
}

func TestIntrDropsWhenFull(t *testing.T) {
	m, err := hal.New(hal.Config{Harts: 1, Clock: hal.ClockStep, Output: io.Discard, Logger: hal.NewLogger(io.Discard)})
	if err != nil {
		t.Fatalf("hal.New() err = %v", err)
	}
	u := New(m.Bus())
	u.Init()

	m.Input(bytes.Repeat([]byte{'x'}, inputRingSlots+5))
	got := u.Intr()
	if len(got) != inputRingSlots {
		t.Fatalf("Intr() took %d bytes, want %d", len(got), inputRingSlots)
	}
	if u.Dropped() != 5 {
		t.Fatalf("Dropped() = %d, want 5", u.Dropped())
	}
}
