package kalloc

import (
	"errors"
	"testing"
)

func TestAllocFree(t *testing.T) {
	a := New(0x80001010, 0x80005000)
	if a.NumFree() != 3 {
		t.Fatalf("NumFree() = %d, want 3", a.NumFree())
	}

	seen := map[uint64]bool{}
	for i := 0; i < 3; i++ {
		pa, err := a.Alloc()
		if err != nil {
			t.Fatalf("Alloc() err = %v", err)
		}
		if pa%PGSIZE != 0 || pa < 0x80002000 || pa >= 0x80005000 {
			t.Fatalf("Alloc() = %#x, want an aligned page in the arena", pa)
		}
		if seen[pa] {
			t.Fatalf("Alloc() returned %#x twice", pa)
		}
		seen[pa] = true
	}
	if _, err := a.Alloc(); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("Alloc() on empty err = %v, want %v", err, ErrOutOfMemory)
	}

	a.Free(0x80003000)
	pa, err := a.Alloc()
	if err != nil || pa != 0x80003000 {
		t.Fatalf("Alloc() after Free = %#x, %v, want 0x80003000, nil", pa, err)
	}
}

func TestFreeBadAddress(t *testing.T) {
	a := New(0x80000000, 0x80004000)
	for _, pa := range []uint64{0x80000010, 0x7ffff000, 0x80004000} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("Free(%#x) did not panic", pa)
				}
			}()
			a.Free(pa)
		}()
	}
}

func TestDoubleFree(t *testing.T) {
	a := New(0x80000000, 0x80002000)
	pa, err := a.Alloc()
	if err != nil {
		t.Fatalf("Alloc() err = %v", err)
	}
	a.Free(pa)
	defer func() {
		if recover() == nil {
			t.Fatalf("second Free(%#x) did not panic", pa)
		}
	}()
	a.Free(pa)
}

func TestSpaces(t *testing.T) {
	s := Spaces{A: New(0x80000000, 0x80002000)}
	base, err := s.New()
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	if s.A.NumFree() != 1 {
		t.Fatalf("NumFree() = %d, want 1", s.A.NumFree())
	}
	s.Free(base)
	if s.A.NumFree() != 2 {
		t.Fatalf("NumFree() after Free = %d, want 2", s.A.NumFree())
	}
}
