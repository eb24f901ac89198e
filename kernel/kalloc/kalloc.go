// Package kalloc is the physical page allocator, for root page tables and
// other whole-page kernel memory.
package kalloc

import (
	"errors"
	"fmt"
	"sync"
)

const PGSIZE = 4096

var ErrOutOfMemory = errors.New("kalloc: out of memory")

// Allocator hands out the pages of [start, end). Page contents are never
// touched: callers only use the addresses.
type Allocator struct {
	mu       sync.Mutex
	start    uint64
	end      uint64
	freelist []uint64
	inuse    []bool
}

// New frees every whole page in [start, end).
func New(start, end uint64) *Allocator {
	start = pgroundup(start)
	end &^= PGSIZE - 1
	a := &Allocator{start: start, end: end}
	if end > start {
		a.inuse = make([]bool, (end-start)/PGSIZE)
	}
	for i := range a.inuse {
		a.inuse[i] = true
	}
	a.freerange(start, end)
	return a
}

func pgroundup(a uint64) uint64 { return (a + PGSIZE - 1) &^ (PGSIZE - 1) }

func (a *Allocator) freerange(start, end uint64) {
	for p := start; p+PGSIZE <= end; p += PGSIZE {
		a.Free(p)
	}
}

// Free returns a page. Freeing an address that is misaligned, outside the
// arena, or already free is a kernel bug.
func (a *Allocator) Free(pa uint64) {
	if pa%PGSIZE != 0 || pa < a.start || pa >= a.end {
		panic(fmt.Sprintf("kfree: bad address %#x", pa))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	i := (pa - a.start) / PGSIZE
	if !a.inuse[i] {
		panic(fmt.Sprintf("kfree: double free %#x", pa))
	}
	a.inuse[i] = false
	a.freelist = append(a.freelist, pa)
}

// Alloc takes a free page.
func (a *Allocator) Alloc() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.freelist)
	if n == 0 {
		return 0, ErrOutOfMemory
	}
	pa := a.freelist[n-1]
	a.freelist = a.freelist[:n-1]
	a.inuse[(pa-a.start)/PGSIZE] = true
	return pa, nil
}

// NumFree returns the number of free pages.
func (a *Allocator) NumFree() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.freelist)
}

// Spaces hands out one root page-table page per address space.
type Spaces struct {
	A *Allocator
}

func (s Spaces) New() (uint64, error) { return s.A.Alloc() }
func (s Spaces) Free(base uint64)     { s.A.Free(base) }
