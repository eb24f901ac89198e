//go:build !tinygo

package hal

// device is an MMIO region on the host bus. Offsets are relative to the
// region base.
type device interface {
	read(off uint64, size int) uint64
	write(off uint64, size int, v uint64)
}

type region struct {
	base uintptr
	size uintptr
	dev  device
}

// hostBus routes loads and stores to the devices of the virt board.
// Unmapped loads read zero and unmapped stores are dropped.
type hostBus struct {
	regions []region
}

func (b *hostBus) find(addr uintptr) (device, uint64) {
	for _, r := range b.regions {
		if addr >= r.base && addr < r.base+r.size {
			return r.dev, uint64(addr - r.base)
		}
	}
	return nil, 0
}

func (b *hostBus) load(addr uintptr, size int) uint64 {
	dev, off := b.find(addr)
	if dev == nil {
		return 0
	}
	return dev.read(off, size)
}

func (b *hostBus) store(addr uintptr, size int, v uint64) {
	dev, off := b.find(addr)
	if dev == nil {
		return
	}
	dev.write(off, size, v)
}

func (b *hostBus) Load8(addr uintptr) uint8       { return uint8(b.load(addr, 1)) }
func (b *hostBus) Store8(addr uintptr, v uint8)   { b.store(addr, 1, uint64(v)) }
func (b *hostBus) Load32(addr uintptr) uint32     { return uint32(b.load(addr, 4)) }
func (b *hostBus) Store32(addr uintptr, v uint32) { b.store(addr, 4, uint64(v)) }
func (b *hostBus) Load64(addr uintptr) uint64     { return b.load(addr, 8) }
func (b *hostBus) Store64(addr uintptr, v uint64) { b.store(addr, 8, v) }
