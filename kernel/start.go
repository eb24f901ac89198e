package kernel

import (
	"fmt"

	"hartcore/hal"
	"hartcore/internal/buildinfo"
	"hartcore/kernel/arch"
	"hartcore/kernel/kalloc"
)

// Boot steps hart 0 completes before it publishes started.
const (
	bootConsole uint32 = 1 << iota
	bootMemory
	bootDevices
	bootPLIC
	bootPLICHart
	bootTrapVector
	bootProcs

	bootAll = bootConsole | bootMemory | bootDevices | bootPLIC | bootPLICHart | bootTrapVector | bootProcs
)

// Start is every hart's reset entry, in machine mode. It does the
// machine-mode setup, drops to supervisor mode and runs main.
func (k *Kernel) Start(h hal.Hart) {
	// set M Previous Privilege mode to Supervisor, for mret.
	x := h.ReadCSR(hal.Mstatus)
	x &^= hal.StatusMPP
	x |= uint64(hal.SupervisorMode) << hal.StatusMPPShift
	h.WriteCSR(hal.Mstatus, x)

	// set M Exception Program Counter to main, for mret.
	h.WriteCSR(hal.Mepc, mainAddr)

	// disable paging for now.
	h.WriteCSR(hal.Satp, 0)

	// delegate all interrupts and exceptions to supervisor mode.
	h.WriteCSR(hal.Medeleg, 0xffff)
	h.WriteCSR(hal.Mideleg, 0xffff)

	// configure Physical Memory Protection to give supervisor mode
	// access to all of physical memory.
	h.WriteCSR(hal.Pmpaddr0, 0x3fffffffffffff)
	h.WriteCSR(hal.Pmpcfg0, 0xf)

	// ask for clock interrupts.
	k.timer.Init(h, k.cfg.Quantum, timervecAddr)

	// keep each CPU's hartid in its tp register, for mycpu().
	h.SetReg(hal.TP, h.ReadCSR(hal.Mhartid))

	// switch to supervisor mode and jump to main().
	h.Mret()
	if h.PC() != mainAddr || h.Privilege() != hal.SupervisorMode {
		k.panicf(h, "start: mret to %#x in %s mode", h.PC(), h.Privilege())
	}
	k.main(h)
}

// main runs in supervisor mode on every hart. Hart 0 initialises the
// kernel; the others wait for it and then only set up their own state.
func (k *Kernel) main(h hal.Hart) {
	id := arch.HartID(h)
	c := &k.cpus[id]
	c.hart = h
	c.context = arch.NewContext(nil)

	if id == 0 {
		k.console.Init()
		k.bootStep(c, bootConsole, "console")
		k.consputs(c, fmt.Sprintf("\nhartcore kernel %s is booting on %d harts\n\n", buildinfo.Short(), k.ncpu))

		k.kinit()
		if err := k.kvminit(); err != nil {
			k.panicf(h, "kvminit: %v", err)
		}
		k.kvminithart(h)
		k.bootStep(c, bootMemory, "memory")

		k.probe()
		k.bootStep(c, bootDevices, "devices")

		k.hwplic.Init()
		k.bootStep(c, bootPLIC, "plic")
		k.hwplic.InitHart(id)
		k.bootStep(c, bootPLICHart, "plic hart")

		k.trapinithart(h)
		k.bootStep(c, bootTrapVector, "trap vector")

		k.procinit()
		if err := k.userinit(c); err != nil {
			k.panicf(h, "userinit: %v", err)
		}
		k.bootStep(c, bootProcs, "processes")

		arch.Synchronize(h)
		k.started.Store(true)
		k.trace(Event{Kind: EvBoot, Hart: id, Step: "started"})
	} else {
		for !k.started.Load() {
			h.Pause()
		}
		arch.Synchronize(h)
		if got := k.bootSteps.Load(); got != bootAll {
			k.panicf(h, "hart %d: started before boot finished (steps %#x)", id, got)
		}
		k.logf("hart %d starting", id)
		k.kvminithart(h)      // turn on paging
		k.trapinithart(h)     // install kernel trap vector
		k.hwplic.InitHart(id) // ask PLIC for device interrupts
		k.trace(Event{Kind: EvBoot, Hart: id, Step: "ready"})
	}

	k.scheduler(c)
}

func (k *Kernel) bootStep(c *CPU, bit uint32, name string) {
	k.bootSteps.Store(k.bootSteps.Load() | bit)
	k.trace(Event{Kind: EvBoot, Hart: c.id, Step: name})
}

// kinit hands the physical memory after the kernel to the page
// allocator.
func (k *Kernel) kinit() {
	k.kmem = kalloc.New(kernelEnd, uint64(hal.PHYSTOP))
	if k.cfg.AddressSpaces != nil {
		k.spaces = k.cfg.AddressSpaces
	} else {
		k.spaces = kalloc.Spaces{A: k.kmem}
	}
}

// kvminit allocates the kernel's root page table.
func (k *Kernel) kvminit() error {
	pt, err := k.kmem.Alloc()
	if err != nil {
		return err
	}
	k.kernelPT = pt
	k.kernSATP = arch.BuildSATP(arch.Sv39, 0, pt)
	return nil
}

// kvminithart switches h's page table register to the kernel's page
// table, and enables paging.
func (k *Kernel) kvminithart(h hal.Hart) {
	h.WriteCSR(hal.Satp, k.kernSATP)
	h.SfenceVMA()
}

// probe reports the devices the kernel drives.
func (k *Kernel) probe() {
	k.logf("uart0 at %#x irq %d", hal.UART0, hal.UART0_IRQ)
	if k.disk != nil {
		k.logf("virtio disk at %#x irq %d", hal.VIRTIO0, hal.VIRTIO0_IRQ)
	}
	k.logf("%d pages free, quantum %d ticks, fault policy %s", k.kmem.NumFree(), k.cfg.Quantum, k.cfg.FaultPolicy)
}

// userinit starts the init process and the boot processes.
func (k *Kernel) userinit(c *CPU) error {
	if k.cfg.Init != "" {
		p, err := k.spawn(c, nil, k.cfg.Init, k.cfg.Programs[k.cfg.Init], false)
		if err != nil {
			return fmt.Errorf("init %q: %w", k.cfg.Init, err)
		}
		k.initproc = p
	}
	for _, b := range k.cfg.Boot {
		if _, err := k.Spawn(c.hart, b.Name, b.Prog, b.SpawnOptions); err != nil {
			return err
		}
	}
	return nil
}
