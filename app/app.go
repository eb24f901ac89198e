// Package app wires the host machine, the kernel and the builtin programs
// into a bootable system.
package app

import (
	"errors"
	"fmt"

	"hartcore/hal"
	"hartcore/internal/bootargs"
	"hartcore/internal/buildinfo"
	"hartcore/kernel"
	"hartcore/userland"
)

const (
	DefaultHarts = 2
	DefaultInit  = "init"
)

// Config is the system configuration after flags and boot arguments are
// merged.
type Config struct {
	Args bootargs.Args

	// Trace receives kernel events; nil disables tracing.
	Trace func(kernel.Event)
}

// Parse merges a kernel command line into a Config.
func Parse(cmdline string) (Config, error) {
	args, err := bootargs.Parse(cmdline)
	if err != nil {
		return Config{}, err
	}
	return Config{Args: args}, nil
}

// Machine returns the host board configuration.
func (c Config) Machine() hal.Config {
	mc := hal.Config{Harts: c.Args.Harts}
	if mc.Harts == 0 {
		mc.Harts = DefaultHarts
	}
	if c.Args.Clock == "step" {
		mc.Clock = hal.ClockStep
	}
	return mc
}

// ErrBuild means the build does not satisfy the require= boot argument.
var ErrBuild = errors.New("app: build does not satisfy require")

// Kernel returns the kernel configuration.
func (c Config) Kernel() (kernel.Config, error) {
	if c.Args.Require != "" {
		ok, err := buildinfo.Satisfies(c.Args.Require)
		if err != nil {
			return kernel.Config{}, fmt.Errorf("require %q: %w", c.Args.Require, err)
		}
		if !ok {
			return kernel.Config{}, fmt.Errorf("%w %q (build %s)", ErrBuild, c.Args.Require, buildinfo.Short())
		}
	}
	kc := kernel.Config{
		Quantum:    c.Args.Quantum,
		UserMemory: c.Args.Mem,
		Programs:   userland.Programs(),
		Init:       c.Args.Init,
		Trace:      c.Trace,
	}
	if kc.Init == "" {
		kc.Init = DefaultInit
	}
	if c.Args.Fault == "skip" {
		kc.FaultPolicy = kernel.FaultSkip
	}
	for _, name := range c.Args.Boot {
		prog, ok := kc.Programs[name]
		if !ok {
			return kernel.Config{}, fmt.Errorf("boot %q: %w", name, kernel.ErrNoProgram)
		}
		kc.Boot = append(kc.Boot, kernel.BootProc{Name: name, Prog: prog})
	}
	return kc, nil
}

// Setup returns the hook hal.RunHeadless and hal.RunWindow call with the
// new machine. The kernel it builds is stored in *kp when kp is non-nil.
func (c Config) Setup(kp **kernel.Kernel) func(hal.Machine) (hal.Boot, error) {
	return func(m hal.Machine) (hal.Boot, error) {
		kc, err := c.Kernel()
		if err != nil {
			return nil, err
		}
		if c.Args.Quiet {
			kc.Logger = quietLogger{}
		}
		k, err := kernel.New(m, kc)
		if err != nil {
			return nil, err
		}
		if kp != nil {
			*kp = k
		}
		return k.Start, nil
	}
}

type quietLogger struct{}

func (quietLogger) WriteLineString(string) {}
func (quietLogger) WriteLineBytes([]byte)  {}
