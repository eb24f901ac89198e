//go:build !tinygo

// Command hctrace boots the system headless on the step clock and prints
// the kernel's event log: process state transitions, boot steps and,
// optionally, classified traps.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"hartcore/app"
	"hartcore/hal"
	"hartcore/kernel"
)

const (
	defaultTicks     = 2_000_000
	defaultMaxEvents = 100_000
)

type options struct {
	cmdline   string
	outPath   string
	ticks     uint64
	maxEvents int
	traps     bool
}

// eventLog keeps events in memory; the trace hook runs with kernel locks
// held, so nothing is written out until the machine stops.
type eventLog struct {
	mu      sync.Mutex
	max     int
	traps   bool
	events  []kernel.Event
	dropped int
}

func (l *eventLog) record(e kernel.Event) {
	if e.Kind == kernel.EvTrap && !l.traps {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) >= l.max {
		l.dropped++
		return
	}
	l.events = append(l.events, e)
}

func main() {
	var o options
	flag.StringVar(&o.cmdline, "bootargs", "", "Kernel command line.")
	flag.StringVar(&o.outPath, "out", "-", "Event log path (- for stdout).")
	flag.Uint64Var(&o.ticks, "ticks", defaultTicks, "Stop once mtime reaches N ticks.")
	flag.IntVar(&o.maxEvents, "max", defaultMaxEvents, "Keep at most N events.")
	flag.BoolVar(&o.traps, "traps", false, "Include trap events.")
	flag.Parse()

	if o.ticks == 0 {
		fmt.Fprintln(os.Stderr, "error: -ticks must be positive")
		os.Exit(2)
	}
	if o.maxEvents <= 0 {
		fmt.Fprintln(os.Stderr, "error: -max must be positive")
		os.Exit(2)
	}

	if err := run(o); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(o options) error {
	sys, err := app.Parse(o.cmdline)
	if err != nil {
		return err
	}
	sys.Args.Clock = "step"
	sys.Args.Quiet = true

	log := &eventLog{max: o.maxEvents, traps: o.traps}
	sys.Trace = log.record

	mc := sys.Machine()
	mc.Output = io.Discard
	logger := hal.NewLogger(os.Stderr)
	mc.Logger = logger

	runErr := hal.RunHeadless(context.Background(), mc, sys.Setup(nil), hal.HeadlessConfig{Ticks: o.ticks})

	var out io.Writer = os.Stdout
	if o.outPath != "-" {
		f, err := os.Create(o.outPath)
		if err != nil {
			return fmt.Errorf("create %q: %w", o.outPath, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	w := bufio.NewWriter(out)
	for _, e := range log.events {
		fmt.Fprintln(w, format(e))
	}
	if log.dropped > 0 {
		fmt.Fprintf(w, "# %d events dropped\n", log.dropped)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %q: %w", o.outPath, err)
	}

	var he *hal.HaltError
	if errors.As(runErr, &he) {
		app.ReportHalt(logger, runErr)
	}
	return runErr
}

func format(e kernel.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "hart%d %-5s", e.Hart, e.Kind)
	switch e.Kind {
	case kernel.EvState:
		fmt.Fprintf(&b, " pid %d %s -> %s", e.Pid, strings.TrimSpace(e.From.String()), strings.TrimSpace(e.To.String()))
	case kernel.EvBoot:
		fmt.Fprintf(&b, " %s", e.Step)
	case kernel.EvTrap:
		where := "kernel"
		if e.User {
			where = "user"
		}
		fmt.Fprintf(&b, " pid %d %s from %s", e.Pid, e.Cause, where)
	}
	return b.String()
}
