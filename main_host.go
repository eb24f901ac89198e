//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"hartcore/app"
	"hartcore/hal"
)

func main() {
	var cfg hal.HeadlessConfig
	var cmdline string
	var harts int
	var quantum uint64
	var step bool
	flag.BoolVar(&cfg.Enabled, "headless", false, "Run without a window.")
	flag.Uint64Var(&cfg.Ticks, "ticks", 0, "Stop once mtime reaches N ticks (0 = run forever).")
	flag.StringVar(&cmdline, "bootargs", "", "Kernel command line, e.g. 'harts=4 fault=skip boot=spin'.")
	flag.IntVar(&harts, "harts", 0, "Number of harts (overrides bootargs).")
	flag.Uint64Var(&quantum, "quantum", 0, "Scheduling quantum in mtime ticks (overrides bootargs).")
	flag.BoolVar(&step, "step-clock", false, "Advance mtime per instruction instead of wall time.")
	flag.Parse()

	sys, err := app.Parse(cmdline)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if harts > 0 {
		sys.Args.Harts = harts
	}
	if quantum > 0 {
		sys.Args.Quantum = quantum
	}
	if step {
		sys.Args.Clock = "step"
	}
	mc := sys.Machine()
	logger := hal.NewLogger(os.Stderr)
	mc.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.Enabled {
		err = hal.RunHeadless(ctx, mc, sys.Setup(nil), cfg)
	} else {
		err = hal.RunWindow(ctx, mc, sys.Setup(nil), cfg)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		app.ReportHalt(logger, err)
		os.Exit(1)
	}
}
