//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Boot is the reset entry of every hart. It starts in machine mode.
type Boot func(h Hart)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	// Ticks stops the machine once mtime reaches it (0 = run until halt).
	Ticks uint64
	// Poll is how often the watcher checks the tick limit.
	Poll time.Duration
}

// Run starts every hart at boot and blocks until the machine halts.
//
// It returns nil when the tick limit stops the machine, ctx.Err() when ctx
// is cancelled, and a *HaltError when a hart halted it.
func Run(ctx context.Context, m Machine, boot Boot, cfg HeadlessConfig) error {
	hm, ok := m.(*hostMachine)
	if !ok {
		return fmt.Errorf("hal: cannot run %T", m)
	}
	if cfg.Poll <= 0 {
		cfg.Poll = time.Millisecond
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range hm.harts {
		h := h
		g.Go(func() error {
			h.run(boot)
			return hm.haltErr()
		})
	}
	g.Go(func() error {
		return hm.watch(ctx, gctx, cfg)
	})
	err := g.Wait()
	hm.wg.Wait()
	if err == nil {
		// a context goroutine may have halted the machine after every
		// hart had already unwound.
		err = hm.haltErr()
	}
	return err
}

const stopReason = "stopped by host"

// haltErr is the machine's halt error, or nil while it runs or when the
// host stopped it.
func (m *hostMachine) haltErr() error {
	err := m.Err()
	var he *HaltError
	if errors.As(err, &he) && he.Hart < 0 && he.Reason == stopReason {
		return nil
	}
	return err
}

// watch stops the machine at the tick limit or when ctx is cancelled. It
// returns ctx.Err() only when the cancellation is what stopped the machine.
func (m *hostMachine) watch(ctx, gctx context.Context, cfg HeadlessConfig) error {
	t := time.NewTicker(cfg.Poll)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return nil
		case <-gctx.Done():
			m.Halt(-1, stopReason)
			if m.haltErr() == nil {
				return ctx.Err()
			}
			return nil
		case <-t.C:
			if cfg.Ticks > 0 && m.clock.now() >= cfg.Ticks {
				m.Halt(-1, stopReason)
			}
		}
	}
}

// RunHeadless builds a machine from cfg and runs it without a window.
func RunHeadless(ctx context.Context, mc Config, setup func(Machine) (Boot, error), cfg HeadlessConfig) error {
	m, err := New(mc)
	if err != nil {
		return err
	}
	boot, err := setup(m)
	if err != nil {
		return err
	}
	return Run(ctx, m, boot, cfg)
}
