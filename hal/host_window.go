//go:build !tinygo && cgo

package hal

import (
	"context"
	"fmt"
	"strings"

	"hartcore/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	windowWidth  = 640
	windowHeight = 400
	windowLines  = 22
)

// RunWindow runs the machine behind a desktop console that shows the UART
// and per-hart state and forwards typed characters to the UART.
// It blocks until the window closes or the machine halts.
func RunWindow(ctx context.Context, mc Config, setup func(Machine) (Boot, error), cfg HeadlessConfig) error {
	m, err := New(mc)
	if err != nil {
		return err
	}
	boot, err := setup(m)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- Run(ctx, m, boot, cfg) }()

	g := &hostConsole{m: m.(*hostMachine)}
	ebiten.SetWindowTitle("hartcore (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(windowWidth*2, windowHeight*2)
	ebiten.SetTPS(60)
	if err := ebiten.RunGame(g); err != nil && err != ebiten.Termination {
		cancel()
		<-runErr
		return err
	}
	cancel()
	return <-runErr
}

type hostConsole struct {
	m *hostMachine
}

func (g *hostConsole) Update() error {
	select {
	case <-g.m.done:
		return ebiten.Termination
	default:
	}

	var in []byte
	for _, r := range ebiten.AppendInputChars(nil) {
		if r < 0x80 {
			in = append(in, byte(r))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		in = append(in, '\r')
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		in = append(in, 0x7f)
	}
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	if ctrl {
		if inpututil.IsKeyJustPressed(ebiten.KeyD) {
			in = append(in, 0x04)
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyP) {
			in = append(in, 0x10)
		}
	}
	if len(in) > 0 {
		g.m.Input(in)
	}
	return nil
}

func (g *hostConsole) Draw(screen *ebiten.Image) {
	var b strings.Builder
	for _, h := range g.m.harts {
		fmt.Fprintf(&b, "hart%d %s steps=%d traps=%d\n",
			h.id, Privilege(h.privView.Load()), h.steps.Load(), h.traps.Load())
	}
	fmt.Fprintf(&b, "mtime=%d\n\n", g.m.clock.now())

	lines := screenLines(g.m.uart.scrollback())
	if len(lines) > windowLines {
		lines = lines[len(lines)-windowLines:]
	}
	b.WriteString(strings.Join(lines, "\n"))
	ebitenutil.DebugPrint(screen, b.String())
}

func (g *hostConsole) Layout(outsideWidth, outsideHeight int) (int, int) {
	return windowWidth, windowHeight
}
