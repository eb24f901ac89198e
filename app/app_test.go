package app

import (
	"errors"
	"strings"
	"testing"

	"hartcore/hal"
	"hartcore/internal/bootargs"
	"hartcore/internal/buildinfo"
	"hartcore/kernel"
)

type lineLogger struct {
	lines []string
}

func (l *lineLogger) WriteLineString(s string) { l.lines = append(l.lines, s) }
func (l *lineLogger) WriteLineBytes(b []byte)  { l.lines = append(l.lines, string(b)) }

func TestParseDefaults(t *testing.T) {
	c, err := Parse("")
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}
	mc := c.Machine()
	if mc.Harts != DefaultHarts || mc.Clock != hal.ClockWall {
		t.Fatalf("Machine() = %+v, want %d harts on the wall clock", mc, DefaultHarts)
	}
	kc, err := c.Kernel()
	if err != nil {
		t.Fatalf("Kernel() err = %v", err)
	}
	if kc.Init != DefaultInit || kc.FaultPolicy != kernel.FaultKill || len(kc.Boot) != 0 {
		t.Fatalf("Kernel() = init %q policy %s boot %d", kc.Init, kc.FaultPolicy, len(kc.Boot))
	}
	if _, ok := kc.Programs[DefaultInit]; !ok {
		t.Fatalf("Kernel().Programs has no %q", DefaultInit)
	}
}

func TestParseMapsArgs(t *testing.T) {
	c, err := Parse("harts=3 quantum=0x1000 mem=131072 init=hello fault=skip clock=step boot=spin,pipe quiet")
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}
	mc := c.Machine()
	if mc.Harts != 3 || mc.Clock != hal.ClockStep {
		t.Fatalf("Machine() = %+v, want 3 harts on the step clock", mc)
	}
	kc, err := c.Kernel()
	if err != nil {
		t.Fatalf("Kernel() err = %v", err)
	}
	if kc.Quantum != 0x1000 || kc.UserMemory != 131072 || kc.Init != "hello" || kc.FaultPolicy != kernel.FaultSkip {
		t.Fatalf("Kernel() = quantum %d mem %d init %q policy %s", kc.Quantum, kc.UserMemory, kc.Init, kc.FaultPolicy)
	}
	var names []string
	for _, b := range kc.Boot {
		names = append(names, b.Name)
		if b.Prog == nil {
			t.Fatalf("boot %q has no program", b.Name)
		}
	}
	if got := strings.Join(names, ","); got != "spin,pipe" {
		t.Fatalf("boot = %q, want spin,pipe", got)
	}
	if !c.Args.Quiet {
		t.Fatalf("Quiet = false, want true")
	}
}

func TestParseRejects(t *testing.T) {
	if _, err := Parse("harts=two"); !errors.Is(err, bootargs.ErrSyntax) {
		t.Fatalf("Parse(harts=two) err = %v, want ErrSyntax", err)
	}
	c, err := Parse("boot=nosuch")
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}
	if _, err := c.Kernel(); !errors.Is(err, kernel.ErrNoProgram) {
		t.Fatalf("Kernel() err = %v, want ErrNoProgram", err)
	}
	if _, err := c.Setup(nil)(nil); !errors.Is(err, kernel.ErrNoProgram) {
		t.Fatalf("Setup() err = %v, want ErrNoProgram", err)
	}
}

func TestReportHalt(t *testing.T) {
	var l lineLogger
	long := strings.Repeat("x", reportWidth+20)
	ReportHalt(&l, &hal.HaltError{Hart: 1, Reason: "panic: boom\ngoroutine 7 [running]:\n\n" + long})

	want := []string{
		"hartcore halt:",
		"hart: 1",
		"reason: panic: boom",
		"stack:",
		"goroutine 7 [running]:",
		strings.Repeat("x", reportWidth),
		strings.Repeat("x", 20),
	}
	if len(l.lines) != len(want) {
		t.Fatalf("ReportHalt() lines = %q, want %q", l.lines, want)
	}
	for i := range want {
		if l.lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, l.lines[i], want[i])
		}
	}
}

func TestReportHaltPlainError(t *testing.T) {
	var l lineLogger
	ReportHalt(&l, errors.New("no window"))
	if len(l.lines) != 1 || l.lines[0] != "hartcore: no window" {
		t.Fatalf("ReportHalt() lines = %q", l.lines)
	}
	ReportHalt(&l, nil)
	if len(l.lines) != 1 {
		t.Fatalf("ReportHalt(nil) wrote %q", l.lines[1:])
	}
}

func TestTakeRunes(t *testing.T) {
	prefix, rest := takeRunes("héllo", 2)
	if prefix != "hé" || rest != "llo" {
		t.Fatalf("takeRunes() = %q, %q, want %q, %q", prefix, rest, "hé", "llo")
	}
	if prefix, rest := takeRunes("ab", 5); prefix != "ab" || rest != "" {
		t.Fatalf("takeRunes(short) = %q, %q", prefix, rest)
	}
}

func TestRequire(t *testing.T) {
	old := buildinfo.Version
	buildinfo.Version = "0.2.0"
	t.Cleanup(func() { buildinfo.Version = old })

	c, err := Parse(`require=">= 0.3"`)
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}
	if _, err := c.Kernel(); !errors.Is(err, ErrBuild) {
		t.Fatalf("Kernel() err = %v, want ErrBuild", err)
	}
	c.Args.Require = "~0.2"
	if _, err := c.Kernel(); err != nil {
		t.Fatalf("Kernel() with ~0.2 err = %v", err)
	}
	c.Args.Require = "not a constraint"
	if _, err := c.Kernel(); err == nil || errors.Is(err, ErrBuild) {
		t.Fatalf("Kernel() with bad constraint err = %v, want parse error", err)
	}
}
