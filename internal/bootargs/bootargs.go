// Package bootargs parses the kernel command line: shell-quoted key=value
// words such as
//
//	harts=4 quantum=50000 init=init fault=skip boot="spin,spin" require=">= 0.3"
package bootargs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

var ErrSyntax = errors.New("bootargs: syntax error")

// Args holds the recognised settings. Zero values mean "not given".
type Args struct {
	Harts   int
	Quantum uint64
	Mem     int
	Init    string
	Fault   string // "kill" or "skip"
	Clock   string // "wall" or "step"
	Boot    []string
	Quiet   bool
	// Require is a semver constraint the running build must satisfy.
	Require string
}

// Parse tokenises cmdline like a shell and applies each key=value word.
// A bare word is a boolean flag.
func Parse(cmdline string) (Args, error) {
	var a Args
	words, err := shlex.Split(cmdline)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	for _, w := range words {
		key, val, hasVal := strings.Cut(w, "=")
		if err := a.set(key, val, hasVal); err != nil {
			return Args{}, err
		}
	}
	return a, nil
}

func (a *Args) set(key, val string, hasVal bool) error {
	need := func() error {
		if !hasVal || val == "" {
			return fmt.Errorf("%w: %s needs a value", ErrSyntax, key)
		}
		return nil
	}
	switch key {
	case "harts":
		if err := need(); err != nil {
			return err
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: harts=%q", ErrSyntax, val)
		}
		a.Harts = n
	case "quantum":
		if err := need(); err != nil {
			return err
		}
		n, err := strconv.ParseUint(val, 0, 64)
		if err != nil || n == 0 {
			return fmt.Errorf("%w: quantum=%q", ErrSyntax, val)
		}
		a.Quantum = n
	case "mem":
		if err := need(); err != nil {
			return err
		}
		n, err := strconv.ParseInt(val, 0, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: mem=%q", ErrSyntax, val)
		}
		a.Mem = int(n)
	case "init":
		if err := need(); err != nil {
			return err
		}
		a.Init = val
	case "fault":
		if val != "kill" && val != "skip" {
			return fmt.Errorf("%w: fault=%q (want kill or skip)", ErrSyntax, val)
		}
		a.Fault = val
	case "clock":
		if val != "wall" && val != "step" {
			return fmt.Errorf("%w: clock=%q (want wall or step)", ErrSyntax, val)
		}
		a.Clock = val
	case "boot":
		if err := need(); err != nil {
			return err
		}
		for _, name := range strings.Split(val, ",") {
			if name = strings.TrimSpace(name); name != "" {
				a.Boot = append(a.Boot, name)
			}
		}
	case "require":
		if err := need(); err != nil {
			return err
		}
		a.Require = val
	case "quiet":
		if hasVal {
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("%w: quiet=%q", ErrSyntax, val)
			}
			a.Quiet = b
		} else {
			a.Quiet = true
		}
	default:
		return fmt.Errorf("%w: unknown key %q", ErrSyntax, key)
	}
	return nil
}
