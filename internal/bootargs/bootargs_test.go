package bootargs

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	got, err := Parse(`harts=4 quantum=0x1000 mem=131072 init=init fault=skip clock=step boot="spin, hello" require=">= 0.3" quiet`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := Args{
		Harts:   4,
		Quantum: 0x1000,
		Mem:     131072,
		Init:    "init",
		Fault:   "skip",
		Clock:   "step",
		Boot:    []string{"spin", "hello"},
		Quiet:   true,
		Require: ">= 0.3",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParseEmpty(t *testing.T) {
	got, err := Parse("   ")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual(got, Args{}) {
		t.Fatalf("Parse() = %+v, want zero", got)
	}
}

func TestParseQuotedValue(t *testing.T) {
	got, err := Parse(`init='my init'`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got.Init != "my init" {
		t.Fatalf("Init = %q, want %q", got.Init, "my init")
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		"harts=0",
		"harts=x",
		"quantum=0",
		"mem=-1",
		"fault=panic",
		"clock=fast",
		"init=",
		"bogus=1",
		"quiet=maybe",
		"require=",
		`init="unterminated`,
	} {
		if _, err := Parse(in); !errors.Is(err, ErrSyntax) {
			t.Fatalf("Parse(%q) error = %v, want ErrSyntax", in, err)
		}
	}
}
