package userland

import (
	"bytes"
	"sort"

	"hartcore/kernel"
)

// Programs returns the builtin program table, keyed by the names spawn
// accepts.
func Programs() map[string]kernel.Program {
	return map[string]kernel.Program{
		"init":    Init,
		"hello":   Hello,
		"counter": Counter,
		"echo":    Echo,
		"spin":    Spin,
		"fault":   Fault,
		"pipe":    PipeTest,
	}
}

// Names returns the builtin program names in order.
func Names() []string {
	var names []string
	for name := range Programs() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InitChildren are the programs init starts.
var InitChildren = []string{"hello", "counter", "echo"}

// Init starts InitChildren and then reaps children forever, including
// orphans handed to it.
func Init(u *kernel.User) {
	for _, name := range InitChildren {
		if pid := Spawn(u, name); pid < 0 {
			Printf(u, "init: spawn %s failed\n", name)
		}
	}
	for {
		pid, status := Wait(u)
		if pid < 0 {
			Sleep(u, 10)
			continue
		}
		Printf(u, "init: pid %d exited with status %d\n", pid, status)
	}
}

// Hello says hello.
func Hello(u *kernel.User) {
	Printf(u, "hello from pid %d on hart %d\n", Getpid(u), u.Hart())
}

// counterRounds of counterWork instructions each span several quanta.
const (
	counterRounds = 5
	counterWork   = 20_000
)

// Counter computes across several quanta, sleeping between rounds.
func Counter(u *kernel.User) {
	pid := Getpid(u)
	for i := 1; i <= counterRounds; i++ {
		u.Step(counterWork)
		Printf(u, "counter %d: round %d on hart %d, uptime %d\n", pid, i, u.Hart(), Uptime(u))
		Sleep(u, 1)
	}
}

// Echo copies console lines back until end of file.
func Echo(u *kernel.User) {
	Print(u, "echo: type a line, ^D to stop\n")
	for {
		line := Read(u, Stdin, 128)
		if len(line) == 0 {
			Print(u, "echo: bye\n")
			return
		}
		Write(u, Stdout, append([]byte("echo: "), line...))
	}
}

// Spin burns CPU forever.
func Spin(u *kernel.User) {
	for {
		u.Step(1000)
	}
}

// Fault touches memory past the end of its address space.
func Fault(u *kernel.User) {
	Printf(u, "fault: pid %d loading from %#x\n", Getpid(u), u.MemSize()+0x1000)
	u.Load(u.MemSize() + 0x1000)
	Print(u, "fault: still running\n")
}

// PipeTest sends a message through a pipe to itself.
func PipeTest(u *kernel.User) {
	r, w, err := Pipe(u)
	if err != nil {
		Printf(u, "pipe: %v\n", err)
		Exit(u, 1)
	}
	msg := []byte("ping")
	if n := Write(u, w, msg); n != len(msg) {
		Printf(u, "pipe: write = %d\n", n)
		Exit(u, 1)
	}
	Close(u, w)
	got := Read(u, r, 64)
	Close(u, r)
	if !bytes.Equal(got, msg) {
		Printf(u, "pipe: read %q, want %q\n", got, msg)
		Exit(u, 1)
	}
	Print(u, "pipe: ok\n")
}
