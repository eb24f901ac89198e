package app

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"hartcore/hal"
)

// reportWidth is where halt report lines are wrapped.
const reportWidth = 100

// ReportHalt logs why the machine stopped. A halt that carries a goroutine
// stack is printed one frame line at a time.
func ReportHalt(l hal.Logger, err error) {
	if l == nil || err == nil {
		return
	}
	var he *hal.HaltError
	if !errors.As(err, &he) {
		l.WriteLineString(fmt.Sprintf("hartcore: %v", err))
		return
	}

	lines := []string{
		"hartcore halt:",
		fmt.Sprintf("hart: %d", he.Hart),
	}
	reason, stack, _ := strings.Cut(he.Reason, "\n")
	lines = append(lines, "reason: "+reason)
	if stack != "" {
		lines = append(lines, "stack:")
		for _, line := range strings.Split(stack, "\n") {
			if line == "" {
				continue
			}
			lines = append(lines, line)
		}
	}

	for _, line := range lines {
		for len(line) > 0 {
			chunk, rest := takeRunes(line, reportWidth)
			l.WriteLineString(chunk)
			line = strings.TrimLeft(rest, " ")
		}
	}
}

func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if len(s) <= n {
		return s, ""
	}
	var i, count int
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
