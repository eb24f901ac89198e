//go:build !tinygo && !cgo

package hal

import (
	"context"
	"errors"
)

func RunWindow(_ context.Context, _ Config, _ func(Machine) (Boot, error), _ HeadlessConfig) error {
	return errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")
}
