//go:build !tinygo && !cgo

package hal

import (
	"context"
	"errors"
)

func RunWindow(context.Context, HostConfig, Kernel) (int, error) {
	return 0, errors.New("window mode requires cgo (build/run with CGO_ENABLED=1), or use -headless")
}
