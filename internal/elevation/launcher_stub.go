//go:build !windows

package elevation

import (
	"context"
	"errors"
)

// ErrLauncherUnsupported is returned on hosts that cannot raise an OS
// elevation prompt. Development deployments pair the memory registry
// backend with a launcher that always fails this way.
var ErrLauncherUnsupported = errors.New("elevation: privileged helper not supported on this OS")

type unsupportedLauncher struct{}

// NewLauncher returns a launcher whose Launch always fails with
// ErrLauncherUnsupported.
func NewLauncher() (Launcher, error) {
	return unsupportedLauncher{}, nil
}

func (unsupportedLauncher) Launch(context.Context, string) error {
	return ErrLauncherUnsupported
}
