//go:build windows

package elevation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// ShellLauncher spawns the helper through the shell's "runas" verb,
// which raises the OS elevation prompt. Launch succeeds when the shell
// reports a handle above its documented failure threshold; it never
// waits for the helper to exit.
type ShellLauncher struct{}

// NewLauncher returns the native helper launcher.
func NewLauncher() (Launcher, error) {
	return &ShellLauncher{}, nil
}

func (l *ShellLauncher) Launch(_ context.Context, script string) error {
	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return fmt.Errorf("encoding verb: %w", err)
	}
	file, err := windows.UTF16PtrFromString(HelperBinary)
	if err != nil {
		return fmt.Errorf("encoding helper binary: %w", err)
	}
	args, err := windows.UTF16PtrFromString(joinHelperArgs(script))
	if err != nil {
		return fmt.Errorf("encoding helper arguments: %w", err)
	}

	// ShellExecute fails for return values <= 32, the platform's
	// launch-failure threshold.
	if err := windows.ShellExecute(0, verb, file, args, nil, windows.SW_HIDE); err != nil {
		var errno syscall.Errno
		if errors.As(err, &errno) && errno == windows.ERROR_CANCELLED {
			return ErrDeclined
		}
		return err
	}
	return nil
}

// joinHelperArgs renders the helper argument vector as a single command
// line. The instruction script is double-quoted as the -Command payload.
func joinHelperArgs(script string) string {
	base := HelperArgs("")
	// Drop the trailing empty -Command payload and append the quoted script.
	fixed := strings.Join(base[:len(base)-1], " ")
	return fixed + ` "` + strings.ReplaceAll(script, `"`, `\"`) + `"`
}
