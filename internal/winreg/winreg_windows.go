//go:build windows

package winreg

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

// windowsRegistry reads and writes HKEY_LOCAL_MACHINE.
type windowsRegistry struct{}

// New returns the native registry backend.
func New() (Registry, error) {
	return &windowsRegistry{}, nil
}

func (r *windowsRegistry) Subkeys(path string) ([]string, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, mapRegistryError(err)
	}
	defer k.Close()

	names, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, mapRegistryError(err)
	}
	return names, nil
}

func (r *windowsRegistry) ReadString(path, name string) (string, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.QUERY_VALUE)
	if err != nil {
		return "", mapRegistryError(err)
	}
	defer k.Close()

	v, _, err := k.GetStringValue(name)
	if err != nil {
		return "", mapRegistryError(err)
	}
	return v, nil
}

func (r *windowsRegistry) ReadDWord(path, name string) (uint32, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.QUERY_VALUE)
	if err != nil {
		return 0, mapRegistryError(err)
	}
	defer k.Close()

	v, _, err := k.GetIntegerValue(name)
	if err != nil {
		return 0, mapRegistryError(err)
	}
	return uint32(v), nil
}

func (r *windowsRegistry) SetDWord(path, name string, value uint32) error {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.SET_VALUE)
	if err != nil {
		return mapRegistryError(err)
	}
	defer k.Close()

	if err := k.SetDWordValue(name, value); err != nil {
		return mapRegistryError(err)
	}
	return nil
}

// mapRegistryError translates platform errors to the package sentinels.
// Only ERROR_ACCESS_DENIED becomes ErrAccessDenied; any other failure
// surfaces as-is so callers treat it as a hard error. Missing keys,
// missing values, and unexpected value types all collapse to ErrNotExist.
func mapRegistryError(err error) error {
	if errors.Is(err, registry.ErrNotExist) || errors.Is(err, registry.ErrUnexpectedType) {
		return ErrNotExist
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && errno == windows.ERROR_ACCESS_DENIED {
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	return err
}
