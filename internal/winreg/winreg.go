// Package winreg provides access to the per-machine device-registration
// registry tree that holds USB device power-management configuration.
//
// The Registry interface abstracts the platform registry so the scanner
// and mutation executor can be exercised against an in-memory tree in
// tests and on non-Windows development hosts. The production backend
// (build tag windows) reads and writes HKEY_LOCAL_MACHINE through
// golang.org/x/sys/windows/registry.
//
// All paths are relative to HKEY_LOCAL_MACHINE and use backslash
// separators, matching the platform convention. Lookups are
// case-insensitive, as on the real registry.
package winreg

import "errors"

// Sentinel errors returned by Registry implementations.
var (
	// ErrNotExist indicates a key or value is absent, or a value has an
	// unexpected type. Callers treat this as "no data", not a failure.
	ErrNotExist = errors.New("winreg: key or value does not exist")

	// ErrAccessDenied indicates the platform denied access to a key.
	// Enumeration treats this as an empty subtree; writes treat it as
	// "elevation required".
	ErrAccessDenied = errors.New("winreg: access denied")

	// ErrPlatformUnsupported is returned by New on hosts without a native
	// registry. The memory backend remains available everywhere.
	ErrPlatformUnsupported = errors.New("winreg: platform registry not supported on this OS")
)

// Registry is the minimal registry surface the application needs:
// subtree enumeration, typed value reads, and a single DWORD write.
type Registry interface {
	// Subkeys returns the names of the direct child keys of path.
	Subkeys(path string) ([]string, error)

	// ReadString reads a string value. Returns ErrNotExist when the key or
	// value is missing or the value is not a string type.
	ReadString(path, name string) (string, error)

	// ReadDWord reads an integer value. Returns ErrNotExist when the key or
	// value is missing or the value is not an integer type.
	ReadDWord(path, name string) (uint32, error)

	// SetDWord writes an integer value, creating the value if absent.
	// The key itself must already exist.
	SetDWord(path, name string, value uint32) error
}

// IsAccessDenied reports whether err represents the platform's
// access-denied condition. The mapping is deliberately narrow: only the
// exact platform error code is classified this way, and every other
// failure is treated as a hard error by callers.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}
