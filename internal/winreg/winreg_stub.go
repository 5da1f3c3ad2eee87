//go:build !windows

package winreg

// New returns ErrPlatformUnsupported on hosts without a native registry.
// Callers fall back to the memory backend for development and tests.
func New() (Registry, error) {
	return nil, ErrPlatformUnsupported
}
