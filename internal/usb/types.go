package usb

import "strings"

// PowerValueName is the registry value controlling selective suspend for
// a device instance: 0 means sleep is disabled, 1 means enabled.
const PowerValueName = "EnhancedPowerManagementEnabled"

// deviceParametersLeaf is the reserved node name, compared case-insensitively,
// that marks a device's parameter subtree.
const deviceParametersLeaf = "device parameters"

// UnknownDescription is used when every description fallback is empty.
const UnknownDescription = "Unknown USB device"

// PowerState is the tri-state value of a device's power flag.
type PowerState string

const (
	// PowerDisabled means the flag is 0: the OS may not suspend the device.
	PowerDisabled PowerState = "disabled"
	// PowerEnabled means the flag is 1: power saving is active.
	PowerEnabled PowerState = "enabled"
	// PowerUnavailable means the value is absent or not an integer.
	PowerUnavailable PowerState = "unavailable"
)

// Rank orders power states for sorting: disabled < enabled < unavailable.
func (p PowerState) Rank() int {
	switch p {
	case PowerDisabled:
		return 0
	case PowerEnabled:
		return 1
	default:
		return 2
	}
}

// Device is an immutable record describing one discovered device
// parameter node. Metadata fields are resolved through fallback chains
// and are never empty unless the whole chain was empty.
type Device struct {
	// Path is the device parameters key, relative to HKEY_LOCAL_MACHINE.
	// Unique within one snapshot.
	Path string `json:"path"`

	// ParentPath is the device instance key one level up.
	ParentPath string `json:"parent_path"`

	Description  string     `json:"description"`
	Manufacturer string     `json:"manufacturer"`
	Type         string     `json:"type"`
	Power        PowerState `json:"power"`
}

// SleepDisabled reports whether the device's power saving is switched
// off. Only meaningful when Power is not PowerUnavailable.
func (d Device) SleepDisabled() bool {
	return d.Power == PowerDisabled
}

// SortMode selects the comparator applied by Store.Query.
type SortMode string

const (
	// SortDescription orders by description then path, both lowercased.
	// This is the scanner's canonical order.
	SortDescription SortMode = "description"
	// SortDescriptionDesc is SortDescription reversed.
	SortDescriptionDesc SortMode = "description_desc"
	// SortPower orders by power-state rank, description as tie-break.
	SortPower SortMode = "power"
	// SortType orders by type, description as tie-break.
	SortType SortMode = "type"
	// SortManufacturer orders by manufacturer, description as tie-break.
	SortManufacturer SortMode = "manufacturer"
)

// ParseSortMode maps a request parameter to a SortMode, defaulting to
// SortDescription for empty or unknown input.
func ParseSortMode(s string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case SortDescriptionDesc:
		return SortDescriptionDesc
	case SortPower:
		return SortPower
	case SortType:
		return SortType
	case SortManufacturer:
		return SortManufacturer
	default:
		return SortDescription
	}
}

// Logger is the logging interface used throughout the package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
