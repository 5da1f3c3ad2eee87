package usb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/nerrad567/usbflow-core/internal/winreg"
)

// Scanner walks the USB device-enumeration tree and produces device
// records with resolved metadata. A scan never fails because of one
// restricted branch: denied subtrees contribute zero paths and are
// counted in ScanStats instead.
type Scanner struct {
	reg    winreg.Registry
	root   string
	logger Logger
}

// ScanStats summarises one scan pass for logging and telemetry.
type ScanStats struct {
	Devices        int           `json:"devices"`
	DeniedSubtrees int           `json:"denied_subtrees"`
	Duration       time.Duration `json:"duration"`
}

// NewScanner creates a scanner over reg rooted at root.
func NewScanner(reg winreg.Registry, root string) *Scanner {
	return &Scanner{
		reg:    reg,
		root:   root,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the scanner.
func (s *Scanner) SetLogger(logger Logger) {
	s.logger = logger
}

// EnumeratePaths walks the tree iteratively and returns every key whose
// leaf name is the device parameters node, compared case-insensitively.
// The result is deterministic for an unchanged tree: children are
// visited in sorted order. The only error returned is context
// cancellation; unreadable subtrees are skipped.
func (s *Scanner) EnumeratePaths(ctx context.Context) ([]string, int, error) {
	var (
		paths  []string
		denied int
	)

	stack := []string{s.root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, denied, err
		}

		path := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if leafName(path) == deviceParametersLeaf {
			paths = append(paths, path)
		}

		children, err := s.reg.Subkeys(path)
		if err != nil {
			if winreg.IsAccessDenied(err) {
				denied++
				s.logger.Debug("subtree access denied", "path", path)
			} else {
				s.logger.Debug("subtree skipped", "path", path, "error", err)
			}
			continue
		}

		// Depth-first with sorted children keeps the walk order-stable.
		sort.Sort(sort.Reverse(sort.StringSlice(children)))
		for _, child := range children {
			stack = append(stack, path+`\`+child)
		}
	}

	return paths, denied, nil
}

// Scan produces one record per discovered device parameters node,
// sorted ascending by (description, path), case-insensitive.
func (s *Scanner) Scan(ctx context.Context) ([]Device, ScanStats, error) {
	start := time.Now()

	paths, denied, err := s.EnumeratePaths(ctx)
	if err != nil {
		return nil, ScanStats{}, err
	}

	devices := make([]Device, 0, len(paths))
	for _, path := range paths {
		parent := parentPath(path)
		devices = append(devices, Device{
			Path:         path,
			ParentPath:   parent,
			Description:  s.resolveDescription(parent),
			Manufacturer: CleanText(s.readString(parent, "Mfg")),
			Type:         s.resolveType(parent, path),
			Power:        s.readPower(path),
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		di, dj := strings.ToLower(devices[i].Description), strings.ToLower(devices[j].Description)
		if di != dj {
			return di < dj
		}
		return strings.ToLower(devices[i].Path) < strings.ToLower(devices[j].Path)
	})

	stats := ScanStats{
		Devices:        len(devices),
		DeniedSubtrees: denied,
		Duration:       time.Since(start),
	}
	s.logger.Debug("scan complete",
		"devices", stats.Devices,
		"denied_subtrees", stats.DeniedSubtrees,
		"duration", stats.Duration,
	)
	return devices, stats, nil
}

// resolveDescription applies the display-name fallback chain on the
// device instance key: FriendlyName, then BusReportedDeviceDesc, then
// DeviceDesc, else UnknownDescription. Empty cleaned values fall
// through to the next candidate.
func (s *Scanner) resolveDescription(parent string) string {
	for _, name := range []string{"FriendlyName", "BusReportedDeviceDesc", "DeviceDesc"} {
		if v := CleanText(s.readString(parent, name)); v != "" {
			return v
		}
	}
	return UnknownDescription
}

// resolveType resolves a coarse device type: Class, then Service, then
// heuristics on the key path, else "Other".
func (s *Scanner) resolveType(parent, path string) string {
	if v := CleanText(s.readString(parent, "Class")); v != "" {
		return v
	}
	if v := CleanText(s.readString(parent, "Service")); v != "" {
		return v
	}
	upper := strings.ToUpper(path)
	if strings.Contains(upper, "HID") {
		return "HID"
	}
	if strings.Contains(upper, "VID_") {
		return "USB"
	}
	return "Other"
}

// readString reads a string value, treating every failure as absence.
func (s *Scanner) readString(path, name string) string {
	v, err := s.reg.ReadString(path, name)
	if err != nil {
		return ""
	}
	return v
}

// readPower reads the power flag as a tri-state. Absent or non-integer
// values are Unavailable, never an error.
func (s *Scanner) readPower(path string) PowerState {
	v, err := s.reg.ReadDWord(path, PowerValueName)
	if err != nil {
		return PowerUnavailable
	}
	if v == 0 {
		return PowerDisabled
	}
	return PowerEnabled
}

// CleanText normalises a raw registry string for display. Whitespace is
// trimmed; a value containing a semicolon keeps only the text after the
// first one (indirect localized-resource strings carry the readable
// part there). When there is no semicolon, or nothing follows it,
// leading "@" markers are stripped from the whole value instead.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.Index(s, ";"); i >= 0 {
		if tail := strings.TrimSpace(s[i+1:]); tail != "" {
			return tail
		}
	}
	return strings.TrimSpace(strings.TrimLeft(s, "@"))
}

// leafName returns the lowercased final path segment.
func leafName(path string) string {
	if i := strings.LastIndex(path, `\`); i >= 0 {
		return strings.ToLower(path[i+1:])
	}
	return strings.ToLower(path)
}

// parentPath returns the key one level up, or "" at the root.
func parentPath(path string) string {
	if i := strings.LastIndex(path, `\`); i >= 0 {
		return path[:i]
	}
	return ""
}
