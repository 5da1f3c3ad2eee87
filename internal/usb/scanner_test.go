package usb

import (
	"context"
	"testing"

	"github.com/nerrad567/usbflow-core/internal/winreg"
)

const testRoot = `SYSTEM\CurrentControlSet\Enum\USB`

// seedDevice creates a device instance with a parameters node and
// returns the parameters path.
func seedDevice(m *winreg.MemRegistry, instance string, values map[string]string, power *uint32) string {
	parent := testRoot + `\` + instance
	params := parent + `\Device Parameters`
	m.SeedKey(params)
	for name, v := range values {
		m.SeedString(parent, name, v)
	}
	if power != nil {
		m.SeedDWord(params, PowerValueName, *power)
	}
	return params
}

func uint32p(v uint32) *uint32 { return &v }

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"indirect resource string", "@oem73.inf,%k_usb%;Generic USB Hub", "Generic USB Hub"},
		{"whitespace only", "   ", ""},
		{"leading marker", "@Foo", "Foo"},
		{"plain value", "USB Composite Device", "USB Composite Device"},
		{"padded", "  Root Hub  ", "Root Hub"},
		{"semicolon with padding", "%x%; Padded Tail ", "Padded Tail"},
		{"empty tail falls back to marker strip", "@abc;", "abc;"},
		{"semicolon only", ";", ";"},
		{"stacked markers", "@@Foo", "Foo"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveDescriptionFallback(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   string
	}{
		{
			name: "friendly name wins",
			values: map[string]string{
				"FriendlyName":          "My Keyboard",
				"BusReportedDeviceDesc": "Bus Desc",
				"DeviceDesc":            "Generic Desc",
			},
			want: "My Keyboard",
		},
		{
			name: "bus description second",
			values: map[string]string{
				"BusReportedDeviceDesc": "Bus Desc",
				"DeviceDesc":            "Generic Desc",
			},
			want: "Bus Desc",
		},
		{
			name:   "device description third",
			values: map[string]string{"DeviceDesc": "Generic Desc"},
			want:   "Generic Desc",
		},
		{
			name:   "all absent",
			values: nil,
			want:   UnknownDescription,
		},
		{
			name: "empty cleaned value falls through",
			values: map[string]string{
				"FriendlyName": "   ",
				"DeviceDesc":   "@oem1.inf,%desc%;Actual Device",
			},
			want: "Actual Device",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := winreg.NewMem()
			params := seedDevice(m, `VID_1\1`, tt.values, nil)
			s := NewScanner(m, testRoot)

			devices, _, err := s.Scan(context.Background())
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if len(devices) != 1 {
				t.Fatalf("got %d devices, want 1", len(devices))
			}
			if devices[0].Path != params {
				t.Errorf("path = %q, want %q", devices[0].Path, params)
			}
			if devices[0].Description != tt.want {
				t.Errorf("description = %q, want %q", devices[0].Description, tt.want)
			}
		})
	}
}

func TestResolveTypeFallback(t *testing.T) {
	tests := []struct {
		name     string
		instance string
		values   map[string]string
		want     string
	}{
		{"class wins", `VID_1&PID_1\a`, map[string]string{"Class": "HIDClass", "Service": "usbhub"}, "HIDClass"},
		{"service second", `VID_1&PID_1\b`, map[string]string{"Service": "usbhub"}, "usbhub"},
		{"hid heuristic", `HID_DEVICE\c`, nil, "HID"},
		{"vendor marker heuristic", `VID_2&PID_9\d`, nil, "USB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := winreg.NewMem()
			seedDevice(m, tt.instance, tt.values, nil)
			s := NewScanner(m, testRoot)

			devices, _, err := s.Scan(context.Background())
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if len(devices) != 1 {
				t.Fatalf("got %d devices, want 1", len(devices))
			}
			if devices[0].Type != tt.want {
				t.Errorf("type = %q, want %q", devices[0].Type, tt.want)
			}
		})
	}
}

func TestResolveTypeOther(t *testing.T) {
	m := winreg.NewMem()
	// A parameters node outside any vendor-marked key.
	path := `SYSTEM\CurrentControlSet\Enum\OTHERBUS\DEV\1\Device Parameters`
	m.SeedKey(path)
	s := NewScanner(m, `SYSTEM\CurrentControlSet\Enum\OTHERBUS`)

	devices, _, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(devices) != 1 || devices[0].Type != "Other" {
		t.Fatalf("devices = %+v, want one record with type Other", devices)
	}
}

func TestScanPowerTriState(t *testing.T) {
	m := winreg.NewMem()
	seedDevice(m, `VID_1\disabled`, map[string]string{"FriendlyName": "A"}, uint32p(0))
	seedDevice(m, `VID_1\enabled`, map[string]string{"FriendlyName": "B"}, uint32p(1))
	seedDevice(m, `VID_1\unset`, map[string]string{"FriendlyName": "C"}, nil)

	s := NewScanner(m, testRoot)
	devices, _, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}

	want := []PowerState{PowerDisabled, PowerEnabled, PowerUnavailable}
	for i, w := range want {
		if devices[i].Power != w {
			t.Errorf("device %q power = %q, want %q", devices[i].Description, devices[i].Power, w)
		}
	}
	if !devices[0].SleepDisabled() {
		t.Error("disabled device must report SleepDisabled")
	}
	if devices[1].SleepDisabled() || devices[2].SleepDisabled() {
		t.Error("only the disabled device may report SleepDisabled")
	}
}

func TestEnumerateIdempotentAndOrderStable(t *testing.T) {
	m := winreg.NewMem()
	seedDevice(m, `VID_B\2`, nil, nil)
	seedDevice(m, `VID_A\1`, nil, nil)
	seedDevice(m, `VID_C\3`, nil, nil)

	s := NewScanner(m, testRoot)
	first, _, err := s.EnumeratePaths(context.Background())
	if err != nil {
		t.Fatalf("EnumeratePaths: %v", err)
	}
	second, _, err := s.EnumeratePaths(context.Background())
	if err != nil {
		t.Fatalf("EnumeratePaths: %v", err)
	}

	if len(first) != 3 {
		t.Fatalf("got %d paths, want 3", len(first))
	}
	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("path[%d] differs between runs: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestEnumerateDeniedSubtreeContributesZeroPaths(t *testing.T) {
	m := winreg.NewMem()
	seedDevice(m, `VID_OPEN\1`, nil, nil)
	seedDevice(m, `VID_LOCKED\1`, nil, nil)
	m.Deny(testRoot + `\VID_LOCKED`)

	s := NewScanner(m, testRoot)
	paths, denied, err := s.EnumeratePaths(context.Background())
	if err != nil {
		t.Fatalf("EnumeratePaths: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("got %d paths, want 1 (denied subtree must contribute zero)", len(paths))
	}
	if denied != 1 {
		t.Errorf("denied = %d, want 1", denied)
	}
}

func TestScanMissingRootYieldsEmpty(t *testing.T) {
	s := NewScanner(winreg.NewMem(), testRoot)
	devices, _, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("got %d devices, want 0", len(devices))
	}
}

func TestScanSortedByDescriptionThenPath(t *testing.T) {
	m := winreg.NewMem()
	seedDevice(m, `VID_2\z`, map[string]string{"FriendlyName": "zeta"}, nil)
	seedDevice(m, `VID_1\a`, map[string]string{"FriendlyName": "Alpha"}, nil)
	seedDevice(m, `VID_3\m`, map[string]string{"FriendlyName": "alpha"}, nil)

	s := NewScanner(m, testRoot)
	devices, _, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}

	// Case-insensitive by description, path breaks the Alpha/alpha tie.
	if devices[0].Path >= devices[1].Path {
		t.Errorf("tie not broken by path: %q then %q", devices[0].Path, devices[1].Path)
	}
	if devices[2].Description != "zeta" {
		t.Errorf("last device = %q, want zeta", devices[2].Description)
	}
}

func TestScanCancelled(t *testing.T) {
	m := winreg.NewMem()
	seedDevice(m, `VID_1\1`, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner(m, testRoot)
	if _, _, err := s.Scan(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}
