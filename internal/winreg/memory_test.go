package winreg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const devParams = `SYSTEM\CurrentControlSet\Enum\USB\VID_1234&PID_0001\5&abc\Device Parameters`

func TestMemRegistryReadString(t *testing.T) {
	m := NewMem()
	m.SeedString(devParams, "FriendlyName", "Test Hub")

	v, err := m.ReadString(devParams, "FriendlyName")
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if v != "Test Hub" {
		t.Errorf("value = %q, want %q", v, "Test Hub")
	}

	if _, err := m.ReadString(devParams, "Missing"); !errors.Is(err, ErrNotExist) {
		t.Errorf("missing value: err = %v, want ErrNotExist", err)
	}
	if _, err := m.ReadString(`SYSTEM\Nope`, "FriendlyName"); !errors.Is(err, ErrNotExist) {
		t.Errorf("missing key: err = %v, want ErrNotExist", err)
	}
}

func TestMemRegistryCaseInsensitive(t *testing.T) {
	m := NewMem()
	m.SeedDWord(devParams, "EnhancedPowerManagementEnabled", 1)

	upper := `SYSTEM\CURRENTCONTROLSET\ENUM\USB\VID_1234&PID_0001\5&ABC\DEVICE PARAMETERS`
	v, err := m.ReadDWord(upper, "enhancedpowermanagementenabled")
	if err != nil {
		t.Fatalf("ReadDWord via upper-case path: %v", err)
	}
	if v != 1 {
		t.Errorf("value = %d, want 1", v)
	}
}

func TestMemRegistrySubkeys(t *testing.T) {
	m := NewMem()
	root := `SYSTEM\CurrentControlSet\Enum\USB`
	m.SeedKey(root + `\VID_B`)
	m.SeedKey(root + `\VID_A`)
	m.SeedKey(root + `\VID_C`)

	names, err := m.Subkeys(root)
	if err != nil {
		t.Fatalf("Subkeys: %v", err)
	}
	want := []string{"VID_A", "VID_B", "VID_C"}
	if len(names) != len(want) {
		t.Fatalf("got %d subkeys, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("subkey[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestMemRegistryDeniedSubtree(t *testing.T) {
	m := NewMem()
	root := `SYSTEM\CurrentControlSet\Enum\USB`
	locked := root + `\VID_LOCKED`
	m.SeedString(locked+`\1\Device Parameters`, "FriendlyName", "Hidden")
	m.Deny(locked)

	if _, err := m.Subkeys(locked); !IsAccessDenied(err) {
		t.Errorf("Subkeys(denied): err = %v, want access denied", err)
	}
	if _, err := m.ReadString(locked+`\1\Device Parameters`, "FriendlyName"); !IsAccessDenied(err) {
		t.Errorf("read below denied key: err = %v, want access denied", err)
	}

	// The parent is still enumerable; only the denied subtree is opaque.
	if _, err := m.Subkeys(root); err != nil {
		t.Errorf("Subkeys(root): %v", err)
	}

	m.Allow(locked)
	if _, err := m.ReadString(locked+`\1\Device Parameters`, "FriendlyName"); err != nil {
		t.Errorf("read after Allow: %v", err)
	}
}

func TestMemRegistrySetDWord(t *testing.T) {
	m := NewMem()
	m.SeedKey(devParams)

	if err := m.SetDWord(devParams, "EnhancedPowerManagementEnabled", 0); err != nil {
		t.Fatalf("SetDWord: %v", err)
	}
	v, err := m.ReadDWord(devParams, "EnhancedPowerManagementEnabled")
	if err != nil {
		t.Fatalf("ReadDWord: %v", err)
	}
	if v != 0 {
		t.Errorf("value = %d, want 0", v)
	}

	if err := m.SetDWord(`SYSTEM\Nope`, "X", 1); !errors.Is(err, ErrNotExist) {
		t.Errorf("SetDWord on missing key: err = %v, want ErrNotExist", err)
	}

	m.Deny(devParams)
	err = m.SetDWord(devParams, "EnhancedPowerManagementEnabled", 1)
	if !IsAccessDenied(err) {
		t.Errorf("SetDWord on denied key: err = %v, want access denied", err)
	}
}

func TestIsAccessDeniedNarrow(t *testing.T) {
	if IsAccessDenied(ErrNotExist) {
		t.Error("ErrNotExist must not classify as access denied")
	}
	if IsAccessDenied(errors.New("some transient failure")) {
		t.Error("arbitrary errors must not classify as access denied")
	}
	if !IsAccessDenied(ErrAccessDenied) {
		t.Error("ErrAccessDenied must classify as access denied")
	}
}

func TestLoadFixture(t *testing.T) {
	fixture := `
keys:
  'SYSTEM\CurrentControlSet\Enum\USB\VID_1234&PID_0001\5&abc\Device Parameters':
    strings:
      FriendlyName: Fixture Hub
    dwords:
      EnhancedPowerManagementEnabled: 1
  'SYSTEM\CurrentControlSet\Enum\USB\VID_LOCKED':
    deny: true
`
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	v, err := m.ReadString(devParams, "FriendlyName")
	if err != nil || v != "Fixture Hub" {
		t.Errorf("FriendlyName = %q, %v; want %q, nil", v, err, "Fixture Hub")
	}
	d, err := m.ReadDWord(devParams, "EnhancedPowerManagementEnabled")
	if err != nil || d != 1 {
		t.Errorf("EnhancedPowerManagementEnabled = %d, %v; want 1, nil", d, err)
	}
	if _, err := m.Subkeys(`SYSTEM\CurrentControlSet\Enum\USB\VID_LOCKED`); !IsAccessDenied(err) {
		t.Errorf("denied fixture key: err = %v, want access denied", err)
	}

	if _, err := LoadFixture(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing fixture file")
	}
}
