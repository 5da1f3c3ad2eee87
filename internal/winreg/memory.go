package winreg

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// MemRegistry is an in-memory Registry used by tests and by the
// "memory" backend on development hosts. Paths and value names are
// case-insensitive, matching the platform registry. Keys can be marked
// denied to simulate access-protected subtrees.
type MemRegistry struct {
	mu   sync.RWMutex
	root *memKey
}

type memKey struct {
	name     string
	children map[string]*memKey
	strings  map[string]string
	dwords   map[string]uint32
	denied   bool
}

func newMemKey(name string) *memKey {
	return &memKey{
		name:     name,
		children: make(map[string]*memKey),
		strings:  make(map[string]string),
		dwords:   make(map[string]uint32),
	}
}

// NewMem returns an empty in-memory registry.
func NewMem() *MemRegistry {
	return &MemRegistry{root: newMemKey("")}
}

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, `\`) {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// lookup walks to the key at path. A denied key blocks access to itself
// and everything below it.
func (m *MemRegistry) lookup(path string) (*memKey, error) {
	k := m.root
	for _, seg := range splitPath(path) {
		child, ok := k.children[strings.ToLower(seg)]
		if !ok {
			return nil, ErrNotExist
		}
		if child.denied {
			return nil, fmt.Errorf("%w: %s", ErrAccessDenied, path)
		}
		k = child
	}
	return k, nil
}

// mkpath creates the key at path, including intermediate keys.
func (m *MemRegistry) mkpath(path string) *memKey {
	k := m.root
	for _, seg := range splitPath(path) {
		lower := strings.ToLower(seg)
		child, ok := k.children[lower]
		if !ok {
			child = newMemKey(seg)
			k.children[lower] = child
		}
		k = child
	}
	return k
}

// SeedKey creates an empty key, including intermediate keys.
func (m *MemRegistry) SeedKey(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkpath(path)
}

// SeedString sets a string value, creating the key if needed.
func (m *MemRegistry) SeedString(path, name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkpath(path).strings[strings.ToLower(name)] = value
}

// SeedDWord sets an integer value, creating the key if needed.
func (m *MemRegistry) SeedDWord(path, name string, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkpath(path).dwords[strings.ToLower(name)] = value
}

// Deny marks the key at path access-denied. The key is created if
// needed so tests can deny subtrees that hold no values of their own.
func (m *MemRegistry) Deny(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkpath(path).denied = true
}

// Allow clears a previous Deny, simulating a successful elevated retry.
func (m *MemRegistry) Allow(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkpath(path).denied = false
}

// DeleteValue removes a value of either type. Missing values are ignored.
func (m *MemRegistry) DeleteValue(path, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, err := m.lookup(path)
	if err != nil {
		return
	}
	lower := strings.ToLower(name)
	delete(k.strings, lower)
	delete(k.dwords, lower)
}

func (m *MemRegistry) Subkeys(path string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, err := m.lookup(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(k.children))
	for _, child := range k.children {
		names = append(names, child.name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemRegistry) ReadString(path, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, err := m.lookup(path)
	if err != nil {
		return "", err
	}
	v, ok := k.strings[strings.ToLower(name)]
	if !ok {
		return "", ErrNotExist
	}
	return v, nil
}

func (m *MemRegistry) ReadDWord(path, name string) (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, err := m.lookup(path)
	if err != nil {
		return 0, err
	}
	v, ok := k.dwords[strings.ToLower(name)]
	if !ok {
		return 0, ErrNotExist
	}
	return v, nil
}

func (m *MemRegistry) SetDWord(path, name string, value uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, err := m.lookup(path)
	if err != nil {
		return err
	}
	k.dwords[strings.ToLower(name)] = value
	return nil
}

// fixture is the YAML shape consumed by LoadFixture.
type fixture struct {
	Keys map[string]fixtureKey `yaml:"keys"`
}

type fixtureKey struct {
	Strings map[string]string `yaml:"strings"`
	DWords  map[string]uint32 `yaml:"dwords"`
	Deny    bool              `yaml:"deny"`
}

// LoadFixture builds a MemRegistry from a YAML file describing keys,
// values, and denied subtrees. Used by the memory backend to serve a
// realistic device tree on development hosts.
func LoadFixture(path string) (*MemRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	m := NewMem()
	for keyPath, k := range f.Keys {
		for name, v := range k.Strings {
			m.SeedString(keyPath, name, v)
		}
		for name, v := range k.DWords {
			m.SeedDWord(keyPath, name, v)
		}
		if k.Deny {
			m.Deny(keyPath)
		}
	}
	return m, nil
}
