package usb

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Store holds the latest device snapshot. The snapshot is replaced
// wholesale on every scan, never patched in place; queries are pure
// projections over the current snapshot.
//
// All public methods are thread-safe.
type Store struct {
	mu       sync.RWMutex
	devices  []Device
	byPath   map[string]Device
	seq      uint64
	takenAt  time.Time
	lastScan ScanStats
	logger   Logger
}

// Filter narrows and orders a Store query. Zero value means all
// devices in canonical order.
type Filter struct {
	// Type restricts results to an exact type tag. "All" and "" match
	// everything.
	Type string
	// Text matches case-insensitively against description, manufacturer,
	// path, and type. Substring match, OR semantics across fields.
	Text string
	Sort SortMode
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byPath: make(map[string]Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Replace swaps in a new snapshot atomically. The slice is owned by the
// store after the call.
func (s *Store) Replace(devices []Device, stats ScanStats) {
	byPath := make(map[string]Device, len(devices))
	for _, d := range devices {
		byPath[d.Path] = d
	}

	s.mu.Lock()
	s.devices = devices
	s.byPath = byPath
	s.seq++
	s.takenAt = time.Now().UTC()
	s.lastScan = stats
	seq := s.seq
	s.mu.Unlock()

	s.logger.Info("snapshot replaced", "seq", seq, "devices", len(devices))
}

// Query returns a filtered, sorted copy of the current snapshot.
func (s *Store) Query(f Filter) []Device {
	s.mu.RLock()
	devices := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		if matchesFilter(d, f) {
			devices = append(devices, d)
		}
	}
	s.mu.RUnlock()

	sortDevices(devices, f.Sort)
	return devices
}

// Get returns the record for path, if present in the current snapshot.
func (s *Store) Get(path string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byPath[path]
	return d, ok
}

// Paths returns every device path in canonical snapshot order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, len(s.devices))
	for i, d := range s.devices {
		paths[i] = d.Path
	}
	return paths
}

// Types returns the sorted set of type tags present in the snapshot.
func (s *Store) Types() []string {
	s.mu.RLock()
	seen := make(map[string]struct{}, 8)
	for _, d := range s.devices {
		seen[d.Type] = struct{}{}
	}
	s.mu.RUnlock()

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Count returns the number of devices in the current snapshot.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

// Seq returns the snapshot sequence number, incremented on every Replace.
func (s *Store) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// TakenAt returns when the current snapshot was installed.
func (s *Store) TakenAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.takenAt
}

// LastScan returns the stats of the scan behind the current snapshot.
func (s *Store) LastScan() ScanStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastScan
}

// Stats summarises the snapshot for monitoring.
type Stats struct {
	TotalDevices int                `json:"total_devices"`
	ByType       map[string]int     `json:"by_type"`
	ByPower      map[PowerState]int `json:"by_power"`
	Seq          uint64             `json:"seq"`
	TakenAt      time.Time          `json:"taken_at"`
}

// GetStats returns current snapshot statistics.
func (s *Store) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalDevices: len(s.devices),
		ByType:       make(map[string]int),
		ByPower:      make(map[PowerState]int),
		Seq:          s.seq,
		TakenAt:      s.takenAt,
	}
	for _, d := range s.devices {
		stats.ByType[d.Type]++
		stats.ByPower[d.Power]++
	}
	return stats
}

func matchesFilter(d Device, f Filter) bool {
	if f.Type != "" && !strings.EqualFold(f.Type, "All") && d.Type != f.Type {
		return false
	}
	if f.Text == "" {
		return true
	}
	needle := strings.ToLower(f.Text)
	return strings.Contains(strings.ToLower(d.Description), needle) ||
		strings.Contains(strings.ToLower(d.Manufacturer), needle) ||
		strings.Contains(strings.ToLower(d.Path), needle) ||
		strings.Contains(strings.ToLower(d.Type), needle)
}

// sortDevices orders devices by mode. Every non-canonical mode uses the
// lowercased description as secondary tie-break.
func sortDevices(devices []Device, mode SortMode) {
	byDesc := func(i, j int) bool {
		di, dj := strings.ToLower(devices[i].Description), strings.ToLower(devices[j].Description)
		if di != dj {
			return di < dj
		}
		return strings.ToLower(devices[i].Path) < strings.ToLower(devices[j].Path)
	}

	switch mode {
	case SortDescriptionDesc:
		sort.SliceStable(devices, func(i, j int) bool { return byDesc(j, i) })
	case SortPower:
		sort.SliceStable(devices, func(i, j int) bool {
			ri, rj := devices[i].Power.Rank(), devices[j].Power.Rank()
			if ri != rj {
				return ri < rj
			}
			return byDesc(i, j)
		})
	case SortType:
		sort.SliceStable(devices, func(i, j int) bool {
			ti, tj := strings.ToLower(devices[i].Type), strings.ToLower(devices[j].Type)
			if ti != tj {
				return ti < tj
			}
			return byDesc(i, j)
		})
	case SortManufacturer:
		sort.SliceStable(devices, func(i, j int) bool {
			mi, mj := strings.ToLower(devices[i].Manufacturer), strings.ToLower(devices[j].Manufacturer)
			if mi != mj {
				return mi < mj
			}
			return byDesc(i, j)
		})
	default:
		sort.SliceStable(devices, byDesc)
	}
}
