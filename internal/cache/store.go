// Package cache is a small read-through response cache whose invalidation
// contract is expressed with typed scopes instead of free-form string tags.
package cache

import (
	"sync"
	"time"
)

// Scope names a family of cached query results.
type Scope string

const (
	MaintenanceRecords  Scope = "maintenance-records"
	MaintenanceKPIs     Scope = "maintenance-kpis"
	OverdueMaintenance  Scope = "overdue-maintenance"
	UpcomingMaintenance Scope = "upcoming-maintenance"
	Vehicles            Scope = "vehicles"
	Incidents           Scope = "incidents"
	SpillKitChecks      Scope = "spill-kit-checks"
)

// Invalidation sets used by mutations.
var (
	MaintenanceMutation = []Scope{MaintenanceRecords, MaintenanceKPIs, OverdueMaintenance, UpcomingMaintenance}
	IncidentMutation    = []Scope{Incidents}
	SpillKitMutation    = []Scope{SpillKitChecks}
	// Company timezone and window changes move every date based bucket.
	SettingsMutation = []Scope{MaintenanceRecords, MaintenanceKPIs, OverdueMaintenance, UpcomingMaintenance, SpillKitChecks}
)

// Key identifies one cached result: a scope plus a variant such as the
// normalized query string.
type Key struct {
	Scope   Scope
	Variant string
}

type entry struct {
	value   []byte
	expires time.Time
}

// Store holds cached values in memory. Every scope carries a generation
// that Invalidate bumps; a load that started under an older generation is
// never written back.
type Store struct {
	mu          sync.RWMutex
	ttl         time.Duration
	entries     map[Scope]map[string]entry
	generations map[Scope]uint64
	now         func() time.Time
}

// NewStore creates a store whose entries live for ttl. A non-positive ttl
// disables caching.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:         ttl,
		entries:     make(map[Scope]map[string]entry),
		generations: make(map[Scope]uint64),
		now:         time.Now,
	}
}

// Get returns the cached value for key if present and fresh.
func (s *Store) Get(key Key) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key.Scope][key.Variant]
	if !ok || !s.now().Before(e.expires) {
		return nil, false
	}
	return e.value, true
}

// Generation returns the current generation of scope. Read it before
// loading the value that will be passed to SetIfGeneration.
func (s *Store) Generation(scope Scope) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[scope]
}

// SetIfGeneration stores value under key unless the scope was invalidated
// after gen was read. It reports whether the value was stored.
func (s *Store) SetIfGeneration(key Key, gen uint64, value []byte) bool {
	if s.ttl <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[key.Scope] != gen {
		return false
	}
	variants, ok := s.entries[key.Scope]
	if !ok {
		variants = make(map[string]entry)
		s.entries[key.Scope] = variants
	}
	variants[key.Variant] = entry{value: value, expires: s.now().Add(s.ttl)}
	return true
}

// Invalidate drops every variant of the given scopes and advances their
// generations.
func (s *Store) Invalidate(scopes ...Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, scope := range scopes {
		delete(s.entries, scope)
		s.generations[scope]++
	}
}

// Len returns the number of cached variants across all scopes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, variants := range s.entries {
		n += len(variants)
	}
	return n
}
