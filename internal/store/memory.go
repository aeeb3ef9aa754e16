package store

import (
	"errors"
	"sync"
	"time"

	"github.com/skycal/celestial-data-aggregation/internal/celestial"
)

var (
	// ErrNotFound is returned when no snapshot is cached for a given query.
	ErrNotFound = errors.New("no snapshot for query")
)

type entry struct {
	snapshot celestial.Snapshot
	savedAt  time.Time
}

// MemoryStore is a concurrency-safe in-memory snapshot cache. Snapshots
// for past dates are immutable, so entries can be served until retention
// evicts them. Age is measured from the save time on the store's own
// clock, not from any timestamp inside the snapshot.
type MemoryStore struct {
	mu sync.RWMutex

	// key: (date, coordinate) query key
	data  map[string]entry
	order []string // insertion order, for count-based eviction

	maxEntries int           // max cached snapshots (0 = unlimited)
	maxAge     time.Duration // max snapshot age (0 = unlimited)

	now func() time.Time
}

// NewMemoryStore creates a MemoryStore with optional limits. If maxEntries
// is <= 0, it is treated as unlimited.
func NewMemoryStore(maxEntries int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save caches a snapshot under its query key and enforces retention.
func (s *MemoryStore) Save(snapshot celestial.Snapshot) {
	key := snapshot.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists {
		s.order = append(s.order, key)
	}
	s.data[key] = entry{snapshot: snapshot, savedAt: s.now()}

	// Enforce retention by count.
	if s.maxEntries > 0 {
		for len(s.order) > s.maxEntries {
			evict := s.order[0]
			s.order = s.order[1:]
			delete(s.data, evict)
		}
	}
}

// Get returns the cached snapshot for a query key, honoring the age limit.
func (s *MemoryStore) Get(key string) (celestial.Snapshot, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return celestial.Snapshot{}, ErrNotFound
	}

	if s.maxAge > 0 && s.now().Sub(e.savedAt) > s.maxAge {
		s.mu.Lock()
		delete(s.data, key)
		for i, k := range s.order {
			if k == key {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		return celestial.Snapshot{}, ErrNotFound
	}

	return e.snapshot, nil
}

// Len reports how many snapshots are currently cached.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
