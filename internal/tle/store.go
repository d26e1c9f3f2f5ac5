package tle

import (
	"sync"
	"sync/atomic"
	"time"
)

// snapshot pairs a dataset with its NORAD ID index so both swap together.
type snapshot struct {
	dataset *TLEDataset
	byID    map[int]int // NORAD ID -> index into dataset.Satellites
}

// Store provides thread-safe access to the current TLE dataset.
// Readers never block; a fetch mutex serializes writers that fetch remotely.
type Store struct {
	current atomic.Pointer[snapshot]
	mu      sync.Mutex
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *TLEDataset {
	if snap := s.current.Load(); snap != nil {
		return snap.dataset
	}
	return nil
}

// Set atomically replaces the current dataset. For duplicate NORAD IDs
// the first entry wins.
func (s *Store) Set(ds *TLEDataset) {
	if ds == nil {
		s.current.Store(nil)
		return
	}
	byID := make(map[int]int, len(ds.Satellites))
	for i, e := range ds.Satellites {
		if _, ok := byID[e.NORADID]; !ok {
			byID[e.NORADID] = i
		}
	}
	s.current.Store(&snapshot{dataset: ds, byID: byID})
}

// Lookup finds a satellite in the current dataset. The dataset is returned
// too so callers see a consistent snapshot.
func (s *Store) Lookup(noradID int) (TLEEntry, *TLEDataset, bool) {
	snap := s.current.Load()
	if snap == nil {
		return TLEEntry{}, nil, false
	}
	i, ok := snap.byID[noradID]
	if !ok {
		return TLEEntry{}, snap.dataset, false
	}
	return snap.dataset.Satellites[i], snap.dataset, true
}

// Ready reports whether a non-empty dataset is loaded.
func (s *Store) Ready() bool {
	ds := s.Get()
	return ds != nil && len(ds.Satellites) > 0
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.Get()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

// Lock acquires the fetch mutex for serializing fetch operations.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the fetch mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}
