package credential

import (
	"sort"
	"sync"
)

// Snapshot is the read-only view of all currently cached credential values,
// keyed by tracked-secret name. It is returned once from the watcher's Start
// and refreshed in place under a single-writer discipline: the watcher's poll
// goroutine is the only writer, consumers only read.
type Snapshot struct {
	mu     sync.RWMutex
	values map[string]Value
}

// NewSnapshot creates a snapshot seeded with the given values.
func NewSnapshot(values map[string]Value) *Snapshot {
	copied := make(map[string]Value, len(values))
	for name, v := range values {
		copied[name] = v
	}
	return &Snapshot{values: copied}
}

// Get returns the current value for a tracked-secret name.
func (s *Snapshot) Get(name string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Names returns the tracked-secret names in sorted order.
func (s *Snapshot) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set replaces the value for a name. Reserved for the watcher's poll goroutine.
func (s *Snapshot) Set(name string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = v
}
