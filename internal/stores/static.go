package stores

import (
	"context"
	"sync"
)

// StaticStore serves values from an in-memory map. For tests and offline
// development; Set allows simulating an out-of-band rotation mid-test.
type StaticStore struct {
	name   string
	mu     sync.RWMutex
	values map[string]string
}

// NewStaticStore creates a static store seeded from config values
func NewStaticStore(name string, configMap map[string]interface{}) *StaticStore {
	values := make(map[string]string)
	if raw, ok := configMap["values"].(map[string]interface{}); ok {
		for key, v := range raw {
			if str, ok := v.(string); ok {
				values[key] = str
			}
		}
	}
	return &StaticStore{
		name:   name,
		values: values,
	}
}

// NewStaticStoreFactory adapts the constructor to the registry signature
func NewStaticStoreFactory(name string, cfg map[string]interface{}) (Store, error) {
	return NewStaticStore(name, cfg), nil
}

// Name returns the store name
func (s *StaticStore) Name() string {
	return s.name
}

// Fetch returns the value stored under key
func (s *StaticStore) Fetch(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", &NotFoundError{Store: s.name, Key: key}
	}
	return value, nil
}

// Validate always succeeds; there is no backend to reach
func (s *StaticStore) Validate(ctx context.Context) error {
	return ctx.Err()
}

// Set replaces the value under key, simulating an out-of-band rotation
func (s *StaticStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}
