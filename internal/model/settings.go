package model

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// SettingChange is passed to Settings observers after a write.
type SettingChange struct {
	Key      string
	Value    any
	Previous any
	// Removed is set when the key was deleted.
	Removed bool
}

// Settings is a string-keyed bag of runner options, safe for concurrent use.
// Observers are notified synchronously after each write, outside the lock.
type Settings struct {
	mu        sync.RWMutex
	values    map[string]any
	observers []func(SettingChange)
}

// NewSettings creates an empty Settings.
func NewSettings() *Settings {
	return &Settings{values: map[string]any{}}
}

// Get returns the value stored under key.
func (s *Settings) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]

	return v, ok
}

// Set stores value under key and notifies observers.
func (s *Settings) Set(key string, value any) {
	s.mu.Lock()

	if s.values == nil {
		s.values = map[string]any{}
	}

	previous := s.values[key]
	s.values[key] = value
	observers := slices.Clone(s.observers)

	s.mu.Unlock()

	for _, fn := range observers {
		fn(SettingChange{Key: key, Value: value, Previous: previous})
	}
}

// Remove deletes key and notifies observers when it was present.
func (s *Settings) Remove(key string) {
	s.mu.Lock()

	previous, ok := s.values[key]
	delete(s.values, key)
	observers := slices.Clone(s.observers)

	s.mu.Unlock()

	if !ok {
		return
	}

	for _, fn := range observers {
		fn(SettingChange{Key: key, Previous: previous, Removed: true})
	}
}

// OnChange registers fn to be called after every write.
func (s *Settings) OnChange(fn func(SettingChange)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers = append(s.observers, fn)
}

// Keys returns the stored keys, sorted.
func (s *Settings) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Len returns the number of stored keys.
func (s *Settings) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.values)
}

// CopyTo writes every value of s into dst, notifying dst's observers.
func (s *Settings) CopyTo(dst *Settings) {
	if dst == nil || dst == s {
		return
	}

	for _, key := range s.Keys() {
		if v, ok := s.Get(key); ok {
			dst.Set(key, v)
		}
	}
}

// GetString returns the value under key formatted as a string, or def.
func (s *Settings) GetString(key, def string) string {
	v, ok := s.Get(key)
	if !ok {
		return def
	}

	if str, ok := v.(string); ok {
		return str
	}

	return fmt.Sprint(v)
}

// GetBool returns the bool under key, or def when missing or of another type.
func (s *Settings) GetBool(key string, def bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return def
	}

	b, ok := v.(bool)
	if !ok {
		return def
	}

	return b
}

// GetDuration returns the duration under key. Strings are parsed with
// time.ParseDuration; invalid or missing values yield def.
func (s *Settings) GetDuration(key string, def time.Duration) time.Duration {
	v, ok := s.Get(key)
	if !ok {
		return def
	}

	switch d := v.(type) {
	case time.Duration:
		return d
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return def
		}

		return parsed
	default:
		return def
	}
}
