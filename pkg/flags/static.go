package flags

import (
	"context"
	"maps"
	"sync"
)

// Static keeps flag values in memory. Per-caller overrides win over the
// global value.
type Static struct {
	mu        sync.RWMutex
	values    map[string]any
	overrides map[string]map[string]any
}

// NewStatic copies values into a new provider.
func NewStatic(values map[string]any) *Static {
	s := &Static{
		values:    make(map[string]any, len(values)),
		overrides: make(map[string]map[string]any),
	}
	maps.Copy(s.values, values)
	return s
}

func (s *Static) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// SetFor overrides key for one caller.
func (s *Static) SetFor(callerID, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overrides[callerID] == nil {
		s.overrides[callerID] = make(map[string]any)
	}
	s.overrides[callerID][key] = value
}

func (s *Static) lookup(callerID, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.overrides[callerID][key]; ok {
		return v, true
	}
	v, ok := s.values[key]
	return v, ok
}

func (s *Static) GetBoolean(_ context.Context, callerID, key string, def bool) (bool, error) {
	v, ok := s.lookup(callerID, key)
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, &TypeError{Key: key, Want: "bool", Got: v}
	}
	return b, nil
}

func (s *Static) GetNumber(_ context.Context, callerID, key string, def float64) (float64, error) {
	v, ok := s.lookup(callerID, key)
	if !ok {
		return def, nil
	}
	n, ok := toFloat(v)
	if !ok {
		return def, &TypeError{Key: key, Want: "number", Got: v}
	}
	return n, nil
}

func (s *Static) All(_ context.Context, callerID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	maps.Copy(out, s.values)
	maps.Copy(out, s.overrides[callerID])
	return out, nil
}
