package eval

import (
	"sort"
	"sync"
)

// SymTable maps names to values. A module's global table is shared by every
// function, trigger and service derived from it, and those may run on
// different goroutines, so all access is serialised.
type SymTable struct {
	mu   sync.RWMutex
	vars map[string]Value
}

// NewSymTable returns an empty table.
func NewSymTable() *SymTable {
	return &SymTable{vars: make(map[string]Value)}
}

// Get returns the value bound to name.
func (s *SymTable) Get(name string) (Value, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// Has reports whether name is bound.
func (s *SymTable) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Set binds name to v.
func (s *SymTable) Set(name string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = v
}

// Delete unbinds name, reporting whether it was bound.
func (s *SymTable) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.vars[name]
	delete(s.vars, name)
	return ok
}

// Update binds every entry of m.
func (s *SymTable) Update(m map[string]Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range m {
		s.vars[k] = v
	}
}

// Names returns the bound names in sorted order.
func (s *SymTable) Names() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.vars))
	for k := range s.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the bindings.
func (s *SymTable) Snapshot() map[string]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Value, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// Len returns the number of bindings.
func (s *SymTable) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vars)
}
