package state

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"
)

// Store is the in-memory entity table.
//
// A Repository, when set, is loaded once by Load; writes reach it through a
// Persister listener rather than from Set itself.
type Store struct {
	mu        sync.RWMutex
	entities  map[string]*Entity
	listeners []Listener
	repo      Repository
	logger    Logger
	now       func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]*Entity),
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// AddListener registers l to receive every change after it is applied.
func (s *Store) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Load replaces the table with the repository contents without notifying
// listeners. It is called once at startup.
func (s *Store) Load(ctx context.Context, repo Repository) error {
	entities, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading states: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.repo = repo
	s.entities = make(map[string]*Entity, len(entities))
	for i := range entities {
		e := entities[i].Copy()
		s.entities[e.ID] = &e
	}

	s.logger.Info("states loaded", "count", len(entities))
	return nil
}

// Get returns the value of "domain.entity" or the attribute named by
// "domain.entity.attr".
func (s *Store) Get(name string) (any, bool) {
	key, ok := EntityKey(name)
	if !ok {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[key]
	if !ok {
		return nil, false
	}
	if key == name {
		return e.Value, true
	}
	v, ok := e.Attributes[name[len(key)+1:]]
	return v, ok
}

// Exists reports whether Get(name) would succeed.
func (s *Store) Exists(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Entity returns a copy of one entity.
func (s *Store) Entity(id string) (Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return Entity{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.Copy(), nil
}

// List returns copies of all entities sorted by id.
func (s *Store) List() []Entity {
	s.mu.RLock()
	out := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e.Copy())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Entity) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Names returns the sorted ids of all entities.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.entities))
}

// Set writes value and attributes to the entity name, creating it when
// needed. A nil attrs keeps the existing attributes. Listeners are notified
// only when the value or attributes actually change.
func (s *Store) Set(name, value string, attrs map[string]any) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	now := s.now()

	s.mu.Lock()
	prev, existed := s.entities[name]
	if attrs == nil {
		if existed {
			attrs = prev.Attributes
		} else {
			attrs = map[string]any{}
		}
	}
	if existed && prev.Value == value && reflect.DeepEqual(prev.Attributes, attrs) {
		s.mu.Unlock()
		return nil
	}

	change := Change{
		EntityID:   name,
		Value:      value,
		Attributes: maps.Clone(attrs),
		Time:       now,
	}
	if existed {
		old := prev.Value
		change.OldValue = &old
	}
	s.entities[name] = &Entity{
		ID:          name,
		Value:       value,
		Attributes:  maps.Clone(attrs),
		LastChanged: now,
	}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	s.logger.Debug("state changed", "entity_id", name, "value", value)
	for _, l := range listeners {
		l.StateChanged(change)
	}
	return nil
}

// Delete removes an entity. It does not notify listeners.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.entities[id]
	delete(s.entities, id)
	repo := s.repo
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if repo != nil {
		if err := repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting state %s: %w", id, err)
		}
	}
	return nil
}
