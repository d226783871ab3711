package state

import (
	"maps"
	"strings"
	"time"
)

// Entity is the current state of one entity.
type Entity struct {
	ID          string         `json:"entity_id"`
	Value       string         `json:"value"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
}

// Copy returns a copy whose attribute map is not shared with e.
func (e Entity) Copy() Entity {
	e.Attributes = maps.Clone(e.Attributes)
	if e.Attributes == nil {
		e.Attributes = map[string]any{}
	}
	return e
}

// Change describes one state write.
type Change struct {
	EntityID   string
	Value      string
	Attributes map[string]any

	// OldValue is nil when the entity did not exist before.
	OldValue *string
	Time     time.Time
}

// Old returns the previous value, or nil for a new entity.
func (c Change) Old() any {
	if c.OldValue == nil {
		return nil
	}
	return *c.OldValue
}

// Listener receives every state change.
type Listener interface {
	StateChanged(c Change)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(c Change)

// StateChanged calls f(c).
func (f ListenerFunc) StateChanged(c Change) { f(c) }

// Logger defines the logging interface used by the state package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ValidName reports whether name is a two-part "domain.entity" id.
func ValidName(name string) bool {
	domain, entity, ok := strings.Cut(name, ".")
	return ok && domain != "" && entity != "" && !strings.Contains(entity, ".")
}

// EntityKey returns the "domain.entity" part of a two- or three-part name.
func EntityKey(name string) (string, bool) {
	parts := strings.Split(name, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return "", false
	}
	for _, p := range parts {
		if p == "" {
			return "", false
		}
	}
	return parts[0] + "." + parts[1], true
}
