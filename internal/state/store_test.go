package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// recordingListener collects every change it sees.
type recordingListener struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recordingListener) StateChanged(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recordingListener) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

// newTestStore returns a store with a fixed clock and a recording listener.
func newTestStore(t *testing.T) (*Store, *recordingListener) {
	t.Helper()
	s := NewStore()
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	rec := &recordingListener{}
	s.AddListener(rec)
	return s, rec
}

// ─── Get / Set ──────────────────────────────────────────────────────

func TestStoreSetAndGet(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Set("light.kitchen", "on", map[string]any{"brightness": 200}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	tests := []struct {
		name   string
		want   any
		wantOK bool
	}{
		{"light.kitchen", "on", true},
		{"light.kitchen.brightness", 200, true},
		{"light.kitchen.color", nil, false},
		{"light.hall", nil, false},
		{"light", nil, false},
		{"a.b.c.d", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Get(tt.name)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Get(%q) = %v, %v, want %v, %v", tt.name, got, ok, tt.want, tt.wantOK)
			}
			if s.Exists(tt.name) != tt.wantOK {
				t.Errorf("Exists(%q) = %v, want %v", tt.name, !tt.wantOK, tt.wantOK)
			}
		})
	}
}

func TestStoreSetInvalidName(t *testing.T) {
	s, rec := newTestStore(t)

	for _, name := range []string{"", "kitchen", ".x", "x.", "a.b.c"} {
		if err := s.Set(name, "1", nil); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Set(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
	if n := len(rec.all()); n != 0 {
		t.Errorf("listener saw %d changes, want 0", n)
	}
}

func TestStoreSetKeepsAttributesWhenNil(t *testing.T) {
	s, _ := newTestStore(t)

	_ = s.Set("sensor.temp", "20", map[string]any{"unit": "C"})
	_ = s.Set("sensor.temp", "21", nil)

	if v, _ := s.Get("sensor.temp.unit"); v != "C" {
		t.Errorf("unit = %v, want C", v)
	}
}

// ─── Notifications ──────────────────────────────────────────────────

func TestStoreSetNotifiesListeners(t *testing.T) {
	s, rec := newTestStore(t)

	_ = s.Set("switch.pump", "off", nil)
	_ = s.Set("switch.pump", "on", nil)
	_ = s.Set("switch.pump", "on", nil) // unchanged, no notification

	changes := rec.all()
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}
	if changes[0].Old() != nil {
		t.Errorf("first change old = %v, want nil", changes[0].Old())
	}
	if changes[1].Old() != "off" || changes[1].Value != "on" {
		t.Errorf("second change = %v -> %v, want off -> on", changes[1].Old(), changes[1].Value)
	}
}

func TestStoreAttributeChangeNotifies(t *testing.T) {
	s, rec := newTestStore(t)

	_ = s.Set("light.desk", "on", map[string]any{"level": 1})
	_ = s.Set("light.desk", "on", map[string]any{"level": 2})

	if n := len(rec.all()); n != 2 {
		t.Errorf("got %d changes, want 2", n)
	}
}

// ─── Listing / delete ───────────────────────────────────────────────

func TestStoreListAndDelete(t *testing.T) {
	s, _ := newTestStore(t)
	_ = s.Set("b.two", "2", nil)
	_ = s.Set("a.one", "1", nil)

	if diff := cmp.Diff([]string{"a.one", "b.two"}, s.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	list := s.List()
	list[0].Attributes["x"] = 1
	if _, ok := s.Get("a.one.x"); ok {
		t.Error("List() returned shared attribute map")
	}

	if err := s.Delete(context.Background(), "a.one"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(context.Background(), "a.one"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Entity("a.one"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Entity() error = %v, want ErrNotFound", err)
	}
}

func TestEntityKey(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"a.b", "a.b", true},
		{"a.b.c", "a.b", true},
		{"a.b.old", "a.b", true},
		{"a", "", false},
		{"a..c", "", false},
		{"a.b.c.d", "", false},
	}
	for _, tt := range tests {
		got, ok := EntityKey(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("EntityKey(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
