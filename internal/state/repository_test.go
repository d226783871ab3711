package state

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the states table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE states (
			entity_id  TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			attributes TEXT NOT NULL DEFAULT '{}',
			updated_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// ─── SQLiteRepository ───────────────────────────────────────────────

func TestSQLiteRepositorySaveAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

	if err := repo.Save(ctx, Entity{ID: "sensor.temp", Value: "20.5", Attributes: map[string]any{"unit": "C"}, LastChanged: ts}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, Entity{ID: "sensor.temp", Value: "21", Attributes: map[string]any{"unit": "C"}, LastChanged: ts}); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	if err := repo.Save(ctx, Entity{ID: "light.hall", Value: "off", LastChanged: ts}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []Entity{
		{ID: "light.hall", Value: "off", Attributes: map[string]any{}, LastChanged: ts},
		{ID: "sensor.temp", Value: "21", Attributes: map[string]any{"unit": "C"}, LastChanged: ts},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	if err := repo.Delete(ctx, "light.hall"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, _ = repo.List(ctx)
	if len(got) != 1 {
		t.Errorf("after Delete len = %d, want 1", len(got))
	}
}

func TestRetryBusy(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	locked := sqlite3.Error{Code: sqlite3.ErrLocked}
	constraint := sqlite3.Error{Code: sqlite3.ErrConstraint}

	tests := []struct {
		name      string
		results   []error
		wantCalls int
		wantErr   error
	}{
		{"first try", []error{nil}, 1, nil},
		{"busy then ok", []error{busy, locked, nil}, 3, nil},
		{"always busy", []error{busy, busy, busy}, saveAttempts, ErrBusy},
		{"constraint not retried", []error{constraint}, 1, constraint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryBusy(context.Background(), func() error {
				calls++
				return tt.results[calls-1]
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("retryBusy() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSQLiteRepositorySaveWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	open := func() *sql.DB {
		db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=0")
		if err != nil {
			t.Fatalf("sql.Open() error = %v", err)
		}
		t.Cleanup(func() { db.Close() })
		return db
	}
	holder, writer := open(), open()
	if _, err := holder.Exec(`CREATE TABLE states (
		entity_id TEXT PRIMARY KEY, value TEXT NOT NULL,
		attributes TEXT NOT NULL DEFAULT '{}', updated_at TEXT NOT NULL)`); err != nil {
		t.Fatal(err)
	}

	tx, err := holder.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Exec(`INSERT INTO states (entity_id, value, updated_at) VALUES ('a.b', '1', '')`); err != nil {
		t.Fatal(err)
	}

	repo := NewSQLiteRepository(writer)
	ent := Entity{ID: "light.hall", Value: "on", LastChanged: time.Now()}
	if err := repo.Save(context.Background(), ent); !errors.Is(err, ErrBusy) {
		t.Fatalf("Save() during a held write lock error = %v, want ErrBusy", err)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(context.Background(), ent); err != nil {
		t.Errorf("Save() after the lock was released error = %v", err)
	}
}

func TestStoreLoadAndPersist(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	_ = repo.Save(ctx, Entity{ID: "input.mode", Value: "away", LastChanged: time.Now()})

	s, rec := newTestStore(t)
	if err := s.Load(ctx, repo); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if v, _ := s.Get("input.mode"); v != "away" {
		t.Errorf("loaded value = %v, want away", v)
	}
	if len(rec.all()) != 0 {
		t.Error("Load() notified listeners")
	}

	s.AddListener(NewPersister(repo, nil))
	_ = s.Set("input.mode", "home", nil)

	stored, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(stored) != 1 || stored[0].Value != "home" {
		t.Errorf("persisted = %+v, want value home", stored)
	}

	if err := s.Delete(ctx, "input.mode"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	stored, _ = repo.List(ctx)
	if len(stored) != 0 {
		t.Errorf("after Delete stored = %d rows, want 0", len(stored))
	}
}

// failingRepo fails every call.
type failingRepo struct{}

func (failingRepo) List(context.Context) ([]Entity, error) { return nil, errors.New("boom") }
func (failingRepo) Save(context.Context, Entity) error     { return errors.New("boom") }
func (failingRepo) Delete(context.Context, string) error   { return errors.New("boom") }

func TestStoreLoadError(t *testing.T) {
	s := NewStore()
	if err := s.Load(context.Background(), failingRepo{}); err == nil {
		t.Error("Load() error = nil, want error")
	}
}

func TestPersisterSwallowsErrors(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddListener(NewPersister(failingRepo{}, nil))
	if err := s.Set("a.b", "1", nil); err != nil {
		t.Errorf("Set() error = %v, want nil", err)
	}
}

// ─── HistorySink ────────────────────────────────────────────────────

type fakeWriter struct {
	points []string
}

func (f *fakeWriter) WriteState(entityID, value string, _ time.Time) {
	f.points = append(f.points, entityID+"="+value)
}

func TestHistorySink(t *testing.T) {
	s, _ := newTestStore(t)
	w := &fakeWriter{}
	s.AddListener(NewHistorySink(w))

	_ = s.Set("sensor.t", "1", nil)
	_ = s.Set("sensor.t", "2", nil)

	if diff := cmp.Diff([]string{"sensor.t=1", "sensor.t=2"}, w.points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}
