package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Lock contention from another connection is retried this many times,
// backing off saveBackoff longer each attempt.
const (
	saveAttempts = 3
	saveBackoff  = 25 * time.Millisecond
)

// Repository persists entity state across restarts.
type Repository interface {
	// List returns every stored entity.
	List(ctx context.Context) ([]Entity, error)

	// Save inserts or replaces one entity.
	Save(ctx context.Context, e Entity) error

	// Delete removes one entity. Deleting a missing entity is not an error.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using the states table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns every stored entity ordered by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entity_id, value, attributes, updated_at FROM states ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("querying states: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var (
			e         Entity
			attrsJSON sql.NullString
			updatedAt string
		)
		if err := rows.Scan(&e.ID, &e.Value, &attrsJSON, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning state: %w", err)
		}
		e.Attributes = map[string]any{}
		if attrsJSON.Valid && attrsJSON.String != "" {
			if err := json.Unmarshal([]byte(attrsJSON.String), &e.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshalling attributes of %s: %w", e.ID, err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			e.LastChanged = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating states: %w", err)
	}
	return out, nil
}

// Save inserts or replaces one entity.
func (r *SQLiteRepository) Save(ctx context.Context, e Entity) error {
	if e.Attributes == nil {
		e.Attributes = map[string]any{}
	}
	attrsJSON, err := json.Marshal(e.Attributes)
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}

	err = retryBusy(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO states (entity_id, value, attributes, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(entity_id) DO UPDATE SET
				value = excluded.value,
				attributes = excluded.attributes,
				updated_at = excluded.updated_at`,
			e.ID, e.Value, string(attrsJSON), e.LastChanged.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving state %s: %w", e.ID, err)
	}
	return nil
}

// retryBusy runs op until it succeeds, fails for a reason other than lock
// contention, or runs out of attempts. Exhausted attempts wrap ErrBusy.
func retryBusy(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if err = op(); err == nil || !isBusy(err) {
			return err
		}
		if attempt == saveAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * saveBackoff):
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrBusy, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrBusy, err)
}

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	var sqlErr sqlite3.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.Code == sqlite3.ErrBusy || sqlErr.Code == sqlite3.ErrLocked
}

// Delete removes one entity.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM states WHERE entity_id = ?`, id); err != nil {
		return fmt.Errorf("deleting state %s: %w", id, err)
	}
	return nil
}

// persistTimeout bounds one write-through save.
const persistTimeout = 5 * time.Second

// Persister is a Listener that writes every change through to a Repository.
// Failures are logged and otherwise ignored.
type Persister struct {
	repo   Repository
	logger Logger
}

// NewPersister creates a write-through listener for repo.
func NewPersister(repo Repository, logger Logger) *Persister {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Persister{repo: repo, logger: logger}
}

// StateChanged saves the new entity state.
func (p *Persister) StateChanged(c Change) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := p.repo.Save(ctx, Entity{
		ID:          c.EntityID,
		Value:       c.Value,
		Attributes:  c.Attributes,
		LastChanged: c.Time,
	})
	if err != nil {
		p.logger.Error("persisting state failed", "entity_id", c.EntityID, "error", err)
	}
}
