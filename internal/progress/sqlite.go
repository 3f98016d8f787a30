package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const identityKey = "player_identity"

// SQLiteStore implements Store and IdentityStore on the progress and meta
// tables, with entries kept as JSONB documents. The schema is created by the
// migrations package.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, error) {
	return getEntry(ctx, s.db, key)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getEntry(ctx context.Context, q queryRower, key string) (Entry, error) {
	var data string
	err := q.QueryRowContext(ctx,
		`SELECT json(data) FROM progress WHERE key = ?`, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return Entry{}, fmt.Errorf("decoding entry %q: %w", key, err)
	}
	return e, nil
}

// PutIfAbsent inserts and reads back inside one transaction so a concurrent
// writer for the same key observes exactly one stored entry.
func (s *SQLiteStore) PutIfAbsent(ctx context.Context, key string, e Entry) (Entry, bool, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, false, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return Entry{}, false, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO progress (key, data) VALUES (?, jsonb(?))
		 ON CONFLICT(key) DO NOTHING`,
		key, string(data),
	)
	if err != nil {
		return Entry{}, false, err
	}
	n, _ := result.RowsAffected()

	stored, err := getEntry(ctx, tx, key)
	if err != nil {
		return Entry{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, false, err
	}
	return stored, n > 0, nil
}

func (s *SQLiteStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM progress WHERE instr(key, ?) = 1`, prefix,
	)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) All(ctx context.Context) (map[string]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, json(data) FROM progress ORDER BY key`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[string]Entry)
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("decoding entry %q: %w", key, err)
		}
		entries[key] = e
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) LoadIdentity(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE name = ?`, identityKey,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

func (s *SQLiteStore) SaveIdentity(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		identityKey, id,
	)
	return err
}

// Ping reports whether the underlying database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
