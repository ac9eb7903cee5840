// Package store provides the persisted state shared across independently
// triggered invocations: the per-day quota counters, the circuit breaker
// state, the failure counter and the global abort flag, plus the content
// tables the daemon serves. Everything lives in one sqlite database so all
// of it survives process restarts.
//
// There is deliberately no process-local locking around this state; sqlite
// serializes writers and every cross-invocation coordination primitive is an
// atomic read-modify-write against these tables.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite database holding all missiond state.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite",
		path+"?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle for packages that share the database
// (the content store).
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetNow overrides the clock. Test use only.
func (s *Store) SetNow(now func() time.Time) {
	s.now = now
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ──────────────────────────────────────────────────
// Singletons
// ──────────────────────────────────────────────────

// ErrHeld is returned by AcquireSingleton when a live holder exists.
var ErrHeld = errors.New("store: singleton held")

// GetSingleton returns the value for name. Expired entries read as absent
// and are lazily deleted.
func (s *Store) GetSingleton(ctx context.Context, name string) (string, bool, error) {
	var value string
	var expires sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM singletons WHERE name = ?`, name,
	).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if expires.Valid && s.now().Unix() > expires.Int64 {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM singletons WHERE name = ?`, name)
		return "", false, nil
	}
	return value, true, nil
}

// SetSingleton stores value under name. A ttl of zero means no expiry.
func (s *Store) SetSingleton(ctx context.Context, name, value string, ttl time.Duration) error {
	var expires sql.NullInt64
	if ttl > 0 {
		expires = sql.NullInt64{Int64: s.now().Add(ttl).Unix(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO singletons (name, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		name, value, expires)
	return err
}

// DeleteSingleton removes name. Missing entries are not an error.
func (s *Store) DeleteSingleton(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM singletons WHERE name = ?`, name)
	return err
}

// AcquireSingleton installs value under name only if no live (non-expired)
// entry exists, reclaiming expired holders first. Returns ErrHeld when a
// live holder is present. The check and install run in one immediate
// transaction (the connection opens every transaction with BEGIN IMMEDIATE,
// see Open) so competing acquirers serialize on the write lock instead of
// failing their snapshot upgrade mid-transaction; the loser then observes
// the winner's row and gets ErrHeld.
func (s *Store) AcquireSingleton(ctx context.Context, name, value string, ttl time.Duration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing string
	var expires sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT value, expires_at FROM singletons WHERE name = ?`, name,
	).Scan(&existing, &expires)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// free
	case err != nil:
		return err
	default:
		if !expires.Valid || s.now().Unix() <= expires.Int64 {
			return ErrHeld
		}
		// expired holder, reclaim
	}

	var exp sql.NullInt64
	if ttl > 0 {
		exp = sql.NullInt64{Int64: s.now().Add(ttl).Unix(), Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO singletons (name, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		name, value, exp); err != nil {
		return err
	}
	return tx.Commit()
}
