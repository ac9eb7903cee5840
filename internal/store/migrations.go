package store

import "context"

// migrate creates every table missiond uses. Statements are idempotent so
// migration runs unconditionally at open.
func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS singletons (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			expires_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS daily_quota (
			date  TEXT PRIMARY KEY,
			count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL DEFAULT 'post',
			title      TEXT NOT NULL,
			language   TEXT NOT NULL,
			source_of  TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS item_meta (
			item_id TEXT NOT NULL,
			name    TEXT NOT NULL,
			value   TEXT NOT NULL,
			PRIMARY KEY (item_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS translations (
			item_id       TEXT NOT NULL,
			language      TEXT NOT NULL,
			translated_id TEXT NOT NULL,
			PRIMARY KEY (item_id, language)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_item_meta_name_value
			ON item_meta (name, value)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
