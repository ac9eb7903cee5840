package content

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLite implements Store against the shared missiond database. The content
// tables are migrated by internal/store alongside the state tables.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite wraps the shared database handle.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// Item reads one item by id.
func (s *SQLite) Item(ctx context.Context, id string) (*Item, error) {
	var it Item
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, title, language, source_of, created_at FROM items WHERE id = ?`, id,
	).Scan(&it.ID, &it.Kind, &it.Title, &it.Language, &it.SourceOf, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	it.CreatedAt = time.Unix(created, 0)
	return &it, nil
}

// CreateItem inserts a new item. Used by the local duplicator and by tests;
// regular mission flow never creates originals.
func (s *SQLite) CreateItem(ctx context.Context, it *Item) error {
	created := it.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	kind := it.Kind
	if kind == "" {
		kind = "post"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (id, kind, title, language, source_of, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		it.ID, kind, it.Title, it.Language, it.SourceOf, created.Unix())
	return err
}

// Meta reads a named metadata field.
func (s *SQLite) Meta(ctx context.Context, id, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM item_meta WHERE item_id = ? AND name = ?`, id, name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetMeta writes a named metadata field.
func (s *SQLite) SetMeta(ctx context.Context, id, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO item_meta (item_id, name, value) VALUES (?, ?, ?)
		 ON CONFLICT(item_id, name) DO UPDATE SET value = excluded.value`,
		id, name, value)
	return err
}

// DeleteMeta removes a named metadata field.
func (s *SQLite) DeleteMeta(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM item_meta WHERE item_id = ? AND name = ?`, id, name)
	return err
}

// Translations returns the language → translated-id index for the item.
func (s *SQLite) Translations(ctx context.Context, id string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT language, translated_id FROM translations WHERE item_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var lang, tid string
		if err := rows.Scan(&lang, &tid); err != nil {
			return nil, err
		}
		out[lang] = tid
	}
	return out, rows.Err()
}

// AddTranslation registers a translated item in the index.
func (s *SQLite) AddTranslation(ctx context.Context, id, language, translatedID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translations (item_id, language, translated_id) VALUES (?, ?, ?)
		 ON CONFLICT(item_id, language) DO UPDATE SET translated_id = excluded.translated_id`,
		id, language, translatedID)
	return err
}

// ItemsWithMeta returns ids of items whose named field equals value.
func (s *SQLite) ItemsWithMeta(ctx context.Context, name, value string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id FROM item_meta WHERE name = ? AND value = ? ORDER BY item_id`,
		name, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ Store = (*SQLite)(nil)
