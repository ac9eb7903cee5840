package content

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// LocalDuplicator implements the duplication primitive against the local
// content store: the copy is a new item in the target language linked back
// to the original through the translation index.
type LocalDuplicator struct {
	store *SQLite
}

// NewLocalDuplicator builds a duplicator over the shared content store.
func NewLocalDuplicator(store *SQLite) *LocalDuplicator {
	return &LocalDuplicator{store: store}
}

// Available reports whether the primitive can be used.
func (d *LocalDuplicator) Available() bool {
	return d.store != nil
}

// Duplicate creates the language copy and registers it in the translation
// index. The new item id is always distinct from the source id.
func (d *LocalDuplicator) Duplicate(ctx context.Context, itemID, language string) (string, error) {
	src, err := d.store.Item(ctx, itemID)
	if err != nil {
		return "", fmt.Errorf("duplicate %s into %s: %w", itemID, language, err)
	}
	copy := &Item{
		ID:       uuid.NewString(),
		Kind:     src.Kind,
		Title:    src.Title,
		Language: language,
		SourceOf: src.ID,
	}
	if err := d.store.CreateItem(ctx, copy); err != nil {
		return "", fmt.Errorf("duplicate %s into %s: %w", itemID, language, err)
	}
	if err := d.store.AddTranslation(ctx, src.ID, language, copy.ID); err != nil {
		return "", fmt.Errorf("register translation %s/%s: %w", itemID, language, err)
	}
	return copy.ID, nil
}

var _ Duplicator = (*LocalDuplicator)(nil)
