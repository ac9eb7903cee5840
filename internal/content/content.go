// Package content is the boundary to the content store and the duplication
// primitive. The mission controller reads items, attaches mission metadata
// to them and queries the translation index through the Store interface; it
// creates language variants only through the Duplicator interface.
//
// The duplication primitive may be entirely absent at runtime, so it is
// capability-probed through Available before any call is attempted.
package content

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an item id does not exist.
var ErrNotFound = errors.New("content: item not found")

// Item is a content record. Items are external entities; the mission
// controller treats them as read-only except for the mission meta fields.
type Item struct {
	ID        string
	Kind      string
	Title     string
	Language  string
	SourceOf  string // non-empty when this item is itself a translation
	CreatedAt time.Time
}

// IsTranslation reports whether the item is a language variant of another
// item rather than an original.
func (it *Item) IsTranslation() bool {
	return it.SourceOf != ""
}

// Store is the content-store surface the mission controller depends on.
type Store interface {
	// Item reads one item by id. Returns ErrNotFound for unknown ids.
	Item(ctx context.Context, id string) (*Item, error)

	// Meta reads a named mission metadata field scoped to the item.
	// A missing field reads as ("", false, nil).
	Meta(ctx context.Context, id, name string) (string, bool, error)

	// SetMeta writes a named mission metadata field scoped to the item.
	SetMeta(ctx context.Context, id, name, value string) error

	// DeleteMeta removes a named field. Missing fields are not an error.
	DeleteMeta(ctx context.Context, id, name string) error

	// Translations returns the translation index for the item:
	// language code to translated item id.
	Translations(ctx context.Context, id string) (map[string]string, error)

	// AddTranslation registers a translated item in the index.
	AddTranslation(ctx context.Context, id, language, translatedID string) error

	// ItemsWithMeta returns ids of items whose named field equals value.
	ItemsWithMeta(ctx context.Context, name, value string) ([]string, error)
}

// Duplicator is the external duplication primitive.
type Duplicator interface {
	// Available probes whether the primitive can be called at all.
	Available() bool

	// Duplicate creates a copy of the item in the target language and
	// returns the new item id.
	Duplicate(ctx context.Context, itemID, language string) (string, error)
}

// Unavailable is a Duplicator whose capability probe always fails. The
// daemon installs it when duplication is disabled by configuration.
type Unavailable struct{}

// Available reports false.
func (Unavailable) Available() bool { return false }

// Duplicate always errors; callers are expected to probe first.
func (Unavailable) Duplicate(context.Context, string, string) (string, error) {
	return "", errors.New("content: duplication primitive unavailable")
}

var _ Duplicator = Unavailable{}
