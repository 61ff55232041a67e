package store

import (
	"context"

	"github.com/echovault/echovault/internal/model"
)

// Store exposes persistence operations required by the journal core.
// Implementations live under internal/store/<driver>/ (postgres, sqlite, memstore).
type Store interface {
	Entries() Entries
}

// Entries is the durable document store for journal entries.
type Entries interface {
	// Create persists e and returns it with the store-assigned ID.
	Create(ctx context.Context, e *model.Entry) (*model.Entry, error)
	// Update merges patch into the stored entry; nil patch fields are untouched.
	Update(ctx context.Context, userID, entryID string, patch model.EntryPatch) (*model.Entry, error)
	GetByID(ctx context.Context, userID, entryID string) (*model.Entry, error)
	// List returns entries newest first (by CreatedAt).
	List(ctx context.Context, req model.ListEntriesRequest) ([]*model.Entry, error)
	// Subscribe pushes a fresh snapshot of the matching entries whenever they change.
	// The channel is closed when ctx is done.
	Subscribe(ctx context.Context, req model.ListEntriesRequest) (<-chan []*model.Entry, error)
}
