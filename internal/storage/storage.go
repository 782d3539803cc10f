// Package storage defines the cache interface over entity records.
//
// The cache is disposable: the JSONL line logs are the durable source of
// truth, and any backend must be rebuildable from them at any time.
// Consumers depend on this interface rather than a concrete backend so the
// in-memory implementation can stand in for SQLite in tests.
package storage

import (
	"context"
	"errors"

	"github.com/loomworks/loom/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Kind   types.Kind
	Status types.Status
	Tag    string
}

// Matches reports whether an entity passes the filter.
func (f Filter) Matches(e *types.Entity) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Tag != "" && !e.HasTag(f.Tag) {
		return false
	}
	return true
}

// Store is the cache backend.
//
// Get looks up by stable identity; GetByID and GetByPath are secondary
// lookups by human identifier and claiming document path. List returns
// entities in stable order. ReplaceAll swaps the full entity set
// atomically, used when rebuilding the cache from the line logs.
type Store interface {
	Create(ctx context.Context, entity *types.Entity) error
	Get(ctx context.Context, uuid string) (*types.Entity, error)
	GetByID(ctx context.Context, id string) (*types.Entity, error)
	GetByPath(ctx context.Context, path string) (*types.Entity, error)
	Update(ctx context.Context, entity *types.Entity) error
	Delete(ctx context.Context, uuid string) error
	List(ctx context.Context, filter Filter) ([]*types.Entity, error)
	ReplaceAll(ctx context.Context, entities []*types.Entity) error

	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)

	Close() error
}
