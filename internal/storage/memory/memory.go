// Package memory implements the storage interface with in-process maps.
// It backs tests and one-shot commands where a database file is overhead.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomworks/loom/internal/storage"
	"github.com/loomworks/loom/internal/types"
)

// Store is a map-backed cache. Entities are deep-copied on the way in and
// out so callers can never mutate cache state through a shared pointer.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*types.Entity // by stable identity
	config   map[string]string
}

var _ storage.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		entities: make(map[string]*types.Entity),
		config:   make(map[string]string),
	}
}

// Create adds a new entity. Creating an existing stable identity is an error.
func (s *Store) Create(ctx context.Context, entity *types.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[entity.UUID]; ok {
		return fmt.Errorf("entity %s already exists", entity.UUID)
	}
	s.entities[entity.UUID] = entity.Clone()
	return nil
}

// Get looks up by stable identity.
func (s *Store) Get(ctx context.Context, uuid string) (*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[uuid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e.Clone(), nil
}

// GetByID looks up by human identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByPath looks up by claiming document path.
func (s *Store) GetByPath(ctx context.Context, path string) (*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities {
		if e.SourcePath == path {
			return e.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

// Update replaces an existing entity wholesale.
func (s *Store) Update(ctx context.Context, entity *types.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[entity.UUID]; !ok {
		return storage.ErrNotFound
	}
	s.entities[entity.UUID] = entity.Clone()
	return nil
}

// Delete removes an entity by stable identity.
func (s *Store) Delete(ctx context.Context, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[uuid]; !ok {
		return storage.ErrNotFound
	}
	delete(s.entities, uuid)
	return nil
}

// List returns matching entities in stable order.
func (s *Store) List(ctx context.Context, filter storage.Filter) ([]*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Entity
	for _, e := range s.entities {
		if filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	types.SortStable(out)
	return out, nil
}

// ReplaceAll swaps the full entity set.
func (s *Store) ReplaceAll(ctx context.Context, entities []*types.Entity) error {
	next := make(map[string]*types.Entity, len(entities))
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return err
		}
		next[e.UUID] = e.Clone()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = next
	return nil
}

// SetConfig stores a key/value pair.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config[key] = value
	return nil
}

// GetConfig reads a key; a missing key is an empty value.
func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config[key], nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
