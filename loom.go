// Package loom provides a minimal public API for embedding the entity
// store in other Go programs.
//
// Most integrations should drive the lm CLI or read the JSONL line logs
// directly. This package exports only the essential types and constructors
// for programs that want the storage and sync layers in-process.
package loom

import (
	"context"

	"github.com/loomworks/loom/internal/configfile"
	"github.com/loomworks/loom/internal/storage"
	"github.com/loomworks/loom/internal/storage/memory"
	"github.com/loomworks/loom/internal/storage/sqlite"
	"github.com/loomworks/loom/internal/syncer"
	"github.com/loomworks/loom/internal/types"
)

// Core types for working with entities
type (
	Entity       = types.Entity
	Kind         = types.Kind
	Status       = types.Status
	Relationship = types.Relationship
	Feedback     = types.Feedback
	Filter       = storage.Filter
	Store        = storage.Store
	Config       = configfile.Config
	Syncer       = syncer.Syncer
)

// Kind constants
const (
	KindSpec  = types.KindSpec
	KindIssue = types.KindIssue
)

// Status constants
const (
	StatusOpen       = types.StatusOpen
	StatusInProgress = types.StatusInProgress
	StatusBlocked    = types.StatusBlocked
	StatusClosed     = types.StatusClosed
)

// ErrNotFound is returned by store lookups for absent entities.
var ErrNotFound = storage.ErrNotFound

// OpenStore opens the SQLite cache at path, creating it if needed.
func OpenStore(ctx context.Context, path string) (Store, error) {
	return sqlite.New(ctx, path)
}

// NewMemoryStore returns an in-process store, useful for tests.
func NewMemoryStore() Store {
	return memory.New()
}

// DefaultConfig returns the workspace configuration defaults.
func DefaultConfig() *Config {
	return configfile.DefaultConfig()
}

// NewSyncer builds a document/cache sync orchestrator.
func NewSyncer(store Store, cfg *Config) *Syncer {
	return syncer.New(store, cfg)
}

// FindWorkspace walks up from startDir to the nearest .loom directory.
func FindWorkspace(startDir string) (string, error) {
	return configfile.FindWorkspace(startDir)
}
