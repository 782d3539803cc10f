package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loomworks/loom/internal/storage"
	"github.com/loomworks/loom/internal/types"
)

const entityColumns = `uuid, id, kind, title, body, priority, status, parent_id,
	created_at, updated_at, relationships, tags, feedback, source_path`

// Create inserts a new entity. Inserting an existing stable identity fails
// on the primary key.
func (s *Store) Create(ctx context.Context, entity *types.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	args, err := entityArgs(entity)
	if err != nil {
		return err
	}
	err = retryWrite(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO entities (`+entityColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("creating %s: %w", entity.UUID, err)
	}
	return nil
}

// Get looks up by stable identity.
func (s *Store) Get(ctx context.Context, uuid string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE uuid = ?`, uuid)
	return scanEntity(row)
}

// GetByID looks up by human identifier. With collisions resolved before the
// cache is written, at most one row matches; ties break on earliest creation.
func (s *Store) GetByID(ctx context.Context, id string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ?
		 ORDER BY created_at, uuid LIMIT 1`, id)
	return scanEntity(row)
}

// GetByPath looks up by claiming document path.
func (s *Store) GetByPath(ctx context.Context, path string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE source_path = ?
		 ORDER BY created_at, uuid LIMIT 1`, path)
	return scanEntity(row)
}

// Update replaces an existing entity wholesale.
func (s *Store) Update(ctx context.Context, entity *types.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	args, err := entityArgs(entity)
	if err != nil {
		return err
	}
	// Shift uuid from first arg to the WHERE position.
	args = append(args[1:], args[0])
	var res sql.Result
	err = retryWrite(ctx, func() error {
		var err error
		res, err = s.db.ExecContext(ctx, `UPDATE entities SET
			id = ?, kind = ?, title = ?, body = ?, priority = ?, status = ?,
			parent_id = ?, created_at = ?, updated_at = ?, relationships = ?,
			tags = ?, feedback = ?, source_path = ?
			WHERE uuid = ?`, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("updating %s: %w", entity.UUID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes an entity by stable identity.
func (s *Store) Delete(ctx context.Context, uuid string) error {
	var res sql.Result
	err := retryWrite(ctx, func() error {
		var err error
		res, err = s.db.ExecContext(ctx, `DELETE FROM entities WHERE uuid = ?`, uuid)
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", uuid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List returns matching entities in stable order.
func (s *Store) List(ctx context.Context, filter storage.Filter) ([]*types.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities`
	var conds []string
	var args []any
	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at, id, uuid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	var out []*types.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		// Tag filtering happens after the JSON column decodes.
		if filter.Tag != "" && !e.HasTag(filter.Tag) {
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	types.SortStable(out)
	return out, nil
}

// ReplaceAll swaps the full entity set in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, entities []*types.Entity) error {
	return retryWrite(ctx, func() error {
		return s.replaceAll(ctx, entities)
	})
}

func (s *Store) replaceAll(ctx context.Context, entities []*types.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return fmt.Errorf("clearing entities: %w", err)
	}
	for _, entity := range entities {
		if err := entity.Validate(); err != nil {
			return err
		}
		args, err := entityArgs(entity)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO entities (`+entityColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
			return fmt.Errorf("inserting %s: %w", entity.UUID, err)
		}
	}
	return tx.Commit()
}

func entityArgs(e *types.Entity) ([]any, error) {
	rels, err := json.Marshal(orEmpty(e.Relationships))
	if err != nil {
		return nil, fmt.Errorf("encoding relationships for %s: %w", e.UUID, err)
	}
	tags, err := json.Marshal(orEmpty(e.Tags))
	if err != nil {
		return nil, fmt.Errorf("encoding tags for %s: %w", e.UUID, err)
	}
	feedback, err := json.Marshal(orEmpty(e.Feedback))
	if err != nil {
		return nil, fmt.Errorf("encoding feedback for %s: %w", e.UUID, err)
	}
	return []any{
		e.UUID, e.ID, string(e.Kind), e.Title, e.Body, e.Priority,
		string(e.Status), e.ParentID,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.UpdatedAt.UTC().Format(time.RFC3339Nano),
		string(rels), string(tags), string(feedback), e.SourcePath,
	}, nil
}

// orEmpty keeps nil slices encoding as [] rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*types.Entity, error) {
	var e types.Entity
	var kind, status, createdAt, updatedAt, rels, tags, feedback string
	err := row.Scan(&e.UUID, &e.ID, &kind, &e.Title, &e.Body, &e.Priority,
		&status, &e.ParentID, &createdAt, &updatedAt, &rels, &tags, &feedback,
		&e.SourcePath)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entity: %w", err)
	}

	e.Kind = types.Kind(kind)
	e.Status = types.Status(status)
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for %s: %w", e.UUID, err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at for %s: %w", e.UUID, err)
	}
	if err := json.Unmarshal([]byte(rels), &e.Relationships); err != nil {
		return nil, fmt.Errorf("decoding relationships for %s: %w", e.UUID, err)
	}
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags for %s: %w", e.UUID, err)
	}
	if err := json.Unmarshal([]byte(feedback), &e.Feedback); err != nil {
		return nil, fmt.Errorf("decoding feedback for %s: %w", e.UUID, err)
	}
	if len(e.Relationships) == 0 {
		e.Relationships = nil
	}
	if len(e.Tags) == 0 {
		e.Tags = nil
	}
	if len(e.Feedback) == 0 {
		e.Feedback = nil
	}
	return &e, nil
}
