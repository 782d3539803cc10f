package sqlite

import (
	"context"
	"fmt"
)

// Relationships, tags, and feedback are stored as JSON documents on the
// entity row. They are only ever read and written whole, matching the
// line-log record shape, so relational decomposition buys nothing here.
const schema = `
CREATE TABLE IF NOT EXISTS entities (
	uuid          TEXT PRIMARY KEY,
	id            TEXT NOT NULL,
	kind          TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	body          TEXT NOT NULL DEFAULT '',
	priority      INTEGER NOT NULL DEFAULT 2,
	status        TEXT NOT NULL DEFAULT '',
	parent_id     TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	relationships TEXT NOT NULL DEFAULT '[]',
	tags          TEXT NOT NULL DEFAULT '[]',
	feedback      TEXT NOT NULL DEFAULT '[]',
	source_path   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_entities_id ON entities(id);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
CREATE INDEX IF NOT EXISTS idx_entities_source_path ON entities(source_path);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}
