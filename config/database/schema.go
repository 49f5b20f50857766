package database

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notebook (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	user_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS note (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	content TEXT NOT NULL,
	user_id TEXT NOT NULL,
	notebook_id BIGINT REFERENCES notebook(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS note_user_id_idx ON note (user_id);
CREATE INDEX IF NOT EXISTS note_notebook_id_idx ON note (notebook_id);

CREATE TABLE IF NOT EXISTS tags (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS note_tags (
	note_id BIGINT NOT NULL REFERENCES note(id) ON DELETE CASCADE,
	tag_id BIGINT NOT NULL REFERENCES tags(id),
	PRIMARY KEY (note_id, tag_id)
);
`

// Migrate creates any missing tables. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
