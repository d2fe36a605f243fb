package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

// Schema creates the event and event_checkpoint tables. It is idempotent.
//
//go:embed schema.sql
var Schema string

// EnsureSchema creates the tables owned by the event core if they are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
