package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/taskvault/taskvault/internal/storage"
)

// inTx runs fn inside a transaction, reusing the current one when this
// Store already is a transaction view.
func (s *Store) inTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	return s.RunInTransaction(ctx, func(tx storage.Store) error {
		return fn(tx.(*Store))
	})
}

// Tags are stored as a JSON array in a TEXT column.
func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeTags(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil
	}
	return tags
}

// nullable maps an empty string to SQL NULL for optional foreign keys.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func fromNull(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
