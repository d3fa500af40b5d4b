package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// migration is one versioned, idempotent schema change applied after the
// base schema. The base schema itself is created unconditionally in Open;
// migrations cover changes that ALTER existing deployments.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, q querier) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "template_sections_required_flag",
		apply: func(ctx context.Context, q querier) error {
			// Older databases predate is_required; ALTER is a no-op error
			// when the column already exists.
			_, err := q.ExecContext(ctx,
				`ALTER TABLE template_sections ADD COLUMN is_required INTEGER NOT NULL DEFAULT 0`)
			if err != nil && !isDuplicateColumn(err) {
				return err
			}
			return nil
		},
	},
	{
		version: 2,
		name:    "dependencies_created_index",
		apply: func(ctx context.Context, q querier) error {
			_, err := q.ExecContext(ctx,
				`CREATE INDEX IF NOT EXISTS idx_dependencies_type ON dependencies(type)`)
			return err
		},
	},
}

func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}

// migrate applies every migration newer than the recorded schema version.
func (s *Store) migrate(ctx context.Context) error {
	var current int
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		s.logger.Info("applying migration", "version", m.version, "name", m.name)
		if err := m.apply(ctx, s.q); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := s.q.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			m.version, formatTime(time.Now())); err != nil {
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
	}
	return nil
}
