package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
)

// tagTables lists the entity tables that carry a tags column, with the
// entity-type label used in usage reports.
var tagTables = []struct {
	table string
	kind  model.EntityType
}{
	{"projects", model.EntityProject},
	{"features", model.EntityFeature},
	{"tasks", model.EntityTask},
}

// ListTags aggregates tag usage counts across projects, features and tasks.
// Matching is case-insensitive; the first-seen casing is reported.
func (s *Store) ListTags(ctx context.Context) ([]model.TagCount, error) {
	counts := make(map[string]*model.TagCount)
	err := s.forEachTagged(ctx, func(_ model.EntityType, _ string, tags []string) {
		for _, t := range tags {
			key := strings.ToLower(t)
			if c, ok := counts[key]; ok {
				c.Count++
			} else {
				counts[key] = &model.TagCount{Tag: t, Count: 1}
			}
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.TagCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	model.SortTagCounts(out, true)
	return out, nil
}

// GetTagUsage reports the ids of every entity currently holding tag.
func (s *Store) GetTagUsage(ctx context.Context, tag string) (*storage.TagUsage, error) {
	usage := &storage.TagUsage{}
	err := s.forEachTagged(ctx, func(kind model.EntityType, id string, tags []string) {
		if !model.HasTag(tags, tag) {
			return
		}
		switch kind {
		case model.EntityProject:
			usage.Projects = append(usage.Projects, id)
		case model.EntityFeature:
			usage.Features = append(usage.Features, id)
		case model.EntityTask:
			usage.Tasks = append(usage.Tasks, id)
		}
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// RenameTag atomically relabels oldTag to newTag on every entity that holds
// it, returning the number of entities rewritten. Renaming onto a tag an
// entity already holds would silently merge the two, so that is a conflict.
func (s *Store) RenameTag(ctx context.Context, oldTag, newTag string) (int, error) {
	oldTag = strings.TrimSpace(oldTag)
	newTag = strings.TrimSpace(newTag)
	if oldTag == "" || newTag == "" {
		return 0, fmt.Errorf("%w: tag names must be non-empty", storage.ErrValidation)
	}
	if strings.EqualFold(oldTag, newTag) {
		return 0, fmt.Errorf("%w: old and new tag are the same", storage.ErrValidation)
	}

	updated := 0
	err := s.inTx(ctx, func(tx *Store) error {
		type pending struct {
			table string
			id    string
			tags  []string
		}
		var work []pending

		err := tx.forEachTagged(ctx, func(kind model.EntityType, id string, tags []string) {
			if !model.HasTag(tags, oldTag) {
				return
			}
			table := ""
			for _, tt := range tagTables {
				if tt.kind == kind {
					table = tt.table
				}
			}
			work = append(work, pending{table: table, id: id, tags: tags})
		})
		if err != nil {
			return err
		}

		for _, w := range work {
			if model.HasTag(w.tags, newTag) {
				return fmt.Errorf("%w: entity %s already holds tag %q", storage.ErrConflict, w.id, newTag)
			}
		}
		for _, w := range work {
			renamed := make([]string, 0, len(w.tags))
			for _, t := range w.tags {
				if strings.EqualFold(t, oldTag) {
					renamed = append(renamed, newTag)
				} else {
					renamed = append(renamed, t)
				}
			}
			if _, err := tx.q.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET tags = ? WHERE id = ?`, w.table),
				encodeTags(renamed), w.id); err != nil {
				return dbErr("rename tag", err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// forEachTagged streams (entityType, id, tags) for every entity row.
func (s *Store) forEachTagged(ctx context.Context, fn func(kind model.EntityType, id string, tags []string)) error {
	for _, tt := range tagTables {
		rows, err := s.q.QueryContext(ctx,
			fmt.Sprintf(`SELECT id, tags FROM %s ORDER BY created_at, id`, tt.table))
		if err != nil {
			return dbErr("query tags", err)
		}
		for rows.Next() {
			var id, tags string
			if err := rows.Scan(&id, &tags); err != nil {
				rows.Close()
				return dbErr("scan tags", err)
			}
			fn(tt.kind, id, decodeTags(tags))
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return dbErr("scan tags", err)
		}
		rows.Close()
	}
	return nil
}
