package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
)

func (s *Store) CreateSection(ctx context.Context, sec *model.Section) error {
	if sec.Title == "" {
		return fmt.Errorf("%w: section title is required", storage.ErrValidation)
	}
	if sec.EntityID == "" {
		return fmt.Errorf("%w: section entity id is required", storage.ErrValidation)
	}
	// Negative ordinal means append after the entity's current maximum.
	if sec.Ordinal < 0 {
		row := s.q.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(ordinal) + 1, 0) FROM sections
			WHERE entity_type = ? AND entity_id = ?`, string(sec.EntityType), sec.EntityID)
		if err := row.Scan(&sec.Ordinal); err != nil {
			return dbErr("next ordinal", err)
		}
	}
	if sec.ContentFormat == "" {
		sec.ContentFormat = model.FormatMarkdown
	}
	if sec.ID == "" {
		sec.ID = model.NewID()
	}
	now := time.Now().UTC().Truncate(time.Second)
	if sec.CreatedAt.IsZero() {
		sec.CreatedAt = now
	}
	sec.ModifiedAt = now
	sec.Tags = model.NormalizeTags(sec.Tags)

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sections (id, entity_type, entity_id, title, usage_description, content, content_format, ordinal, tags, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sec.ID, string(sec.EntityType), sec.EntityID, sec.Title, sec.UsageDescription,
		sec.Content, string(sec.ContentFormat), sec.Ordinal, encodeTags(sec.Tags),
		formatTime(sec.CreatedAt), formatTime(sec.ModifiedAt))
	if err != nil {
		return dbErr("insert section", err)
	}
	return nil
}

func (s *Store) GetSection(ctx context.Context, id string) (*model.Section, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, entity_type, entity_id, title, usage_description, content, content_format, ordinal, tags, created_at, modified_at
		FROM sections WHERE id = ?`, id)
	sec, err := scanSection(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: section %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, dbErr("scan section", err)
	}
	return sec, nil
}

func (s *Store) UpdateSection(ctx context.Context, sec *model.Section) error {
	if sec.Ordinal < 0 {
		return fmt.Errorf("%w: ordinal must be non-negative", storage.ErrValidation)
	}
	sec.ModifiedAt = time.Now().UTC().Truncate(time.Second)
	sec.Tags = model.NormalizeTags(sec.Tags)
	res, err := s.q.ExecContext(ctx, `
		UPDATE sections SET title = ?, usage_description = ?, content = ?, content_format = ?, ordinal = ?, tags = ?, modified_at = ?
		WHERE id = ?`,
		sec.Title, sec.UsageDescription, sec.Content, string(sec.ContentFormat),
		sec.Ordinal, encodeTags(sec.Tags), formatTime(sec.ModifiedAt), sec.ID)
	if err != nil {
		return dbErr("update section", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: section %s", storage.ErrNotFound, sec.ID)
	}
	return nil
}

func (s *Store) DeleteSection(ctx context.Context, id string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM sections WHERE id = ?`, id)
	if err != nil {
		return false, dbErr("delete section", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListSections returns the entity's sections in ascending ordinal order.
func (s *Store) ListSections(ctx context.Context, entityType model.EntityType, entityID string) ([]*model.Section, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, title, usage_description, content, content_format, ordinal, tags, created_at, modified_at
		FROM sections WHERE entity_type = ? AND entity_id = ?
		ORDER BY ordinal, created_at`, string(entityType), entityID)
	if err != nil {
		return nil, dbErr("query sections", err)
	}
	defer rows.Close()

	var out []*model.Section
	for rows.Next() {
		sec, err := scanSection(rows.Scan)
		if err != nil {
			return nil, dbErr("scan section", err)
		}
		out = append(out, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("scan sections", err)
	}
	return out, nil
}

// ReorderSections rewrites ordinals to be contiguous in the given order.
// Every section of the entity must appear in orderedIDs exactly once.
func (s *Store) ReorderSections(ctx context.Context, entityType model.EntityType, entityID string, orderedIDs []string) error {
	return s.inTx(ctx, func(tx *Store) error {
		existing, err := tx.ListSections(ctx, entityType, entityID)
		if err != nil {
			return err
		}
		if len(existing) != len(orderedIDs) {
			return fmt.Errorf("%w: reorder must name all %d sections, got %d",
				storage.ErrValidation, len(existing), len(orderedIDs))
		}
		byID := make(map[string]bool, len(existing))
		for _, sec := range existing {
			byID[sec.ID] = true
		}
		now := formatTime(time.Now())
		for i, id := range orderedIDs {
			if !byID[id] {
				return fmt.Errorf("%w: section %s does not belong to entity", storage.ErrValidation, id)
			}
			if _, err := tx.q.ExecContext(ctx,
				`UPDATE sections SET ordinal = ?, modified_at = ? WHERE id = ?`, i, now, id); err != nil {
				return dbErr("reorder section", err)
			}
		}
		return nil
	})
}

func scanSection(scan func(dest ...any) error) (*model.Section, error) {
	var sec model.Section
	var entityType, format, tags, created, modified string
	err := scan(&sec.ID, &entityType, &sec.EntityID, &sec.Title, &sec.UsageDescription,
		&sec.Content, &format, &sec.Ordinal, &tags, &created, &modified)
	if err != nil {
		return nil, err
	}
	sec.EntityType = model.EntityType(entityType)
	sec.ContentFormat = model.ContentFormat(format)
	sec.Tags = decodeTags(tags)
	sec.CreatedAt = parseTime(created)
	sec.ModifiedAt = parseTime(modified)
	return &sec, nil
}
