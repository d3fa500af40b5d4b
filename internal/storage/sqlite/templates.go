package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
)

// CreateTemplate inserts a template together with its section prototypes.
func (s *Store) CreateTemplate(ctx context.Context, t *model.Template, sections []*model.TemplateSection) error {
	if t.Name == "" {
		return fmt.Errorf("%w: template name is required", storage.ErrValidation)
	}
	if t.TargetEntityType == "" {
		return fmt.Errorf("%w: template target entity type is required", storage.ErrValidation)
	}
	if t.ID == "" {
		t.ID = model.NewID()
	}
	now := time.Now().UTC().Truncate(time.Second)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.ModifiedAt = now
	t.Tags = model.NormalizeTags(t.Tags)

	return s.inTx(ctx, func(tx *Store) error {
		_, err := tx.q.ExecContext(ctx, `
			INSERT INTO templates (id, name, description, target_entity_type, is_built_in, is_enabled, tags, created_at, modified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Name, t.Description, string(t.TargetEntityType),
			boolInt(t.IsBuiltIn), boolInt(t.IsEnabled), encodeTags(t.Tags),
			formatTime(t.CreatedAt), formatTime(t.ModifiedAt))
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("%w: template %q already exists for %s",
					storage.ErrConflict, t.Name, t.TargetEntityType)
			}
			return dbErr("insert template", err)
		}
		for i, sec := range sections {
			if sec.ID == "" {
				sec.ID = model.NewID()
			}
			sec.TemplateID = t.ID
			if sec.ContentFormat == "" {
				sec.ContentFormat = model.FormatMarkdown
			}
			if sec.Ordinal == 0 {
				sec.Ordinal = i
			}
			if _, err := tx.q.ExecContext(ctx, `
				INSERT INTO template_sections (id, template_id, title, usage_description, content, content_format, ordinal, is_required, tags)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sec.ID, sec.TemplateID, sec.Title, sec.UsageDescription, sec.Content,
				string(sec.ContentFormat), sec.Ordinal, boolInt(sec.IsRequired),
				encodeTags(sec.Tags)); err != nil {
				return dbErr("insert template section", err)
			}
		}
		return nil
	})
}

func (s *Store) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, name, description, target_entity_type, is_built_in, is_enabled, tags, created_at, modified_at
		FROM templates WHERE id = ?`, id)
	t, err := scanTemplate(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: template %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, dbErr("scan template", err)
	}
	return t, nil
}

// UpdateTemplate rejects writes to built-in templates.
func (s *Store) UpdateTemplate(ctx context.Context, t *model.Template) error {
	existing, err := s.GetTemplate(ctx, t.ID)
	if err != nil {
		return err
	}
	if existing.IsBuiltIn {
		return fmt.Errorf("%w: built-in template %q cannot be modified", storage.ErrValidation, existing.Name)
	}
	t.ModifiedAt = time.Now().UTC().Truncate(time.Second)
	t.Tags = model.NormalizeTags(t.Tags)
	_, err = s.q.ExecContext(ctx, `
		UPDATE templates SET name = ?, description = ?, target_entity_type = ?, is_enabled = ?, tags = ?, modified_at = ?
		WHERE id = ?`,
		t.Name, t.Description, string(t.TargetEntityType), boolInt(t.IsEnabled),
		encodeTags(t.Tags), formatTime(t.ModifiedAt), t.ID)
	if err != nil {
		return dbErr("update template", err)
	}
	return nil
}

// DeleteTemplate rejects deletes of built-in templates; section prototypes
// are removed by the foreign-key cascade.
func (s *Store) DeleteTemplate(ctx context.Context, id string) (bool, error) {
	existing, err := s.GetTemplate(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if existing.IsBuiltIn {
		return false, fmt.Errorf("%w: built-in template %q cannot be deleted", storage.ErrValidation, existing.Name)
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return false, dbErr("delete template", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) ListTemplates(ctx context.Context, targetType model.EntityType, enabledOnly bool) ([]*model.Template, error) {
	query := `
		SELECT id, name, description, target_entity_type, is_built_in, is_enabled, tags, created_at, modified_at
		FROM templates`
	var clauses []string
	var args []any
	if targetType != "" {
		clauses = append(clauses, "target_entity_type = ?")
		args = append(args, string(targetType))
	}
	if enabledOnly {
		clauses = append(clauses, "is_enabled = 1")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("query templates", err)
	}
	defer rows.Close()

	var out []*model.Template
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, dbErr("scan template", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("scan templates", err)
	}
	return out, nil
}

// ListTemplateSections returns prototypes in ascending ordinal order.
func (s *Store) ListTemplateSections(ctx context.Context, templateID string) ([]*model.TemplateSection, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, template_id, title, usage_description, content, content_format, ordinal, is_required, tags
		FROM template_sections WHERE template_id = ?
		ORDER BY ordinal`, templateID)
	if err != nil {
		return nil, dbErr("query template sections", err)
	}
	defer rows.Close()

	var out []*model.TemplateSection
	for rows.Next() {
		var sec model.TemplateSection
		var format, tags string
		var required int
		if err := rows.Scan(&sec.ID, &sec.TemplateID, &sec.Title, &sec.UsageDescription,
			&sec.Content, &format, &sec.Ordinal, &required, &tags); err != nil {
			return nil, dbErr("scan template section", err)
		}
		sec.ContentFormat = model.ContentFormat(format)
		sec.IsRequired = required != 0
		sec.Tags = decodeTags(tags)
		out = append(out, &sec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("scan template sections", err)
	}
	return out, nil
}

func scanTemplate(scan func(dest ...any) error) (*model.Template, error) {
	var t model.Template
	var target, tags, created, modified string
	var builtIn, enabled int
	err := scan(&t.ID, &t.Name, &t.Description, &target, &builtIn, &enabled, &tags, &created, &modified)
	if err != nil {
		return nil, err
	}
	t.TargetEntityType = model.EntityType(target)
	t.IsBuiltIn = builtIn != 0
	t.IsEnabled = enabled != 0
	t.Tags = decodeTags(tags)
	t.CreatedAt = parseTime(created)
	t.ModifiedAt = parseTime(modified)
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
