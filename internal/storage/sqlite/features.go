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

func (s *Store) CreateFeature(ctx context.Context, f *model.Feature) error {
	if f.Name == "" {
		return fmt.Errorf("%w: feature name is required", storage.ErrValidation)
	}
	if f.Status == "" {
		f.Status = "planning"
	}
	if f.Priority == "" {
		f.Priority = model.PriorityMedium
	}
	if f.ProjectID != "" {
		if _, err := s.GetProject(ctx, f.ProjectID); err != nil {
			return err
		}
	}
	if f.ID == "" {
		f.ID = model.NewID()
	}
	now := time.Now().UTC().Truncate(time.Second)
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.ModifiedAt = now
	f.Tags = model.NormalizeTags(f.Tags)

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO features (id, name, summary, description, status, priority, project_id, tags, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Summary, f.Description, string(f.Status), string(f.Priority),
		nullable(f.ProjectID), encodeTags(f.Tags), formatTime(f.CreatedAt), formatTime(f.ModifiedAt))
	if err != nil {
		return dbErr("insert feature", err)
	}
	return nil
}

func (s *Store) GetFeature(ctx context.Context, id string) (*model.Feature, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, name, summary, description, status, priority, project_id, tags, created_at, modified_at
		FROM features WHERE id = ?`, id)
	f, err := scanFeature(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: feature %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, dbErr("scan feature", err)
	}
	return f, nil
}

func (s *Store) UpdateFeature(ctx context.Context, f *model.Feature) error {
	if f.ProjectID != "" {
		if _, err := s.GetProject(ctx, f.ProjectID); err != nil {
			return err
		}
	}
	f.ModifiedAt = time.Now().UTC().Truncate(time.Second)
	f.Tags = model.NormalizeTags(f.Tags)
	res, err := s.q.ExecContext(ctx, `
		UPDATE features SET name = ?, summary = ?, description = ?, status = ?, priority = ?, project_id = ?, tags = ?, modified_at = ?
		WHERE id = ?`,
		f.Name, f.Summary, f.Description, string(f.Status), string(f.Priority),
		nullable(f.ProjectID), encodeTags(f.Tags), formatTime(f.ModifiedAt), f.ID)
	if err != nil {
		return dbErr("update feature", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: feature %s", storage.ErrNotFound, f.ID)
	}
	return nil
}

// DeleteFeature removes the feature, its tasks, and every section and
// dependency naming the removed ids.
func (s *Store) DeleteFeature(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := s.inTx(ctx, func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx, `DELETE FROM features WHERE id = ?`, id)
		if err != nil {
			return dbErr("delete feature", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return nil
		}
		deleted = true

		tasks, err := tx.FindTasks(ctx, model.Query{FeatureID: id})
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if _, err := tx.DeleteTask(ctx, t.ID); err != nil {
				return err
			}
		}
		if _, err := tx.q.ExecContext(ctx,
			`DELETE FROM sections WHERE entity_type = ? AND entity_id = ?`,
			string(model.EntityFeature), id); err != nil {
			return dbErr("delete feature sections", err)
		}
		return nil
	})
	return deleted, err
}

func (s *Store) FindFeatures(ctx context.Context, q model.Query) ([]*model.Feature, error) {
	query := `
		SELECT id, name, summary, description, status, priority, project_id, tags, created_at, modified_at
		FROM features`
	var args []any
	if q.ProjectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, q.ProjectID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("query features", err)
	}
	defer rows.Close()

	var out []*model.Feature
	for rows.Next() {
		f, err := scanFeature(rows.Scan)
		if err != nil {
			return nil, dbErr("scan feature", err)
		}
		if !q.Status.Matches(string(f.Status)) || !q.Priority.Matches(string(f.Priority)) {
			continue
		}
		if !q.MatchesTags(f.Tags) || !q.MatchesText(f.Name, f.Summary, f.Description) {
			continue
		}
		out = append(out, f)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("scan features", err)
	}
	return out, nil
}

func scanFeature(scan func(dest ...any) error) (*model.Feature, error) {
	var f model.Feature
	var status, priority, tags, created, modified string
	var projectID sql.NullString
	err := scan(&f.ID, &f.Name, &f.Summary, &f.Description, &status, &priority,
		&projectID, &tags, &created, &modified)
	if err != nil {
		return nil, err
	}
	f.Status = model.Status(status)
	f.Priority = model.Priority(priority)
	f.ProjectID = fromNull(projectID)
	f.Tags = decodeTags(tags)
	f.CreatedAt = parseTime(created)
	f.ModifiedAt = parseTime(modified)
	return &f, nil
}
