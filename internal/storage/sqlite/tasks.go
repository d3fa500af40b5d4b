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

func (s *Store) CreateTask(ctx context.Context, t *model.Task) error {
	if t.Title == "" {
		return fmt.Errorf("%w: task title is required", storage.ErrValidation)
	}
	if t.Complexity == 0 {
		t.Complexity = 5
	}
	if t.Complexity < 1 || t.Complexity > 10 {
		return fmt.Errorf("%w: complexity must be between 1 and 10", storage.ErrValidation)
	}
	if t.Status == "" {
		t.Status = "pending"
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if t.FeatureID != "" {
		if _, err := s.GetFeature(ctx, t.FeatureID); err != nil {
			return err
		}
	}
	if t.ProjectID != "" {
		if _, err := s.GetProject(ctx, t.ProjectID); err != nil {
			return err
		}
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

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tasks (id, title, summary, description, status, priority, complexity, feature_id, project_id, tags, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Summary, t.Description, string(t.Status), string(t.Priority),
		t.Complexity, nullable(t.FeatureID), nullable(t.ProjectID),
		encodeTags(t.Tags), formatTime(t.CreatedAt), formatTime(t.ModifiedAt))
	if err != nil {
		return dbErr("insert task", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, title, summary, description, status, priority, complexity, feature_id, project_id, tags, created_at, modified_at
		FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, dbErr("scan task", err)
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t *model.Task) error {
	if t.Complexity < 1 || t.Complexity > 10 {
		return fmt.Errorf("%w: complexity must be between 1 and 10", storage.ErrValidation)
	}
	if t.FeatureID != "" {
		if _, err := s.GetFeature(ctx, t.FeatureID); err != nil {
			return err
		}
	}
	if t.ProjectID != "" {
		if _, err := s.GetProject(ctx, t.ProjectID); err != nil {
			return err
		}
	}
	t.ModifiedAt = time.Now().UTC().Truncate(time.Second)
	t.Tags = model.NormalizeTags(t.Tags)
	res, err := s.q.ExecContext(ctx, `
		UPDATE tasks SET title = ?, summary = ?, description = ?, status = ?, priority = ?, complexity = ?, feature_id = ?, project_id = ?, tags = ?, modified_at = ?
		WHERE id = ?`,
		t.Title, t.Summary, t.Description, string(t.Status), string(t.Priority),
		t.Complexity, nullable(t.FeatureID), nullable(t.ProjectID),
		encodeTags(t.Tags), formatTime(t.ModifiedAt), t.ID)
	if err != nil {
		return dbErr("update task", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: task %s", storage.ErrNotFound, t.ID)
	}
	return nil
}

// DeleteTask removes the task plus its sections and dependency edges.
func (s *Store) DeleteTask(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := s.inTx(ctx, func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return dbErr("delete task", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return nil
		}
		deleted = true

		if _, err := tx.q.ExecContext(ctx,
			`DELETE FROM sections WHERE entity_type = ? AND entity_id = ?`,
			string(model.EntityTask), id); err != nil {
			return dbErr("delete task sections", err)
		}
		if _, err := tx.q.ExecContext(ctx,
			`DELETE FROM dependencies WHERE from_task_id = ? OR to_task_id = ?`, id, id); err != nil {
			return dbErr("delete task dependencies", err)
		}
		return nil
	})
	return deleted, err
}

func (s *Store) FindTasks(ctx context.Context, q model.Query) ([]*model.Task, error) {
	query := `
		SELECT id, title, summary, description, status, priority, complexity, feature_id, project_id, tags, created_at, modified_at
		FROM tasks`
	var args []any
	switch {
	case q.FeatureID != "":
		query += ` WHERE feature_id = ?`
		args = append(args, q.FeatureID)
	case q.ProjectID != "":
		// A task without an explicit project inherits it from its feature.
		query += ` WHERE project_id = ? OR (project_id IS NULL AND feature_id IN (SELECT id FROM features WHERE project_id = ?))`
		args = append(args, q.ProjectID, q.ProjectID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("query tasks", err)
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, dbErr("scan task", err)
		}
		if !q.Status.Matches(string(t.Status)) || !q.Priority.Matches(string(t.Priority)) {
			continue
		}
		if !q.MatchesTags(t.Tags) || !q.MatchesText(t.Title, t.Summary, t.Description) {
			continue
		}
		out = append(out, t)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("scan tasks", err)
	}
	return out, nil
}

func scanTask(scan func(dest ...any) error) (*model.Task, error) {
	var t model.Task
	var status, priority, tags, created, modified string
	var featureID, projectID sql.NullString
	err := scan(&t.ID, &t.Title, &t.Summary, &t.Description, &status, &priority,
		&t.Complexity, &featureID, &projectID, &tags, &created, &modified)
	if err != nil {
		return nil, err
	}
	t.Status = model.Status(status)
	t.Priority = model.Priority(priority)
	t.FeatureID = fromNull(featureID)
	t.ProjectID = fromNull(projectID)
	t.Tags = decodeTags(tags)
	t.CreatedAt = parseTime(created)
	t.ModifiedAt = parseTime(modified)
	return &t, nil
}
