package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
)

// AddDependency inserts a directed edge. Self-loops are rejected here;
// BLOCKS cycle checking is the dependency graph engine's job, done inside
// the same transaction before calling this.
func (s *Store) AddDependency(ctx context.Context, d *model.Dependency) error {
	if d.FromTaskID == d.ToTaskID {
		return fmt.Errorf("%w: a task cannot depend on itself", storage.ErrValidation)
	}
	if _, err := s.GetTask(ctx, d.FromTaskID); err != nil {
		return err
	}
	if _, err := s.GetTask(ctx, d.ToTaskID); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = model.NewID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO dependencies (id, from_task_id, to_task_id, type, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.FromTaskID, d.ToTaskID, string(d.Type), formatTime(d.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: dependency %s -%s-> %s already exists",
				storage.ErrConflict, d.FromTaskID, d.Type, d.ToTaskID)
		}
		return dbErr("insert dependency", err)
	}
	return nil
}

func (s *Store) RemoveDependency(ctx context.Context, id string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM dependencies WHERE id = ?`, id)
	if err != nil {
		return false, dbErr("delete dependency", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) RemoveDependencyEdge(ctx context.Context, fromTaskID, toTaskID string, depType model.DependencyType) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM dependencies WHERE from_task_id = ? AND to_task_id = ? AND type = ?`,
		fromTaskID, toTaskID, string(depType))
	if err != nil {
		return false, dbErr("delete dependency edge", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListDependencies returns every edge touching the task, either direction.
func (s *Store) ListDependencies(ctx context.Context, taskID string) ([]*model.Dependency, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, from_task_id, to_task_id, type, created_at
		FROM dependencies WHERE from_task_id = ? OR to_task_id = ?
		ORDER BY created_at, id`, taskID, taskID)
	if err != nil {
		return nil, dbErr("query dependencies", err)
	}
	return collectDependencies(rows)
}

func (s *Store) AllDependencies(ctx context.Context) ([]*model.Dependency, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, from_task_id, to_task_id, type, created_at
		FROM dependencies ORDER BY created_at, id`)
	if err != nil {
		return nil, dbErr("query dependencies", err)
	}
	return collectDependencies(rows)
}

func collectDependencies(rows *sql.Rows) ([]*model.Dependency, error) {
	defer rows.Close()
	var out []*model.Dependency
	for rows.Next() {
		var d model.Dependency
		var depType, created string
		if err := rows.Scan(&d.ID, &d.FromTaskID, &d.ToTaskID, &depType, &created); err != nil {
			return nil, dbErr("scan dependency", err)
		}
		d.Type = model.DependencyType(depType)
		d.CreatedAt = parseTime(created)
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("scan dependencies", err)
	}
	return out, nil
}
