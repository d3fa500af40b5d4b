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

func (s *Store) CreateProject(ctx context.Context, p *model.Project) error {
	if p.Name == "" {
		return fmt.Errorf("%w: project name is required", storage.ErrValidation)
	}
	if p.Status == "" {
		p.Status = "planning"
	}
	if p.ID == "" {
		p.ID = model.NewID()
	}
	now := time.Now().UTC().Truncate(time.Second)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.ModifiedAt = now
	p.Tags = model.NormalizeTags(p.Tags)

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO projects (id, name, summary, description, status, tags, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Summary, p.Description, string(p.Status),
		encodeTags(p.Tags), formatTime(p.CreatedAt), formatTime(p.ModifiedAt))
	if err != nil {
		return dbErr("insert project", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*model.Project, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, name, summary, description, status, tags, created_at, modified_at
		FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func (s *Store) UpdateProject(ctx context.Context, p *model.Project) error {
	p.ModifiedAt = time.Now().UTC().Truncate(time.Second)
	p.Tags = model.NormalizeTags(p.Tags)
	res, err := s.q.ExecContext(ctx, `
		UPDATE projects SET name = ?, summary = ?, description = ?, status = ?, tags = ?, modified_at = ?
		WHERE id = ?`,
		p.Name, p.Summary, p.Description, string(p.Status),
		encodeTags(p.Tags), formatTime(p.ModifiedAt), p.ID)
	if err != nil {
		return dbErr("update project", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: project %s", storage.ErrNotFound, p.ID)
	}
	return nil
}

// DeleteProject removes the project, its features, their tasks, and every
// section and dependency naming the removed ids.
func (s *Store) DeleteProject(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := s.inTx(ctx, func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return dbErr("delete project", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return nil
		}
		deleted = true

		features, err := tx.FindFeatures(ctx, model.Query{ProjectID: id})
		if err != nil {
			return err
		}
		for _, f := range features {
			if _, err := tx.DeleteFeature(ctx, f.ID); err != nil {
				return err
			}
		}
		if _, err := tx.q.ExecContext(ctx,
			`DELETE FROM sections WHERE entity_type = ? AND entity_id = ?`,
			string(model.EntityProject), id); err != nil {
			return dbErr("delete project sections", err)
		}
		return nil
	})
	return deleted, err
}

func (s *Store) FindProjects(ctx context.Context, q model.Query) ([]*model.Project, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, summary, description, status, tags, created_at, modified_at
		FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, dbErr("query projects", err)
	}
	defer rows.Close()

	var out []*model.Project
	for rows.Next() {
		p, err := scanProjectRows(rows)
		if err != nil {
			return nil, err
		}
		if !q.Status.Matches(string(p.Status)) {
			continue
		}
		if !q.MatchesTags(p.Tags) || !q.MatchesText(p.Name, p.Summary, p.Description) {
			continue
		}
		out = append(out, p)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("scan projects", err)
	}
	return out, nil
}

func scanProject(row *sql.Row) (*model.Project, error) {
	var p model.Project
	var status, tags, created, modified string
	err := row.Scan(&p.ID, &p.Name, &p.Summary, &p.Description, &status, &tags, &created, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: project", storage.ErrNotFound)
	}
	if err != nil {
		return nil, dbErr("scan project", err)
	}
	p.Status = model.Status(status)
	p.Tags = decodeTags(tags)
	p.CreatedAt = parseTime(created)
	p.ModifiedAt = parseTime(modified)
	return &p, nil
}

func scanProjectRows(rows *sql.Rows) (*model.Project, error) {
	var p model.Project
	var status, tags, created, modified string
	if err := rows.Scan(&p.ID, &p.Name, &p.Summary, &p.Description, &status, &tags, &created, &modified); err != nil {
		return nil, dbErr("scan project", err)
	}
	p.Status = model.Status(status)
	p.Tags = decodeTags(tags)
	p.CreatedAt = parseTime(created)
	p.ModifiedAt = parseTime(modified)
	return &p, nil
}
