package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// EnsureProject inserts a project if absent and returns the resulting row,
// idempotent under concurrent callers racing the same slug.
func (s *Store) EnsureProject(ctx context.Context, slug, humanKey string) (*Project, error) {
	var out *Project
	err := s.track("ensure_project", func() error {
		return s.withRetry(ctx, "ensure_project", func() error {
			now := time.Now().UTC()
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO projects (slug, human_key, created_at) VALUES (?, ?, ?)
				 ON CONFLICT(slug) DO NOTHING`,
				slug, humanKey, now.Format(time.RFC3339Nano))
			if err != nil && !unique(err) {
				return err
			}
			row := s.db.QueryRowContext(ctx,
				`SELECT id, slug, human_key, created_at FROM projects WHERE slug = ?`, slug)
			p, scanErr := scanProject(row)
			if scanErr != nil {
				return scanErr
			}
			out = p
			return nil
		})
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "ensure_project failed")
	}
	return out, nil
}

// GetProjectBySlug looks up a project, returning apperr.NotFound if absent.
func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*Project, error) {
	var out *Project
	err := s.track("get_project", func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, slug, human_key, created_at FROM projects WHERE slug = ?`, slug)
		p, err := scanProject(row)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err == sql.ErrNoRows || err == ErrNotFound {
		return nil, apperr.Newf(apperr.NotFound, "no project with slug %q", slug)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "get_project failed")
	}
	return out, nil
}

// GetProjectByID looks up a project by its numeric id.
func (s *Store) GetProjectByID(ctx context.Context, id int64) (*Project, error) {
	var out *Project
	err := s.track("get_project_by_id", func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, slug, human_key, created_at FROM projects WHERE id = ?`, id)
		p, err := scanProject(row)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err == sql.ErrNoRows || err == ErrNotFound {
		return nil, apperr.Newf(apperr.NotFound, "no project with id %d", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "get_project_by_id failed")
	}
	return out, nil
}

// ListProjects returns all known projects ordered by slug.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	var out []*Project
	err := s.track("list_projects", func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, slug, human_key, created_at FROM projects ORDER BY slug`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanProject(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "list_projects failed")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var createdAt string
	if err := row.Scan(&p.ID, &p.Slug, &p.HumanKey, &createdAt); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = ts
	return &p, nil
}
