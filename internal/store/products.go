package store

import (
	"context"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// EnsureProduct inserts a product by key if absent, idempotent like
// EnsureProject. Gated behind MCP.ProductBusEnabled at the tool layer.
func (s *Store) EnsureProduct(ctx context.Context, key, name string) (*Product, error) {
	var out *Product
	err := s.track("ensure_product", func() error {
		return s.withRetry(ctx, "ensure_product", func() error {
			now := time.Now().UTC()
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO products (key, name, created_at) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING`,
				key, name, now.Format(time.RFC3339Nano))
			if err != nil && !unique(err) {
				return err
			}
			row := s.db.QueryRowContext(ctx, `SELECT id, key, name, created_at FROM products WHERE key = ?`, key)
			var p Product
			var createdAt string
			if err := row.Scan(&p.ID, &p.Key, &p.Name, &createdAt); err != nil {
				return err
			}
			ts, err := time.Parse(time.RFC3339Nano, createdAt)
			if err != nil {
				return err
			}
			p.CreatedAt = ts
			out = &p
			return nil
		})
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "ensure_product failed")
	}
	return out, nil
}

// LinkProductProject associates a project with a product, idempotent.
func (s *Store) LinkProductProject(ctx context.Context, productID, projectID int64) error {
	err := s.track("link_product_project", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO product_project_links (product_id, project_id) VALUES (?, ?)
			 ON CONFLICT(product_id, project_id) DO NOTHING`, productID, projectID)
		return err
	})
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, err, "link_product_project failed")
	}
	return nil
}

// ProjectsForProduct returns every project id linked to a product key.
func (s *Store) ProjectsForProduct(ctx context.Context, productKey string) ([]int64, error) {
	var out []int64
	err := s.track("projects_for_product", func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT l.project_id FROM product_project_links l
			 JOIN products p ON p.id = l.product_id WHERE p.key = ?`, productKey)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			out = append(out, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "projects_for_product failed")
	}
	return out, nil
}

// UpsertSiblingSuggestion records or updates a heuristic "same product?"
// pairing between two projects, always stored with the smaller id first so
// the UNIQUE constraint dedupes regardless of discovery order.
func (s *Store) UpsertSiblingSuggestion(ctx context.Context, projectA, projectB int64, score float64) (*ProjectSiblingSuggestion, error) {
	if projectA > projectB {
		projectA, projectB = projectB, projectA
	}
	var out *ProjectSiblingSuggestion
	err := s.track("upsert_sibling_suggestion", func() error {
		now := time.Now().UTC()
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO project_sibling_suggestions (project_a_id, project_b_id, score, status, created_ts, updated_ts)
			 VALUES (?, ?, ?, 'suggested', ?, ?)
			 ON CONFLICT(project_a_id, project_b_id) DO UPDATE SET score = excluded.score, updated_ts = excluded.updated_ts`,
			projectA, projectB, score, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		row := s.db.QueryRowContext(ctx,
			`SELECT id, project_a_id, project_b_id, score, status, created_ts, updated_ts
			 FROM project_sibling_suggestions WHERE project_a_id = ? AND project_b_id = ?`, projectA, projectB)
		sib, err := scanSibling(row)
		if err != nil {
			return err
		}
		out = sib
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "upsert_sibling_suggestion failed")
	}
	return out, nil
}

// SetSiblingStatus records the operator's confirm/dismiss disposition.
func (s *Store) SetSiblingStatus(ctx context.Context, id int64, status SiblingStatus) error {
	err := s.track("set_sibling_status", func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE project_sibling_suggestions SET status = ?, updated_ts = ? WHERE id = ?`,
			string(status), time.Now().UTC().Format(time.RFC3339Nano), id)
		return err
	})
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, err, "set_sibling_status failed")
	}
	return nil
}

func scanSibling(row rowScanner) (*ProjectSiblingSuggestion, error) {
	var sib ProjectSiblingSuggestion
	var status, created, updated string
	if err := row.Scan(&sib.ID, &sib.ProjectAID, &sib.ProjectBID, &sib.Score, &status, &created, &updated); err != nil {
		return nil, err
	}
	sib.Status = SiblingStatus(status)
	var err error
	if sib.CreatedTS, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, err
	}
	if sib.UpdatedTS, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, err
	}
	return &sib, nil
}
