package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// BindWindowIdentity records which display name a terminal window UUID
// currently owns, with an expiry so stale windows can be reclaimed.
func (s *Store) BindWindowIdentity(ctx context.Context, w *WindowIdentity) (*WindowIdentity, error) {
	var out *WindowIdentity
	err := s.track("bind_window_identity", func() error {
		return s.withRetry(ctx, "bind_window_identity", func() error {
			now := time.Now().UTC()
			if w.CreatedAt.IsZero() {
				w.CreatedAt = now
			}
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO window_identities (project_id, window_uuid, agent_name, created_at, expires_at)
				 VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT(project_id, window_uuid) DO UPDATE SET
					agent_name = excluded.agent_name, expires_at = excluded.expires_at`,
				w.ProjectID, w.WindowUUID, w.AgentName,
				w.CreatedAt.Format(time.RFC3339Nano), w.ExpiresAt.Format(time.RFC3339Nano))
			if err != nil {
				return err
			}
			row := s.db.QueryRowContext(ctx,
				`SELECT id, project_id, window_uuid, agent_name, created_at, expires_at
				 FROM window_identities WHERE project_id = ? AND window_uuid = ?`,
				w.ProjectID, w.WindowUUID)
			win, err := scanWindow(row)
			if err != nil {
				return err
			}
			out = win
			return nil
		})
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "bind_window_identity failed")
	}
	return out, nil
}

// GetWindowIdentity looks up the current binding for a window UUID.
func (s *Store) GetWindowIdentity(ctx context.Context, projectID int64, windowUUID string) (*WindowIdentity, error) {
	var out *WindowIdentity
	err := s.track("get_window_identity", func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, project_id, window_uuid, agent_name, created_at, expires_at
			 FROM window_identities WHERE project_id = ? AND window_uuid = ?`, projectID, windowUUID)
		w, err := scanWindow(row)
		if err != nil {
			return err
		}
		out = w
		return nil
	})
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "no window identity bound for that uuid")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "get_window_identity failed")
	}
	return out, nil
}

// ListWindowIdentities returns all window bindings for a project, including
// expired ones; callers filter for "live" with time.Now().
func (s *Store) ListWindowIdentities(ctx context.Context, projectID int64) ([]*WindowIdentity, error) {
	var out []*WindowIdentity
	err := s.track("list_window_identities", func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, project_id, window_uuid, agent_name, created_at, expires_at
			 FROM window_identities WHERE project_id = ? ORDER BY created_at`, projectID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			w, err := scanWindow(rows)
			if err != nil {
				return err
			}
			out = append(out, w)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "list_window_identities failed")
	}
	return out, nil
}

// ExpireWindowIdentity forces immediate expiry, used by expire_window.
func (s *Store) ExpireWindowIdentity(ctx context.Context, projectID int64, windowUUID string) error {
	err := s.track("expire_window_identity", func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE window_identities SET expires_at = ? WHERE project_id = ? AND window_uuid = ?`,
			time.Now().UTC().Add(-time.Second).Format(time.RFC3339Nano), projectID, windowUUID)
		return err
	})
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, err, "expire_window_identity failed")
	}
	return nil
}

func scanWindow(row rowScanner) (*WindowIdentity, error) {
	var w WindowIdentity
	var created, expires string
	if err := row.Scan(&w.ID, &w.ProjectID, &w.WindowUUID, &w.AgentName, &created, &expires); err != nil {
		return nil, err
	}
	var err error
	if w.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, err
	}
	if w.ExpiresAt, err = time.Parse(time.RFC3339Nano, expires); err != nil {
		return nil, err
	}
	return &w, nil
}
