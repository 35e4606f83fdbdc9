package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// UpsertLink inserts or overwrites the directed link row for (a -> b).
func (s *Store) UpsertLink(ctx context.Context, l *AgentLink) (*AgentLink, error) {
	var out *AgentLink
	err := s.track("upsert_link", func() error {
		return s.withRetry(ctx, "upsert_link", func() error {
			now := time.Now().UTC()
			if l.CreatedTS.IsZero() {
				l.CreatedTS = now
			}
			l.UpdatedTS = now
			var expires any
			if l.ExpiresTS != nil {
				expires = l.ExpiresTS.Format(time.RFC3339Nano)
			}
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO agent_links (a_project_id, a_agent_id, b_project_id, b_agent_id, status, reason, created_ts, updated_ts, expires_ts)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(a_project_id, a_agent_id, b_project_id, b_agent_id) DO UPDATE SET
					status = excluded.status, reason = excluded.reason, updated_ts = excluded.updated_ts, expires_ts = excluded.expires_ts`,
				l.AProjectID, l.AAgentID, l.BProjectID, l.BAgentID, string(l.Status), l.Reason,
				l.CreatedTS.Format(time.RFC3339Nano), l.UpdatedTS.Format(time.RFC3339Nano), expires)
			if err != nil {
				return err
			}
			row := s.db.QueryRowContext(ctx, linkSelectCols+
				`WHERE a_project_id = ? AND a_agent_id = ? AND b_project_id = ? AND b_agent_id = ?`,
				l.AProjectID, l.AAgentID, l.BProjectID, l.BAgentID)
			link, err := scanLink(row)
			if err != nil {
				return err
			}
			out = link
			return nil
		})
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "upsert_link failed")
	}
	return out, nil
}

// GetLink returns the directed link row A -> B, if any.
func (s *Store) GetLink(ctx context.Context, aProjectID, aAgentID, bProjectID, bAgentID int64) (*AgentLink, error) {
	var out *AgentLink
	err := s.track("get_link", func() error {
		row := s.db.QueryRowContext(ctx, linkSelectCols+
			`WHERE a_project_id = ? AND a_agent_id = ? AND b_project_id = ? AND b_agent_id = ?`,
			aProjectID, aAgentID, bProjectID, bAgentID)
		l, err := scanLink(row)
		if err != nil {
			return err
		}
		out = l
		return nil
	})
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "no link between those agents")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "get_link failed")
	}
	return out, nil
}

// ListLinksFor returns every link where agent (projectID, agentID) is the
// initiator (A side) — the set an agent's own contact list is built from.
func (s *Store) ListLinksFor(ctx context.Context, projectID, agentID int64) ([]*AgentLink, error) {
	var out []*AgentLink
	err := s.track("list_links_for", func() error {
		rows, err := s.db.QueryContext(ctx, linkSelectCols+`WHERE a_project_id = ? AND a_agent_id = ?`,
			projectID, agentID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			l, err := scanLink(rows)
			if err != nil {
				return err
			}
			out = append(out, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "list_links_for failed")
	}
	return out, nil
}

const linkSelectCols = `SELECT id, a_project_id, a_agent_id, b_project_id, b_agent_id, status, reason,
	created_ts, updated_ts, expires_ts FROM agent_links `

func scanLink(row rowScanner) (*AgentLink, error) {
	var l AgentLink
	var status, created, updated string
	var expires sql.NullString
	if err := row.Scan(&l.ID, &l.AProjectID, &l.AAgentID, &l.BProjectID, &l.BAgentID, &status, &l.Reason,
		&created, &updated, &expires); err != nil {
		return nil, err
	}
	l.Status = LinkStatus(status)
	var err error
	if l.CreatedTS, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, err
	}
	if l.UpdatedTS, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, err
	}
	if expires.Valid {
		t, err := time.Parse(time.RFC3339Nano, expires.String)
		if err != nil {
			return nil, err
		}
		l.ExpiresTS = &t
	}
	return &l, nil
}
