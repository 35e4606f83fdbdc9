package store

import (
	"context"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// SearchFTS runs a pre-sanitized MATCH query against messages_fts and
// returns matching messages ranked by relevance. query must already have
// passed internal/search's sanitizer; this layer trusts its caller.
func (s *Store) SearchFTS(ctx context.Context, projectID int64, query string, limit int) ([]*Message, error) {
	var out []*Message
	err := s.track("search_fts", func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT m.id, m.project_id, m.sender_id, m.thread_id, m.topic, m.subject, m.body_md,
				m.importance, m.ack_required, m.created_ts, m.attachments_json
			 FROM messages_fts f JOIN messages m ON m.id = f.rowid
			 WHERE f.messages_fts MATCH ? AND m.project_id = ?
			 ORDER BY rank LIMIT ?`,
			query, projectID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "search_fts failed")
	}
	return out, nil
}

// SearchLike runs the LIKE-based fallback over subject and body_md for
// queries the FTS sanitizer rejected (leading wildcards, lone operators).
// tokens must already be escaped alphanumeric fragments, capped at 5.
func (s *Store) SearchLike(ctx context.Context, projectID int64, tokens []string, limit int) ([]*Message, error) {
	var out []*Message
	err := s.track("search_like", func() error {
		q := messageSelectCols + `WHERE project_id = ?`
		args := []any{projectID}
		for _, t := range tokens {
			q += ` AND (subject LIKE ? ESCAPE '\' OR body_md LIKE ? ESCAPE '\')`
			pattern := "%" + t + "%"
			args = append(args, pattern, pattern)
		}
		q += ` ORDER BY created_ts DESC LIMIT ?`
		args = append(args, limit)
		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "search_like failed")
	}
	return out, nil
}
