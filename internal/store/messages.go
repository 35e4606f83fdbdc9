package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// Recipient is an input pairing of agent id and to/cc/bcc kind, used when
// composing a message before MessageRecipient rows exist.
type Recipient struct {
	AgentID int64
	Kind    RecipientKind
}

// InsertMessage writes a Message and its recipient rows in one transaction.
// It does not touch the git archive — callers (internal/messaging) are
// responsible for archive + store forming one logical commit.
func (s *Store) InsertMessage(ctx context.Context, m *Message, recipients []Recipient) (*Message, error) {
	var out *Message
	err := s.track("insert_message", func() error {
		return s.withRetry(ctx, "insert_message", func() error {
			tx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				return err
			}
			defer tx.Rollback()

			if m.CreatedTS.IsZero() {
				m.CreatedTS = time.Now().UTC()
			}
			attachJSON, err := json.Marshal(m.Attachments)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO messages (project_id, sender_id, thread_id, topic, subject, body_md,
					importance, ack_required, created_ts, attachments_json)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				m.ProjectID, m.SenderID, nullableString(m.ThreadID), m.Topic, m.Subject, m.BodyMD,
				string(m.Importance), boolToInt(m.AckRequired), m.CreatedTS.Format(time.RFC3339Nano), string(attachJSON))
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			m.ID = id

			for _, r := range recipients {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO message_recipients (message_id, agent_id, kind) VALUES (?, ?, ?)`,
					m.ID, r.AgentID, string(r.Kind)); err != nil {
					return err
				}
			}

			if err := tx.Commit(); err != nil {
				return err
			}
			out = m
			return nil
		})
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "insert_message failed")
	}
	return out, nil
}

// GetMessage fetches a single message by id.
func (s *Store) GetMessage(ctx context.Context, id int64) (*Message, error) {
	var out *Message
	err := s.track("get_message", func() error {
		row := s.db.QueryRowContext(ctx, messageSelectCols+`WHERE id = ?`, id)
		m, err := scanMessage(row)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.NotFound, "no message with id %d", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "get_message failed")
	}
	return out, nil
}

// RecentProjectMessages returns every message in a project created at or
// after since, oldest first — the raw input to project-wide digests.
func (s *Store) RecentProjectMessages(ctx context.Context, projectID int64, since time.Time) ([]*Message, error) {
	var out []*Message
	err := s.track("recent_project_messages", func() error {
		rows, err := s.db.QueryContext(ctx,
			messageSelectCols+`WHERE project_id = ? AND created_ts >= ? ORDER BY created_ts`,
			projectID, since.Format(time.RFC3339Nano))
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
		return nil, apperr.Wrap(apperr.DatabaseError, err, "recent_project_messages failed")
	}
	return out, nil
}

// ListThread returns every message sharing a thread_id, oldest first.
func (s *Store) ListThread(ctx context.Context, projectID int64, threadID string) ([]*Message, error) {
	var out []*Message
	err := s.track("list_thread", func() error {
		rows, err := s.db.QueryContext(ctx,
			messageSelectCols+`WHERE project_id = ? AND thread_id = ? ORDER BY created_ts`,
			projectID, threadID)
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
		return nil, apperr.Wrap(apperr.DatabaseError, err, "list_thread failed")
	}
	return out, nil
}

// OutboxForAgent returns messages sent by agentID, newest first, capped at
// limit (0 means unlimited) — backs resource://outbox/{agent}.
func (s *Store) OutboxForAgent(ctx context.Context, agentID int64, limit int) ([]*Message, error) {
	var out []*Message
	err := s.track("outbox_for_agent", func() error {
		q := messageSelectCols + `WHERE sender_id = ? ORDER BY created_ts DESC`
		args := []any{agentID}
		if limit > 0 {
			q += ` LIMIT ?`
			args = append(args, limit)
		}
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
		return nil, apperr.Wrap(apperr.DatabaseError, err, "outbox_for_agent failed")
	}
	return out, nil
}

// InboxFilter narrows fetch_inbox queries.
type InboxFilter struct {
	UnreadOnly    bool
	AckRequired   bool
	Topic         string
	Since         *time.Time
	Limit         int
}

// FetchInbox returns messages addressed to agentID (to/cc/bcc all included,
// the caller decides which kinds to surface) ordered newest first.
func (s *Store) FetchInbox(ctx context.Context, agentID int64, f InboxFilter) ([]*Message, error) {
	var out []*Message
	err := s.track("fetch_inbox", func() error {
		q := `SELECT m.id, m.project_id, m.sender_id, m.thread_id, m.topic, m.subject, m.body_md,
				m.importance, m.ack_required, m.created_ts, m.attachments_json
			  FROM messages m JOIN message_recipients r ON r.message_id = m.id
			  WHERE r.agent_id = ?`
		args := []any{agentID}
		if f.UnreadOnly {
			q += ` AND r.read_ts IS NULL`
		}
		if f.AckRequired {
			q += ` AND m.ack_required = 1 AND r.ack_ts IS NULL`
		}
		if f.Topic != "" {
			q += ` AND m.topic = ?`
			args = append(args, f.Topic)
		}
		if f.Since != nil {
			q += ` AND m.created_ts >= ?`
			args = append(args, f.Since.Format(time.RFC3339Nano))
		}
		q += ` ORDER BY m.created_ts DESC`
		if f.Limit > 0 {
			q += ` LIMIT ?`
			args = append(args, f.Limit)
		}
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
		return nil, apperr.Wrap(apperr.DatabaseError, err, "fetch_inbox failed")
	}
	return out, nil
}

// MarkRead sets read_ts for one recipient row, idempotent.
func (s *Store) MarkRead(ctx context.Context, messageID, agentID int64) error {
	err := s.track("mark_message_read", func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE message_recipients SET read_ts = ? WHERE message_id = ? AND agent_id = ? AND read_ts IS NULL`,
			time.Now().UTC().Format(time.RFC3339Nano), messageID, agentID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Either already read or not a recipient; distinguish for the caller.
			var exists int
			if scanErr := s.db.QueryRowContext(ctx,
				`SELECT 1 FROM message_recipients WHERE message_id = ? AND agent_id = ?`,
				messageID, agentID).Scan(&exists); scanErr == sql.ErrNoRows {
				return ErrNotFound
			}
		}
		return nil
	})
	if err == ErrNotFound {
		return apperr.Newf(apperr.RecipientNotFound, "agent %d is not a recipient of message %d", agentID, messageID)
	}
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, err, "mark_message_read failed")
	}
	return nil
}

// AcknowledgeMessage sets ack_ts for a recipient row that required one.
func (s *Store) AcknowledgeMessage(ctx context.Context, messageID, agentID int64) error {
	err := s.track("acknowledge_message", func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE message_recipients SET ack_ts = ? WHERE message_id = ? AND agent_id = ? AND ack_ts IS NULL`,
			time.Now().UTC().Format(time.RFC3339Nano), messageID, agentID)
		return err
	})
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, err, "acknowledge_message failed")
	}
	return nil
}

// Recipients returns the recipient rows for a message.
func (s *Store) Recipients(ctx context.Context, messageID int64) ([]*MessageRecipient, error) {
	var out []*MessageRecipient
	err := s.track("message_recipients", func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT message_id, agent_id, kind, read_ts, ack_ts FROM message_recipients WHERE message_id = ?`,
			messageID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r MessageRecipient
			var kind string
			var readTS, ackTS sql.NullString
			if err := rows.Scan(&r.MessageID, &r.AgentID, &kind, &readTS, &ackTS); err != nil {
				return err
			}
			r.Kind = RecipientKind(kind)
			if readTS.Valid {
				t, err := time.Parse(time.RFC3339Nano, readTS.String)
				if err != nil {
					return err
				}
				r.ReadTS = &t
			}
			if ackTS.Valid {
				t, err := time.Parse(time.RFC3339Nano, ackTS.String)
				if err != nil {
					return err
				}
				r.AckTS = &t
			}
			out = append(out, &r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "message_recipients failed")
	}
	return out, nil
}

// PurgeOldMessages deletes messages (and their recipient rows) older than
// before. With dryRun it only counts what would be deleted.
func (s *Store) PurgeOldMessages(ctx context.Context, projectID int64, before time.Time, dryRun bool) (int, error) {
	var count int
	err := s.track("purge_old_messages", func() error {
		cutoff := before.Format(time.RFC3339Nano)
		row := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM messages WHERE project_id = ? AND created_ts < ?`, projectID, cutoff)
		if err := row.Scan(&count); err != nil {
			return err
		}
		if dryRun || count == 0 {
			return nil
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM message_recipients WHERE message_id IN (SELECT id FROM messages WHERE project_id = ? AND created_ts < ?)`,
			projectID, cutoff); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM messages WHERE project_id = ? AND created_ts < ?`, projectID, cutoff); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.DatabaseError, err, "purge_old_messages failed")
	}
	return count, nil
}

const messageSelectCols = `SELECT id, project_id, sender_id, thread_id, topic, subject, body_md,
	importance, ack_required, created_ts, attachments_json FROM messages `

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var threadID sql.NullString
	var importance, created, attachJSON string
	var ackReq int
	if err := row.Scan(&m.ID, &m.ProjectID, &m.SenderID, &threadID, &m.Topic, &m.Subject, &m.BodyMD,
		&importance, &ackReq, &created, &attachJSON); err != nil {
		return nil, err
	}
	if threadID.Valid {
		m.ThreadID = threadID.String
	}
	m.Importance = Importance(importance)
	m.AckRequired = ackReq != 0
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, err
	}
	m.CreatedTS = ts
	if attachJSON != "" {
		if err := json.Unmarshal([]byte(attachJSON), &m.Attachments); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
