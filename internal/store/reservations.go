package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// CreateReservation inserts a new lease row. Conflict detection against
// other active reservations is internal/reservations' job, not the store's
// — the store only enforces the data shape.
func (s *Store) CreateReservation(ctx context.Context, r *FileReservation) (*FileReservation, error) {
	var out *FileReservation
	err := s.track("create_reservation", func() error {
		return s.withRetry(ctx, "create_reservation", func() error {
			if r.CreatedTS.IsZero() {
				r.CreatedTS = time.Now().UTC()
			}
			res, err := s.db.ExecContext(ctx,
				`INSERT INTO file_reservations (project_id, agent_id, path_pattern, exclusive, reason, created_ts, expires_ts)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.ProjectID, r.AgentID, r.PathPattern, boolToInt(r.Exclusive), r.Reason,
				r.CreatedTS.Format(time.RFC3339Nano), r.ExpiresTS.Format(time.RFC3339Nano))
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			r.ID = id
			out = r
			return nil
		})
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "create_reservation failed")
	}
	return out, nil
}

// ActiveReservations returns every reservation in a project that is not yet
// released and not yet expired as of now.
func (s *Store) ActiveReservations(ctx context.Context, projectID int64, now time.Time) ([]*FileReservation, error) {
	var out []*FileReservation
	err := s.track("active_reservations", func() error {
		rows, err := s.db.QueryContext(ctx,
			reservationSelectCols+`WHERE project_id = ? AND released_ts IS NULL AND expires_ts > ?`,
			projectID, now.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			r, err := scanReservation(rows)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "active_reservations failed")
	}
	return out, nil
}

// AllActiveReservations returns every active reservation across every
// project, for the cross-project opportunistic staleness sweep — unlike
// ActiveReservations, which a send or create scopes to one project.
func (s *Store) AllActiveReservations(ctx context.Context, now time.Time) ([]*FileReservation, error) {
	var out []*FileReservation
	err := s.track("all_active_reservations", func() error {
		rows, err := s.db.QueryContext(ctx,
			reservationSelectCols+`WHERE released_ts IS NULL AND expires_ts > ?`,
			now.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			r, err := scanReservation(rows)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "all_active_reservations failed")
	}
	return out, nil
}

// AgentReservations returns every active reservation held by one agent.
func (s *Store) AgentReservations(ctx context.Context, agentID int64, now time.Time) ([]*FileReservation, error) {
	var out []*FileReservation
	err := s.track("agent_reservations", func() error {
		rows, err := s.db.QueryContext(ctx,
			reservationSelectCols+`WHERE agent_id = ? AND released_ts IS NULL AND expires_ts > ?`,
			agentID, now.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			r, err := scanReservation(rows)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "agent_reservations failed")
	}
	return out, nil
}

// GetReservation fetches one reservation by id.
func (s *Store) GetReservation(ctx context.Context, id int64) (*FileReservation, error) {
	var out *FileReservation
	err := s.track("get_reservation", func() error {
		row := s.db.QueryRowContext(ctx, reservationSelectCols+`WHERE id = ?`, id)
		r, err := scanReservation(row)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.NotFound, "no reservation with id %d", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "get_reservation failed")
	}
	return out, nil
}

// RenewReservation extends expires_ts on an active, unreleased reservation.
func (s *Store) RenewReservation(ctx context.Context, id int64, newExpiry time.Time) error {
	err := s.track("renew_reservation", func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE file_reservations SET expires_ts = ? WHERE id = ? AND released_ts IS NULL`,
			newExpiry.Format(time.RFC3339Nano), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err == ErrNotFound {
		return apperr.Newf(apperr.NotFound, "no active reservation with id %d", id)
	}
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, err, "renew_reservation failed")
	}
	return nil
}

// ReleaseReservation marks a reservation released, idempotent.
func (s *Store) ReleaseReservation(ctx context.Context, id int64) error {
	err := s.track("release_reservation", func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE file_reservations SET released_ts = ? WHERE id = ? AND released_ts IS NULL`,
			time.Now().UTC().Format(time.RFC3339Nano), id)
		return err
	})
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, err, "release_reservation failed")
	}
	return nil
}

// SweepExpiredReservations releases every reservation past its expiry that
// hasn't already been released, returning the count touched. Driven by the
// janitor scheduler and by lazy sweep-on-operation-start checks.
func (s *Store) SweepExpiredReservations(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.SweepExpiredReservationsRows(ctx, now)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// SweepExpiredReservationsRows does the same release-on-expiry sweep as
// SweepExpiredReservations but returns the rows it touched, so a caller
// mirroring reservations into the git archive knows exactly which files to
// remove.
func (s *Store) SweepExpiredReservationsRows(ctx context.Context, now time.Time) ([]*FileReservation, error) {
	var out []*FileReservation
	err := s.track("sweep_expired_reservations", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		nowStr := now.Format(time.RFC3339Nano)
		rows, err := tx.QueryContext(ctx,
			reservationSelectCols+`WHERE released_ts IS NULL AND expires_ts <= ?`, nowStr)
		if err != nil {
			return err
		}
		for rows.Next() {
			r, err := scanReservation(rows)
			if err != nil {
				rows.Close()
				return err
			}
			out = append(out, r)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx,
			`UPDATE file_reservations SET released_ts = ? WHERE released_ts IS NULL AND expires_ts <= ?`,
			nowStr, nowStr); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "sweep_expired_reservations failed")
	}
	return out, nil
}

const reservationSelectCols = `SELECT id, project_id, agent_id, path_pattern, exclusive, reason,
	created_ts, expires_ts, released_ts FROM file_reservations `

func scanReservation(row rowScanner) (*FileReservation, error) {
	var r FileReservation
	var exclusive int
	var created, expires string
	var released sql.NullString
	if err := row.Scan(&r.ID, &r.ProjectID, &r.AgentID, &r.PathPattern, &exclusive, &r.Reason,
		&created, &expires, &released); err != nil {
		return nil, err
	}
	r.Exclusive = exclusive != 0
	var err error
	if r.CreatedTS, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, err
	}
	if r.ExpiresTS, err = time.Parse(time.RFC3339Nano, expires); err != nil {
		return nil, err
	}
	if released.Valid {
		t, err := time.Parse(time.RFC3339Nano, released.String)
		if err != nil {
			return nil, err
		}
		r.ReleasedTS = &t
	}
	return &r, nil
}
