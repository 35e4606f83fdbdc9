package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// CreateAgent inserts a new named agent identity in a project.
func (s *Store) CreateAgent(ctx context.Context, a *Agent) (*Agent, error) {
	var out *Agent
	err := s.track("create_agent", func() error {
		return s.withRetry(ctx, "create_agent", func() error {
			now := time.Now().UTC()
			if a.InceptionTS.IsZero() {
				a.InceptionTS = now
			}
			a.LastActiveTS = now
			res, err := s.db.ExecContext(ctx,
				`INSERT INTO agents (project_id, name, name_lower, program, model, task_description,
					inception_ts, last_active_ts, contact_policy, attachments_policy, registration_token)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				a.ProjectID, a.Name, lower(a.Name), a.Program, a.Model, a.TaskDescription,
				a.InceptionTS.Format(time.RFC3339Nano), a.LastActiveTS.Format(time.RFC3339Nano),
				string(a.ContactPolicy), string(a.AttachmentsPolicy), a.RegistrationToken)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			a.ID = id
			out = a
			return nil
		})
	})
	if err != nil {
		if unique(err) {
			return nil, apperr.Newf(apperr.InvalidAgentName, "agent name %q already taken in this project", a.Name)
		}
		return nil, apperr.Wrap(apperr.DatabaseError, err, "create_agent failed")
	}
	return out, nil
}

// GetAgentByName is a case-insensitive lookup within a project.
func (s *Store) GetAgentByName(ctx context.Context, projectID int64, name string) (*Agent, error) {
	var out *Agent
	err := s.track("get_agent_by_name", func() error {
		row := s.db.QueryRowContext(ctx, agentSelectCols+`WHERE project_id = ? AND name_lower = ?`,
			projectID, lower(name))
		a, err := scanAgent(row)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.NotFound, "no agent named %q in this project", name)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "get_agent_by_name failed")
	}
	return out, nil
}

// GetAgentByID looks up an agent by primary key.
func (s *Store) GetAgentByID(ctx context.Context, id int64) (*Agent, error) {
	var out *Agent
	err := s.track("get_agent_by_id", func() error {
		row := s.db.QueryRowContext(ctx, agentSelectCols+`WHERE id = ?`, id)
		a, err := scanAgent(row)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.NotFound, "no agent with id %d", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "get_agent_by_id failed")
	}
	return out, nil
}

// ListAgents returns all agents in a project ordered by name.
func (s *Store) ListAgents(ctx context.Context, projectID int64) ([]*Agent, error) {
	var out []*Agent
	err := s.track("list_agents", func() error {
		rows, err := s.db.QueryContext(ctx, agentSelectCols+`WHERE project_id = ? ORDER BY name`, projectID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanAgent(rows)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "list_agents failed")
	}
	return out, nil
}

// TouchAgent updates last_active_ts to the current time. No tool handler
// calls it, so last_active_ts keeps the value set when the agent was
// created.
func (s *Store) TouchAgent(ctx context.Context, id int64) error {
	err := s.track("touch_agent", func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE agents SET last_active_ts = ? WHERE id = ?`,
			time.Now().UTC().Format(time.RFC3339Nano), id)
		return err
	})
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, err, "touch_agent failed")
	}
	return nil
}

// SetContactPolicy updates an agent's contact gating policy.
func (s *Store) SetContactPolicy(ctx context.Context, id int64, policy ContactPolicy) error {
	err := s.track("set_contact_policy", func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE agents SET contact_policy = ? WHERE id = ?`, string(policy), id)
		return err
	})
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, err, "set_contact_policy failed")
	}
	return nil
}

// DeregisterAgent retires an agent identity without deleting its row: the
// contact policy becomes block_all and the task description is tagged
// "[deregistered]", so its messages and reservations keep pointing at a
// valid agent id. The mail archive (git) retains history regardless.
func (s *Store) DeregisterAgent(ctx context.Context, id int64) error {
	err := s.track("deregister_agent", func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE agents SET contact_policy = ?, task_description = '[deregistered] ' || task_description WHERE id = ?`,
			string(PolicyBlockAll), id)
		return err
	})
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, err, "deregister_agent failed")
	}
	return nil
}

const agentSelectCols = `SELECT id, project_id, name, program, model, task_description,
	inception_ts, last_active_ts, contact_policy, attachments_policy, registration_token
	FROM agents `

func scanAgent(row rowScanner) (*Agent, error) {
	var a Agent
	var inception, lastActive, policy, attachPolicy string
	if err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Program, &a.Model, &a.TaskDescription,
		&inception, &lastActive, &policy, &attachPolicy, &a.RegistrationToken); err != nil {
		return nil, err
	}
	var err error
	if a.InceptionTS, err = time.Parse(time.RFC3339Nano, inception); err != nil {
		return nil, err
	}
	if a.LastActiveTS, err = time.Parse(time.RFC3339Nano, lastActive); err != nil {
		return nil, err
	}
	a.ContactPolicy = ContactPolicy(policy)
	a.AttachmentsPolicy = AttachmentsPolicy(attachPolicy)
	return &a, nil
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
