package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// InsertSummary caches a digest covering [start, end) for a project.
func (s *Store) InsertSummary(ctx context.Context, sm *MessageSummary) (*MessageSummary, error) {
	var out *MessageSummary
	err := s.track("insert_summary", func() error {
		if sm.CreatedTS.IsZero() {
			sm.CreatedTS = time.Now().UTC()
		}
		threadJSON, err := json.Marshal(sm.SourceThreadIDs)
		if err != nil {
			return err
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO message_summaries (project_id, start_ts, end_ts, source_message_count, source_thread_ids,
				summary_text, llm_model, cost_usd, created_ts)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sm.ProjectID, sm.StartTS.Format(time.RFC3339Nano), sm.EndTS.Format(time.RFC3339Nano),
			sm.SourceMessageCount, string(threadJSON), sm.SummaryText, sm.LLMModel, sm.CostUSD,
			sm.CreatedTS.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		sm.ID = id
		out = sm
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "insert_summary failed")
	}
	return out, nil
}

// RecentSummary returns the most recently cached summary for a project
// whose window end is within toleranceSeconds of now, or NotFound — the
// fetch_summary reuse check.
func (s *Store) RecentSummary(ctx context.Context, projectID int64, now time.Time, toleranceSeconds int) (*MessageSummary, error) {
	var out *MessageSummary
	err := s.track("recent_summary", func() error {
		cutoff := now.Add(-time.Duration(toleranceSeconds) * time.Second).Format(time.RFC3339Nano)
		row := s.db.QueryRowContext(ctx,
			summarySelectCols+`WHERE project_id = ? AND end_ts >= ? ORDER BY end_ts DESC LIMIT 1`,
			projectID, cutoff)
		sm, err := scanSummary(row)
		if err != nil {
			return err
		}
		out = sm
		return nil
	})
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "no cached summary within tolerance window")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "recent_summary failed")
	}
	return out, nil
}

// PruneSummaries deletes cached digests whose window ended before cutoff,
// returning the number removed. Run periodically so message_summaries
// doesn't grow unbounded with one row per distinct digest request.
func (s *Store) PruneSummaries(ctx context.Context, cutoff time.Time) (int, error) {
	var n int64
	err := s.track("prune_summaries", func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM message_summaries WHERE end_ts < ?`, cutoff.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.DatabaseError, err, "prune_summaries failed")
	}
	return int(n), nil
}

const summarySelectCols = `SELECT id, project_id, start_ts, end_ts, source_message_count, source_thread_ids,
	summary_text, llm_model, cost_usd, created_ts FROM message_summaries `

func scanSummary(row rowScanner) (*MessageSummary, error) {
	var sm MessageSummary
	var start, end, created, threadJSON string
	if err := row.Scan(&sm.ID, &sm.ProjectID, &start, &end, &sm.SourceMessageCount, &threadJSON,
		&sm.SummaryText, &sm.LLMModel, &sm.CostUSD, &created); err != nil {
		return nil, err
	}
	var err error
	if sm.StartTS, err = time.Parse(time.RFC3339Nano, start); err != nil {
		return nil, err
	}
	if sm.EndTS, err = time.Parse(time.RFC3339Nano, end); err != nil {
		return nil, err
	}
	if sm.CreatedTS, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, err
	}
	if threadJSON != "" {
		if err := json.Unmarshal([]byte(threadJSON), &sm.SourceThreadIDs); err != nil {
			return nil, err
		}
	}
	return &sm, nil
}
