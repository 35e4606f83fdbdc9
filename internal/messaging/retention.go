package messaging

import (
	"context"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/store"
)

// PurgeOldMessages deletes (or, with dryRun, just counts) messages older
// than before in a project. The archive's git history is left untouched —
// purge only trims the relational store's working set, per the
// durable-archive-is-authoritative contract.
func PurgeOldMessages(ctx context.Context, s *store.Store, projectID int64, before time.Time, dryRun bool) (int, error) {
	return s.PurgeOldMessages(ctx, projectID, before, dryRun)
}
