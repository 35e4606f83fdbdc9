package reservations

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/archive"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// ArchiveAccessor opens the per-project git archive by slug. Service uses it
// to mirror reservation state into file_reservations/*.json so the guard
// scripts in internal/guard can read active holds without a database
// connection.
type ArchiveAccessor interface {
	Open(projectSlug string) (*archive.Archive, error)
}

// mirrorPut writes (or rewrites) the reservation's archive file and commits
// it. holderName is the agent's display name, not its numeric id, since the
// guard scripts compare against $AGENT_NAME. The mirror file is keyed by
// the reservation's path pattern (see archive.ReservationFilename), so a
// renewal of the same pattern overwrites the prior file rather than
// leaving a stale copy at the old name.
func mirrorPut(ar *archive.Archive, lockTimeout time.Duration, projectSlug, holderName string, r *store.FileReservation) error {
	record := archive.ReservationRecord{
		ID:          r.ID,
		Project:     projectSlug,
		AgentName:   holderName,
		PathPattern: r.PathPattern,
		Exclusive:   r.Exclusive,
		Reason:      r.Reason,
		CreatedTS:   r.CreatedTS.Format(time.RFC3339),
		ExpiresTS:   r.ExpiresTS.Format(time.RFC3339),
	}
	if r.ReleasedTS != nil {
		record.ReleasedTS = r.ReleasedTS.Format(time.RFC3339)
	}
	change := archive.Change{
		Path: "file_reservations/" + archive.ReservationFilename(r.PathPattern),
		Data: archive.RenderReservation(record),
	}
	return ar.Commit(lockTimeout, fmt.Sprintf("reserve: %s (%s)", r.PathPattern, holderName), []archive.Change{change})
}

// mirrorRemove deletes a reservation's archive file on release or expiry —
// the guard scripts treat presence under file_reservations/ as the "still
// active" signal, so this delete is what makes a released or expired
// reservation stop blocking commits. A missing file (already released, or
// never mirrored by an older server build) is not an error.
func mirrorRemove(ar *archive.Archive, lockTimeout time.Duration, r *store.FileReservation) error {
	relPath := "file_reservations/" + archive.ReservationFilename(r.PathPattern)
	if _, err := os.Stat(filepath.Join(ar.Root(), relPath)); os.IsNotExist(err) {
		return nil
	}
	change := archive.Change{Path: relPath, Delete: true}
	return ar.Commit(lockTimeout, fmt.Sprintf("release: %s", r.PathPattern), []archive.Change{change})
}
