package reservations

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/agentmail/agentmail-mcp/internal/store"
)

// isStale implements spec.md §4.4's staleness predicate: a reservation's
// holder must be inactive beyond staleAfter AND no recent activity may
// exist in any of the holder's mail traffic, filesystem mtimes of a
// matching path in the project workspace, or git commits touching a
// matching path.
func (svc *Service) isStale(project *store.Project, holder *store.Agent, pattern string, now time.Time, staleAfter time.Duration) bool {
	if now.Sub(holder.LastActiveTS) < staleAfter {
		return false
	}
	cutoff := now.Add(-staleAfter)
	// Mail traffic: a message the holder sent, read, or acknowledged
	// after cutoff counts as recent activity.
	since := cutoff.UTC().Format(time.RFC3339Nano)
	var one int
	if err := svc.store.DB().QueryRow(
		`SELECT 1 FROM messages WHERE sender_id = ? AND created_ts > ?
		 UNION ALL
		 SELECT 1 FROM message_recipients WHERE agent_id = ? AND (read_ts > ? OR ack_ts > ?)
		 LIMIT 1`,
		holder.ID, since, holder.ID, since, since).Scan(&one); err == nil {
		return false
	}
	if recentFilesystemActivity(project.HumanKey, pattern, cutoff) {
		return false
	}
	if recentGitActivity(project.HumanKey, pattern, cutoff) {
		return false
	}
	return true
}

// recentFilesystemActivity reports whether any path under root matching
// pattern has an mtime after cutoff. A missing or inaccessible workspace
// root (common in tests and for projects registered from a path that has
// since been removed) is treated as "no recent activity", not an error.
func recentFilesystemActivity(root, pattern string, cutoff time.Time) bool {
	if root == "" || isVirtual(pattern) {
		return false
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return false
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return false
	}
	for _, m := range matches {
		fi, err := os.Stat(filepath.Join(root, m))
		if err != nil {
			continue
		}
		if fi.ModTime().After(cutoff) {
			return true
		}
	}
	return false
}

// recentGitActivity reports whether any commit reachable from HEAD,
// committed after cutoff, touches a path matching pattern. A workspace
// with no git repository (or none yet initialized) has no recent git
// activity by definition.
func recentGitActivity(root, pattern string, cutoff time.Time) bool {
	if root == "" || isVirtual(pattern) {
		return false
	}
	repo, err := git.PlainOpen(root)
	if err != nil {
		return false
	}
	head, err := repo.Head()
	if err != nil {
		return false
	}
	commits, err := repo.Log(&git.LogOptions{
		From: head.Hash(),
		PathFilter: func(p string) bool {
			ok, err := doublestar.Match(pattern, p)
			return err == nil && ok
		},
	})
	if err != nil {
		return false
	}
	defer commits.Close()

	// Log iterates newest-first: the first matching commit alone decides
	// recency, so one ForEach iteration is always enough.
	found := false
	_ = commits.ForEach(func(c *object.Commit) error {
		found = c.Committer.When.After(cutoff)
		return storer.ErrStop
	})
	return found
}
