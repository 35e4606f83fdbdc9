package archive

import (
	"math/rand"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// Change is one file to stage before a commit: either written (Delete
// false, Data present) or removed (Delete true).
type Change struct {
	Path   string // relative to archive root
	Data   []byte
	Delete bool
}

// Commit acquires the project lock, applies every change, stages and
// commits them as one atomic git operation, and releases the lock. Callers
// (internal/messaging) are expected to have already inserted the matching
// store rows inside the same logical operation — Commit is the second half
// of that two-phase write, not a transaction coordinator itself.
func (a *Archive) Commit(lockTimeout time.Duration, message string, changes []Change) error {
	release, err := a.projectLock.Acquire(lockTimeout)
	if err != nil {
		return err
	}
	defer release()

	for _, c := range changes {
		if err := applyChange(a.root, c); err != nil {
			return apperr.Wrap(apperr.OSError, err, "writing archive file")
		}
	}

	return a.retryCommit(message, changes)
}

// retryCommit stages and commits with exponential backoff plus jitter when
// it hits a contended index.lock, the one failure mode expected under
// concurrent archive writers sharing one on-disk git index.
func (a *Archive) retryCommit(message string, changes []Change) error {
	const maxAttempts = 6
	backoff := 20 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			jitter := time.Duration(rand.Int63n(int64(backoff)))
			time.Sleep(backoff + jitter)
			backoff *= 2
			if backoff > 800*time.Millisecond {
				backoff = 800 * time.Millisecond
			}
		}

		wt, err := a.worktree()
		if err != nil {
			lastErr = err
			continue
		}
		for _, c := range changes {
			if c.Delete {
				_, _ = wt.Remove(c.Path)
			} else {
				if _, err := wt.Add(c.Path); err != nil {
					lastErr = err
					continue
				}
			}
		}

		sig := *commitAuthor
		sig.When = time.Now().UTC()
		_, err = wt.Commit(message, &object.CommitOptions{Author: &sig, Committer: &sig, AllowEmptyCommits: true})
		if err == nil {
			return nil
		}
		lastErr = err
		if !isIndexLockErr(err) {
			return apperr.Wrap(apperr.GitIndexLock, err, "archive commit failed")
		}
	}
	return apperr.Wrap(apperr.GitIndexLock, lastErr, "archive commit failed after retries")
}

func isIndexLockErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "index.lock") || strings.Contains(msg, "already locked")
}
