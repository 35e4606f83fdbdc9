package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// ProjectLock is the archive's two-layer write lock: a gofrs/flock soft
// file lock (agentmail.lock) guards cross-process writers, and an
// in-process mutex guards goroutines within this one server, since a single
// *flock.Flock is not safe for concurrent acquire/release from multiple
// goroutines. A sibling .owner.json file records who currently holds the
// lock, so a crashed holder's stale lock is diagnosable and reclaimable
// rather than a silent hang.
type ProjectLock struct {
	mu        sync.Mutex
	fileLock  *flock.Flock
	ownerPath string
}

// ownerInfo is written into .owner.json while the lock is held.
type ownerInfo struct {
	HolderID   string    `json:"holder_id"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// NewProjectLock creates the lock for the archive rooted at dir.
func NewProjectLock(dir string) (*ProjectLock, error) {
	return &ProjectLock{
		fileLock:  flock.New(filepath.Join(dir, "agentmail.lock")),
		ownerPath: filepath.Join(dir, ".owner.json"),
	}, nil
}

// Acquire blocks (up to timeout) for both the in-process mutex and the
// cross-process file lock, writing owner metadata once held. The returned
// release function must be called exactly once.
func (l *ProjectLock) Acquire(timeout time.Duration) (release func(), err error) {
	acquired := make(chan struct{})
	go func() {
		l.mu.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
	case <-time.After(timeout):
		// The waiting goroutine still takes mu eventually; hand it straight
		// back so a timed-out Acquire does not leave the mutex held.
		go func() {
			<-acquired
			l.mu.Unlock()
		}()
		return nil, apperr.New(apperr.ArchiveLockTimeout, "timed out waiting for in-process archive lock")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	locked, lockErr := l.fileLock.TryLockContext(ctx, 20*time.Millisecond)
	if lockErr != nil || !locked {
		l.mu.Unlock()
		return nil, apperr.Wrap(apperr.ArchiveLockTimeout, lockErr, "timed out waiting for cross-process archive lock")
	}

	holderID := uuid.NewString()
	info := ownerInfo{HolderID: holderID, PID: os.Getpid(), AcquiredAt: time.Now().UTC()}
	if data, marshalErr := json.Marshal(info); marshalErr == nil {
		_ = os.WriteFile(l.ownerPath, data, 0o644)
	}

	released := false
	release = func() {
		if released {
			return
		}
		released = true
		_ = os.Remove(l.ownerPath)
		_ = l.fileLock.Unlock()
		l.mu.Unlock()
	}
	return release, nil
}

// Owner reads the current (or most recently recorded) lock holder, used by
// diagnostics to explain a stuck ARCHIVE_LOCK_TIMEOUT.
func (l *ProjectLock) Owner() (holderID string, pid int, acquiredAt time.Time, ok bool) {
	data, err := os.ReadFile(l.ownerPath)
	if err != nil {
		return "", 0, time.Time{}, false
	}
	var info ownerInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return "", 0, time.Time{}, false
	}
	return info.HolderID, info.PID, info.AcquiredAt, true
}
