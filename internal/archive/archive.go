// Package archive maintains the durable, human-readable mirror of every
// message as a markdown file inside a per-project git repository. The
// relational store (internal/store) is written first and the archive commit
// follows; the two are not one transaction, so a failure after the store
// insert leaves the store row without its archive files — see Commit.
package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// Archive owns one project's on-disk git mirror.
type Archive struct {
	root     string
	repo     *git.Repository
	projectLock *ProjectLock
}

// Open ensures storageRoot/<slug> exists as a git repo (initializing it on
// first use) and returns an Archive bound to it.
func Open(storageRoot, slug string) (*Archive, error) {
	root := filepath.Join(storageRoot, slug)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.OSError, err, "creating archive directory")
	}

	repo, err := git.PlainOpen(root)
	if err == git.ErrRepositoryNotExists {
		repo, err = git.PlainInit(root, false)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.OSError, err, "opening archive repository")
	}

	// agents/ holds one subdirectory per registered agent, created lazily by
	// EnsureAgentDirs once a name exists — the rest are known up front.
	for _, dir := range []string{"messages", filepath.Join("attachments", "raw"), "threads", "file_reservations", "agents"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, apperr.Wrap(apperr.OSError, err, fmt.Sprintf("creating %s directory", dir))
		}
	}

	lock, err := NewProjectLock(root)
	if err != nil {
		return nil, err
	}

	return &Archive{root: root, repo: repo, projectLock: lock}, nil
}

// Root returns the archive's working directory.
func (a *Archive) Root() string { return a.root }

// MessagesDir returns the directory holding the canonical
// messages/YYYY/MM/*.md copy of every message, one file per message
// regardless of recipient count.
func (a *Archive) MessagesDir() string { return filepath.Join(a.root, "messages") }

// AttachmentsDir returns the directory holding raw (non-inline) attachment
// blobs, addressed by content hash.
func (a *Archive) AttachmentsDir() string { return filepath.Join(a.root, "attachments", "raw") }

// ThreadsDir returns the directory reserved for per-thread digests.
func (a *Archive) ThreadsDir() string { return filepath.Join(a.root, "threads") }

// ReservationsDir returns the directory holding the reservation mirror
// files (one key=value field per line, despite the .json extension) the
// guard scripts read directly (see internal/guard).
func (a *Archive) ReservationsDir() string { return filepath.Join(a.root, "file_reservations") }

// AgentDir returns an agent's root directory under agents/<name>.
func (a *Archive) AgentDir(name string) string { return filepath.Join(a.root, "agents", name) }

// AgentInboxDir returns the directory holding copies of every message an
// agent received (to/cc/bcc), mirrored under messages/YYYY/MM naming.
func (a *Archive) AgentInboxDir(name string) string { return filepath.Join(a.AgentDir(name), "inbox") }

// AgentOutboxDir returns the directory holding a copy of every message an
// agent sent.
func (a *Archive) AgentOutboxDir(name string) string {
	return filepath.Join(a.AgentDir(name), "outbox")
}

// AgentProfilePath returns the path of an agent's mirrored profile.json.
func (a *Archive) AgentProfilePath(name string) string {
	return filepath.Join(a.AgentDir(name), "profile.json")
}

// EnsureAgentDirs creates an agent's mailbox directories if they don't
// already exist. Agent names aren't known at Open time (registration
// happens later), so this is called from registration and defensively
// before any per-agent write.
func (a *Archive) EnsureAgentDirs(name string) error {
	if err := os.MkdirAll(a.AgentInboxDir(name), 0o755); err != nil {
		return apperr.Wrap(apperr.OSError, err, "creating agent inbox directory")
	}
	if err := os.MkdirAll(a.AgentOutboxDir(name), 0o755); err != nil {
		return apperr.Wrap(apperr.OSError, err, "creating agent outbox directory")
	}
	return nil
}

// Lock returns the two-layer write lock guarding this project's archive.
func (a *Archive) Lock() *ProjectLock { return a.projectLock }

// worktree is a small helper shared by commit.go and files.go.
func (a *Archive) worktree() (*git.Worktree, error) {
	wt, err := a.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("archive worktree: %w", err)
	}
	return wt, nil
}

// commitAuthor is the fixed identity the archive commits under; the
// coordination bus is the author of record, not any individual agent,
// mirroring the original implementation's use of a single service actor.
var commitAuthor = &object.Signature{
	Name:  "agentmail",
	Email: "agentmail@localhost",
}
