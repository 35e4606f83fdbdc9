// Package archiveset caches one *archive.Archive per project slug so every
// tool and resource that needs the project's git mirror shares the same
// in-process ProjectLock instead of racing separate lock instances against
// the same on-disk repository.
package archiveset

import (
	"sync"

	"github.com/agentmail/agentmail-mcp/internal/archive"
)

// Set opens and caches per-project archives under one storage root. It
// satisfies messaging.ArchiveAccessor, reservations.ArchiveAccessor, and
// every other narrow `Open(slug string) (*archive.Archive, error)` seam —
// they're structurally identical interfaces by design, one per consuming
// package, so none of them has to import another's package just to accept
// this.
type Set struct {
	storageRoot string

	mu    sync.Mutex
	cache map[string]*archive.Archive
}

// New creates a Set rooted at storageRoot.
func New(storageRoot string) *Set {
	return &Set{storageRoot: storageRoot, cache: make(map[string]*archive.Archive)}
}

// Open returns the cached archive for slug, opening and caching it on
// first use.
func (s *Set) Open(slug string) (*archive.Archive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ar, ok := s.cache[slug]; ok {
		return ar, nil
	}
	ar, err := archive.Open(s.storageRoot, slug)
	if err != nil {
		return nil, err
	}
	s.cache[slug] = ar
	return ar, nil
}
