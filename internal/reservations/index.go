package reservations

import "github.com/agentmail/agentmail-mcp/internal/store"

// Index buckets a project's active reservations by first literal path
// segment so a new pattern only needs comparing against the bucket(s) that
// could plausibly overlap it (O(n+m)) instead of every reservation
// (O(n*m)). Patterns whose first segment is itself a wildcard go in the
// catch-all bucket, which every lookup must also scan — a pattern like
// "**/*.go" can overlap anything.
type Index struct {
	buckets  map[string][]*store.FileReservation
	wildcard []*store.FileReservation
}

// BuildIndex groups active into an Index for conflict pre-filtering.
func BuildIndex(active []*store.FileReservation) *Index {
	idx := &Index{buckets: make(map[string][]*store.FileReservation)}
	for _, r := range active {
		seg := firstLiteralSegment(r.PathPattern)
		if seg == "" {
			idx.wildcard = append(idx.wildcard, r)
			continue
		}
		idx.buckets[seg] = append(idx.buckets[seg], r)
	}
	return idx
}

// Candidates returns the subset of indexed reservations that could
// possibly conflict with pattern — the catch-all wildcard bucket plus the
// bucket matching pattern's own first literal segment.
func (idx *Index) Candidates(pattern string) []*store.FileReservation {
	out := append([]*store.FileReservation{}, idx.wildcard...)
	seg := firstLiteralSegment(pattern)
	if seg != "" {
		out = append(out, idx.buckets[seg]...)
	} else {
		for _, bucket := range idx.buckets {
			out = append(out, bucket...)
		}
	}
	return out
}

// FindConflicts returns every active reservation whose pattern conflicts
// with candidate, honoring the exclusive flag: two non-exclusive
// (shared-read) reservations never conflict with each other.
func (idx *Index) FindConflicts(pattern string, exclusive bool) []*store.FileReservation {
	var out []*store.FileReservation
	for _, r := range idx.Candidates(pattern) {
		if !exclusive && !r.Exclusive {
			continue
		}
		if Conflicts(pattern, r.PathPattern) {
			out = append(out, r)
		}
	}
	return out
}
