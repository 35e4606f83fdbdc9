// Package reservations implements the file-reservation lease manager:
// glob-pattern conflict detection, lifecycle (create/renew/release/force-
// release), and stale-reservation reclamation.
package reservations

import (
	"container/list"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// patternCacheSize bounds the compiled-pattern LRU; doublestar.Match itself
// doesn't precompile, but a *CompiledPattern amortizes the ValidatePattern
// call a Match would otherwise redo on every lookup, which matters once a
// project's reservation set is large enough that conflict checks evaluate
// the same patterns repeatedly every sweep.
const patternCacheSize = 2048

// PatternCache is a process-wide, read-mostly LRU of compiled patterns,
// guarded by a single mutex since compilation is cheap and infrequent
// relative to match evaluation.
type PatternCache struct {
	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
}

// CompiledPattern is a doublestar glob pattern whose validity has already
// been checked, ready to be matched against candidate names without
// re-validating on every call.
type CompiledPattern struct {
	pattern string
	valid   bool
}

// Match reports whether name matches this pattern. An invalid pattern
// never matches anything.
func (p *CompiledPattern) Match(name string) bool {
	if !p.valid {
		return false
	}
	ok, err := doublestar.Match(p.pattern, name)
	return err == nil && ok
}

// NewPatternCache returns an empty cache.
func NewPatternCache() *PatternCache {
	return &PatternCache{ll: list.New(), items: make(map[string]*list.Element)}
}

// Matcher returns the compiled pattern for pattern, memoizing it.
func (c *PatternCache) Matcher(pattern string) *CompiledPattern {
	c.mu.Lock()
	if el, ok := c.items[pattern]; ok {
		c.ll.MoveToFront(el)
		c.mu.Unlock()
		return el.Value.(*CompiledPattern)
	}
	c.mu.Unlock()

	compiled := &CompiledPattern{pattern: pattern, valid: doublestar.ValidatePattern(pattern)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[pattern]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*CompiledPattern)
	}
	el := c.ll.PushFront(compiled)
	c.items[pattern] = el
	if c.ll.Len() > patternCacheSize {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*CompiledPattern).pattern)
		}
	}
	return compiled
}

// Valid reports whether pattern is syntactically valid doublestar glob
// syntax, memoizing the result.
func (c *PatternCache) Valid(pattern string) bool {
	return c.Matcher(pattern).valid
}

var defaultCache = NewPatternCache()

// ValidatePattern checks a caller-supplied reservation pattern, rejecting
// virtual-namespace patterns with malformed prefixes and filesystem globs
// with invalid doublestar syntax.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return apperr.New(apperr.InvalidArgument, "path_pattern must not be empty")
	}
	if isVirtual(pattern) {
		return nil
	}
	if !defaultCache.Valid(pattern) {
		return apperr.Newf(apperr.InvalidArgument, "path_pattern %q is not a valid glob", pattern)
	}
	return nil
}

func isVirtual(pattern string) bool {
	for _, prefix := range []string{"tool://", "resource://", "service://"} {
		if len(pattern) >= len(prefix) && pattern[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
