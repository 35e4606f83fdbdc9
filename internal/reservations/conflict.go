package reservations

import "strings"

// Conflicts reports whether two reservation patterns could both match the
// same file. Virtual-namespace patterns (tool://, resource://, service://)
// only conflict on exact string equality — they never collide with
// filesystem patterns or with each other's distinct prefixes.
//
// For filesystem patterns this checks real gitignore-style wildmatch
// overlap via doublestar rather than a literal-prefix heuristic: a and b
// conflict if either pattern, read literally as a candidate path, matches
// the other pattern as a glob. That catches equality, one pattern being a
// glob over a literal path the other names, and two globs sharing a
// common subtree through a "**" segment, while correctly treating
// "src/*.go" and "src/sub/*.go" as non-conflicting — neither string
// matches the other's pattern, since a single "*" never crosses a "/".
func Conflicts(a, b string) bool {
	if a == b {
		return true
	}
	aVirtual, bVirtual := isVirtual(a), isVirtual(b)
	if aVirtual || bVirtual {
		return false // already handled the equality case above
	}

	return defaultCache.Matcher(a).Match(b) || defaultCache.Matcher(b).Match(a)
}

func hasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// firstLiteralSegment returns the first path segment of pattern, or "" if
// the pattern's very first segment already contains a wildcard — used to
// bucket patterns for the union-pathspec fast path in index.go.
func firstLiteralSegment(pattern string) string {
	if isVirtual(pattern) {
		return pattern
	}
	segs := strings.SplitN(pattern, "/", 2)
	if hasWildcard(segs[0]) {
		return ""
	}
	return segs[0]
}
