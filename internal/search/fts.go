// Package search implements full-text query sanitization over the
// messages_fts index, a LIKE-based fallback for queries FTS5 can't parse
// safely, and thread/project summarization.
package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

var hyphenatedWord = regexp.MustCompile(`^[A-Za-z0-9]+-[A-Za-z0-9-]+$`)

// Sanitize prepares a caller-supplied search string for SQLite FTS5 MATCH,
// quoting hyphenated tokens (FTS5 treats "-" as a column exclusion
// operator otherwise) and rejecting queries that are bare wildcards or
// lone boolean operators, which FTS5 would either error on or silently
// match everything for.
func Sanitize(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", apperr.New(apperr.InvalidArgument, "search query must not be empty")
	}
	if query == "*" {
		return "", apperr.New(apperr.InvalidArgument, "search query must not be a bare wildcard")
	}
	if strings.HasPrefix(query, "*") {
		return "", apperr.New(apperr.InvalidArgument, "search query must not start with a wildcard")
	}

	tokens := strings.Fields(query)
	if len(tokens) == 1 {
		switch strings.ToUpper(tokens[0]) {
		case "AND", "OR", "NOT":
			return "", apperr.Newf(apperr.InvalidArgument, "search query must not be a lone operator %q", tokens[0])
		}
	}

	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		switch strings.ToUpper(t) {
		case "AND", "OR", "NOT":
			out = append(out, t)
			continue
		}
		if hyphenatedWord.MatchString(t) {
			out = append(out, `"`+t+`"`)
		} else {
			out = append(out, t)
		}
	}
	return strings.Join(out, " "), nil
}

// FallbackTokens reduces query to at most 5 escaped alphanumeric fragments
// for the LIKE-based fallback path, used when Sanitize rejects a query a
// human clearly still wants some result for (e.g. a leading wildcard such
// as "*pipeline").
func FallbackTokens(query string) []string {
	raw := strings.Fields(query)
	out := make([]string, 0, 5)
	for _, t := range raw {
		if len(out) >= 5 {
			break
		}
		cleaned := stripNonAlnum(t)
		if cleaned == "" {
			continue
		}
		out = append(out, escapeLike(cleaned))
	}
	return out
}

func stripNonAlnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// Search runs the sanitized FTS query, falling back to LIKE matching when
// the query is rejected by Sanitize but still has extractable tokens. A
// rejected query with no extractable tokens (a bare "*") yields no results
// and no error.
func Search(ctx context.Context, s *store.Store, projectID int64, query string, limit int) ([]*store.Message, error) {
	sanitized, err := Sanitize(query)
	if err == nil {
		return s.SearchFTS(ctx, projectID, sanitized, limit)
	}

	tokens := FallbackTokens(query)
	if len(tokens) == 0 {
		return []*store.Message{}, nil
	}
	return s.SearchLike(ctx, projectID, tokens, limit)
}
