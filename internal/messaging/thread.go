package messaging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

var threadIDRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidateThreadID checks a caller-supplied thread identifier, which may be
// either a slug-shaped string or a decimal message id used as a thread
// seed — both forms coexist, per the archive's original behavior.
func ValidateThreadID(id string) error {
	if id == "" {
		return nil
	}
	if threadIDRE.MatchString(id) {
		return nil
	}
	return apperr.Newf(apperr.InvalidThreadID, "thread_id %q must be alphanumeric with _/- separators, max 64 chars", id)
}

// ThreadIDFor computes the thread_id a reply should carry: verbatim
// carry-through of the original message's thread_id if it has one,
// otherwise the original message's own numeric id stringified so every
// reply chain has a stable thread key even when the root never set one.
func ThreadIDFor(original *store.Message) string {
	if original.ThreadID != "" {
		return original.ThreadID
	}
	return strconv.FormatInt(original.ID, 10)
}

// ReplySubject applies idempotent "Re: " prefixing: a subject already
// carrying the prefix (case-insensitively) is left alone rather than
// accumulating "Re: Re: Re: ...".
func ReplySubject(original string) string {
	if strings.HasPrefix(strings.ToLower(original), "re: ") {
		return original
	}
	return fmt.Sprintf("Re: %s", original)
}
