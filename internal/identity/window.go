package identity

import (
	"regexp"

	"github.com/google/uuid"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

var windowUUIDRE = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidateWindowUUID checks the caller-supplied window identifier shape.
func ValidateWindowUUID(id string) error {
	if !windowUUIDRE.MatchString(id) {
		return apperr.Newf(apperr.InvalidWindowUUID, "window uuid %q is not a valid UUID", id)
	}
	return nil
}

// NewWindowUUID mints a fresh window identifier for a caller that doesn't
// supply its own (e.g. a first-time terminal session).
func NewWindowUUID() string {
	return uuid.NewString()
}

// NewRegistrationToken mints an opaque per-agent token handed back from
// register_agent, used by later calls from the same process to prove
// continuity without re-supplying a window uuid.
func NewRegistrationToken() string {
	return uuid.NewString()
}
