package mcp

import (
	"context"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

type capabilitiesKey struct{}

// WithAllowedCapabilities attaches the caller's advertised capability set to
// ctx. Most callers never set one — a nil/absent set means "unrestricted",
// matching spec's rule that enforcement only kicks in when the caller's
// context actually advertises an allowed_capabilities set.
func WithAllowedCapabilities(ctx context.Context, capabilities []string) context.Context {
	set := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		set[c] = true
	}
	return context.WithValue(ctx, capabilitiesKey{}, set)
}

func allowedCapabilities(ctx context.Context) (map[string]bool, bool) {
	set, ok := ctx.Value(capabilitiesKey{}).(map[string]bool)
	return set, ok
}

// checkCapabilities enforces CAPABILITY_DENIED: if ctx carries an
// allowed_capabilities set, every entry in required must be a member of it.
func checkCapabilities(ctx context.Context, required []string) *apperr.Error {
	set, ok := allowedCapabilities(ctx)
	if !ok {
		return nil
	}
	for _, r := range required {
		if !set[r] {
			return apperr.Newf(apperr.CapabilityDenied, "tool requires capability %q", r)
		}
	}
	return nil
}
