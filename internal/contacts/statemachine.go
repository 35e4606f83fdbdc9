// Package contacts implements AgentLink lifecycle management: the
// pending/approved/blocked state machine, policy-based message gating, and
// the auto-handshake recovery flow.
package contacts

import (
	"context"
	"errors"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// ErrInvalidTransition mirrors the transition-table validation style used
// elsewhere in the server: a fixed allowed-transitions map, generalized here
// from link lifecycle to contact state. No per-target guard functions exist.
var ErrInvalidTransition = errors.New("invalid contact link transition")

var linkTransitions = map[store.LinkStatus][]store.LinkStatus{
	store.LinkPending:  {store.LinkApproved, store.LinkBlocked},
	store.LinkApproved: {store.LinkBlocked},
	store.LinkBlocked:  {store.LinkPending, store.LinkApproved},
}

// TransitionContext carries store access and the current time to
// ValidateTransition; the check itself reads only the fixed table.
type TransitionContext struct {
	Ctx   context.Context
	Store *store.Store
	Now   time.Time
}

// ValidateTransition checks from -> to against the fixed table; no other
// condition is checked.
func ValidateTransition(tc *TransitionContext, from, to store.LinkStatus) error {
	if from == to {
		return nil // idempotent re-assertion, not an error
	}
	if !isAllowed(from, to) {
		return apperr.Newf(apperr.InvalidArgument, "%v: cannot move contact link from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func isAllowed(from, to store.LinkStatus) bool {
	for _, candidate := range linkTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// EffectiveStatus computes the derived, never-persisted "approved but
// stale" view: an AgentLink whose ExpiresTS has passed is surfaced to
// callers as needing re-handshake, without the stored row itself changing
// until something writes to it again.
func EffectiveStatus(l *store.AgentLink, now time.Time) store.LinkStatus {
	if l.Status == store.LinkApproved && l.ExpiresTS != nil && now.After(*l.ExpiresTS) {
		return store.LinkPending
	}
	return l.Status
}
