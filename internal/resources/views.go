package resources

import (
	"net/url"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// Staleness thresholds for the ack-tracking views. Neither spec.md nor the
// original implementation pins exact numbers, so these follow the same
// order of magnitude as the reservation-staleness default
// (config.Reservations.StaleInactivitySeconds, typically one hour): a
// required ack is "stale" after an hour of silence and "overdue" after a
// full day, the same escalation shape the reservation sweep already uses
// for inactive leases.
const (
	ackStaleAfter   = time.Hour
	ackOverdueAfter = 24 * time.Hour
)

// urgentImportance reports whether imp counts as "urgent" for the
// urgent-unread view: high or urgent, not normal/low traffic.
func urgentImportance(imp store.Importance) bool {
	return imp == store.ImportanceHigh || imp == store.ImportanceUrgent
}

// UrgentUnread exposes resource://views/urgent-unread/{agent}?project=…:
// unread messages tagged high or urgent importance.
type UrgentUnread struct {
	Store *store.Store
}

func NewUrgentUnread(s *store.Store) *UrgentUnread { return &UrgentUnread{Store: s} }

func (r *UrgentUnread) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://views/urgent-unread/{agent}",
		Name:        "view_urgent_unread",
		Description: "An agent's unread messages tagged high or urgent importance. Requires ?project=<slug>.",
		MimeType:    "application/json",
	}
}

func (r *UrgentUnread) ReadTemplated(agentName string, query url.Values) (*mcp.ResourcesReadResult, error) {
	agent, err := resolveAgent(r.Store, agentName, query)
	if err != nil {
		return nil, err
	}
	msgs, err := r.Store.FetchInbox(backgroundCtx(), agent.ID, store.InboxFilter{UnreadOnly: true})
	if err != nil {
		return nil, err
	}
	urgent := make([]*store.Message, 0, len(msgs))
	for _, m := range msgs {
		if urgentImportance(m.Importance) {
			urgent = append(urgent, m)
		}
	}
	return jsonResult("resource://views/urgent-unread/"+agentName, map[string]any{"messages": urgent})
}

// AckRequired exposes resource://views/ack-required/{agent}?project=…:
// messages awaiting this agent's acknowledgement.
type AckRequired struct {
	Store *store.Store
}

func NewAckRequired(s *store.Store) *AckRequired { return &AckRequired{Store: s} }

func (r *AckRequired) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://views/ack-required/{agent}",
		Name:        "view_ack_required",
		Description: "Messages awaiting this agent's acknowledgement. Requires ?project=<slug>.",
		MimeType:    "application/json",
	}
}

func (r *AckRequired) ReadTemplated(agentName string, query url.Values) (*mcp.ResourcesReadResult, error) {
	agent, err := resolveAgent(r.Store, agentName, query)
	if err != nil {
		return nil, err
	}
	msgs, err := r.Store.FetchInbox(backgroundCtx(), agent.ID, store.InboxFilter{AckRequired: true})
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://views/ack-required/"+agentName, map[string]any{"messages": msgs})
}

// acksOlderThan filters an agent's pending acks to ones sent before
// time.Now().Add(-age).
func acksOlderThan(s *store.Store, agentID int64, age time.Duration) ([]*store.Message, error) {
	msgs, err := s.FetchInbox(backgroundCtx(), agentID, store.InboxFilter{AckRequired: true})
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().Add(-age)
	out := make([]*store.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.CreatedTS.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out, nil
}

// AcksStale exposes resource://views/acks-stale/{agent}?project=…:
// required acks still pending after ackStaleAfter.
type AcksStale struct {
	Store *store.Store
}

func NewAcksStale(s *store.Store) *AcksStale { return &AcksStale{Store: s} }

func (r *AcksStale) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://views/acks-stale/{agent}",
		Name:        "view_acks_stale",
		Description: "Required acks still pending after an hour. Requires ?project=<slug>.",
		MimeType:    "application/json",
	}
}

func (r *AcksStale) ReadTemplated(agentName string, query url.Values) (*mcp.ResourcesReadResult, error) {
	agent, err := resolveAgent(r.Store, agentName, query)
	if err != nil {
		return nil, err
	}
	msgs, err := acksOlderThan(r.Store, agent.ID, ackStaleAfter)
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://views/acks-stale/"+agentName, map[string]any{"messages": msgs})
}

// AckOverdue exposes resource://views/ack-overdue/{agent}?project=…:
// required acks still pending after ackOverdueAfter.
type AckOverdue struct {
	Store *store.Store
}

func NewAckOverdue(s *store.Store) *AckOverdue { return &AckOverdue{Store: s} }

func (r *AckOverdue) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://views/ack-overdue/{agent}",
		Name:        "view_ack_overdue",
		Description: "Required acks still pending after a full day. Requires ?project=<slug>.",
		MimeType:    "application/json",
	}
}

func (r *AckOverdue) ReadTemplated(agentName string, query url.Values) (*mcp.ResourcesReadResult, error) {
	agent, err := resolveAgent(r.Store, agentName, query)
	if err != nil {
		return nil, err
	}
	msgs, err := acksOlderThan(r.Store, agent.ID, ackOverdueAfter)
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://views/ack-overdue/"+agentName, map[string]any{"messages": msgs})
}
