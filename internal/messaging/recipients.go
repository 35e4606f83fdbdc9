// Package messaging implements the compose pipeline: recipient resolution,
// contact-policy gating, reservation conflict pre-checks, attachment
// processing, and the combined store+archive commit for every message.
package messaging

import (
	"context"
	"strings"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// RecipientRef is a tagged value describing who a message addresses: an
// agent local to the sender's project, an agent in a named sibling
// project, or the sending agent itself (for self-notes).
type RecipientRef interface{ isRecipientRef() }

// LocalRef addresses an agent by name within the sender's own project.
type LocalRef struct{ Name string }

func (LocalRef) isRecipientRef() {}

// CrossProjectRef addresses an agent by name in a different project.
type CrossProjectRef struct {
	ProjectSlug string
	Name        string
}

func (CrossProjectRef) isRecipientRef() {}

// SelfRef addresses the sending agent.
type SelfRef struct{}

func (SelfRef) isRecipientRef() {}

// ParseRecipient accepts "Name", "project-slug/Name", and "self" forms.
func ParseRecipient(raw string) RecipientRef {
	if strings.EqualFold(raw, "self") {
		return SelfRef{}
	}
	if slug, name, ok := strings.Cut(raw, "/"); ok {
		return CrossProjectRef{ProjectSlug: slug, Name: name}
	}
	return LocalRef{Name: raw}
}

// ResolvedRecipient is a RecipientRef resolved to a concrete store.Agent.
type ResolvedRecipient struct {
	Agent *store.Agent
	Kind  store.RecipientKind
}

// Resolver resolves RecipientRefs to store.Agent rows behind one seam, so
// the compose pipeline doesn't need to know how cross-project lookups work.
type Resolver interface {
	Resolve(ctx context.Context, senderProjectID, senderAgentID int64, ref RecipientRef) (*store.Agent, error)
}

// StoreResolver is the default Resolver backed directly by the relational
// store.
type StoreResolver struct {
	Store *store.Store
}

func (r *StoreResolver) Resolve(ctx context.Context, senderProjectID, senderAgentID int64, ref RecipientRef) (*store.Agent, error) {
	switch v := ref.(type) {
	case SelfRef:
		return r.Store.GetAgentByID(ctx, senderAgentID)
	case LocalRef:
		return r.Store.GetAgentByName(ctx, senderProjectID, v.Name)
	case CrossProjectRef:
		proj, err := r.Store.GetProjectBySlug(ctx, v.ProjectSlug)
		if err != nil {
			return nil, err
		}
		return r.Store.GetAgentByName(ctx, proj.ID, v.Name)
	default:
		return nil, apperr.New(apperr.InvalidArgument, "unrecognized recipient reference")
	}
}

// ResolveAll resolves a full to/cc/bcc recipient list, failing on the first
// unresolvable reference — message composition is all-or-nothing, never
// partial.
func ResolveAll(ctx context.Context, resolver Resolver, senderProjectID, senderAgentID int64, to, cc, bcc []string) ([]ResolvedRecipient, error) {
	var out []ResolvedRecipient
	groups := []struct {
		refs []string
		kind store.RecipientKind
	}{
		{to, store.RecipientTo}, {cc, store.RecipientCC}, {bcc, store.RecipientBCC},
	}
	for _, g := range groups {
		for _, raw := range g.refs {
			agent, err := resolver.Resolve(ctx, senderProjectID, senderAgentID, ParseRecipient(raw))
			if err != nil {
				return nil, apperr.Wrap(apperr.RecipientNotFound, err, "resolving recipient "+raw)
			}
			out = append(out, ResolvedRecipient{Agent: agent, Kind: g.kind})
		}
	}
	if len(out) == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "at least one recipient is required")
	}
	return out, nil
}
