package contacts

import (
	"context"
	"fmt"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// IntroSender delivers the auto-generated handshake introduction message;
// implemented by internal/messaging so contacts never imports messaging
// directly (messaging already imports contacts for policy evaluation).
type IntroSender interface {
	SendIntro(ctx context.Context, senderID, recipientID int64, reason string) error
}

// AutoHandshake runs the single-retry recovery flow for a message blocked
// on CONTACT_REQUIRED: create or reassert a pending link in both
// directions, optionally auto-accept on the recipient's behalf if their
// agent opted into HandshakeAutoAccept, send an introduction message when
// accepted, and return the re-evaluated decision. It performs exactly one
// re-evaluation — callers must not loop this.
func AutoHandshake(ctx context.Context, s *store.Store, intro IntroSender, senderProjectID, senderID, recipientProjectID, recipientID int64, recipientPolicy store.ContactPolicy, autoAccept bool, linkTTL time.Duration, now time.Time) (Decision, error) {
	status := store.LinkPending
	var expires *time.Time
	if autoAccept {
		status = store.LinkApproved
		t := now.Add(linkTTL)
		expires = &t
	}

	link, err := s.UpsertLink(ctx, &store.AgentLink{
		AProjectID: senderProjectID, AAgentID: senderID,
		BProjectID: recipientProjectID, BAgentID: recipientID,
		Status: status, Reason: "auto-handshake", ExpiresTS: expires,
	})
	if err != nil {
		return Decision{}, err
	}

	// Mirror the reverse direction so the recipient's own outbound contact
	// list reflects the relationship too, at the same trust level.
	if _, err := s.UpsertLink(ctx, &store.AgentLink{
		AProjectID: recipientProjectID, AAgentID: recipientID,
		BProjectID: senderProjectID, BAgentID: senderID,
		Status: status, Reason: "auto-handshake", ExpiresTS: expires,
	}); err != nil {
		return Decision{}, err
	}

	if status == store.LinkApproved && intro != nil {
		if err := intro.SendIntro(ctx, senderID, recipientID, "auto-handshake accepted"); err != nil {
			return Decision{}, apperr.Wrap(apperr.DatabaseError, err, "sending handshake introduction")
		}
	}

	return Evaluate(ctx, s, senderProjectID, senderID, recipientProjectID, recipientID, recipientPolicy, now)
}

// RequestContact is the explicit request_contact tool: always lands in
// pending regardless of auto-accept, since it's an intentional ask rather
// than a side effect of a blocked send.
func RequestContact(ctx context.Context, s *store.Store, aProjectID, aAgentID, bProjectID, bAgentID int64, reason string) (*store.AgentLink, error) {
	return s.UpsertLink(ctx, &store.AgentLink{
		AProjectID: aProjectID, AAgentID: aAgentID,
		BProjectID: bProjectID, BAgentID: bAgentID,
		Status: store.LinkPending, Reason: reason,
	})
}

// RespondContact is the explicit respond_contact tool: the recipient of a
// pending request approves or blocks it.
func RespondContact(ctx context.Context, s *store.Store, aProjectID, aAgentID, bProjectID, bAgentID int64, approve bool, linkTTL time.Duration, now time.Time) (*store.AgentLink, error) {
	existing, err := s.GetLink(ctx, bProjectID, bAgentID, aProjectID, aAgentID)
	if err != nil {
		return nil, err
	}
	target := store.LinkBlocked
	var expires *time.Time
	if approve {
		target = store.LinkApproved
		t := now.Add(linkTTL)
		expires = &t
	}
	if err := ValidateTransition(&TransitionContext{Ctx: ctx, Store: s, Now: now}, existing.Status, target); err != nil {
		return nil, err
	}
	return s.UpsertLink(ctx, &store.AgentLink{
		AProjectID: bProjectID, AAgentID: bAgentID,
		BProjectID: aProjectID, BAgentID: aAgentID,
		Status: target, Reason: fmt.Sprintf("responded: %s", target), ExpiresTS: expires,
	})
}
