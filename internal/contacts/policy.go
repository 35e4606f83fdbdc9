package contacts

import (
	"context"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// Decision is the outcome of evaluating a sender's ability to reach a
// recipient under the recipient's contact policy.
type Decision struct {
	Allowed        bool
	NeedsHandshake bool
	Link           *store.AgentLink
}

// Evaluate applies recipientPolicy to a sender -> recipient pair, reading
// any existing directed link the sender holds on the recipient.
func Evaluate(ctx context.Context, s *store.Store, senderProjectID, senderID, recipientProjectID, recipientID int64, recipientPolicy store.ContactPolicy, now time.Time) (Decision, error) {
	switch recipientPolicy {
	case store.PolicyOpen:
		return Decision{Allowed: true}, nil
	case store.PolicyBlockAll:
		return Decision{Allowed: false}, nil
	case store.PolicyAuto, store.PolicyContactsOnly:
		link, err := s.GetLink(ctx, senderProjectID, senderID, recipientProjectID, recipientID)
		if err != nil {
			tagged := apperr.As(err)
			if tagged.Code == apperr.NotFound {
				if recipientPolicy == store.PolicyAuto {
					return Decision{Allowed: false, NeedsHandshake: true}, nil
				}
				return Decision{Allowed: false}, nil
			}
			return Decision{}, err
		}
		effective := EffectiveStatus(link, now)
		switch effective {
		case store.LinkApproved:
			return Decision{Allowed: true, Link: link}, nil
		case store.LinkBlocked:
			return Decision{Allowed: false, Link: link}, nil
		default: // pending, or approved-but-stale demoted to pending
			if recipientPolicy == store.PolicyAuto {
				return Decision{Allowed: false, NeedsHandshake: true, Link: link}, nil
			}
			return Decision{Allowed: false, Link: link}, nil
		}
	default:
		return Decision{}, apperr.Newf(apperr.ConfigurationError, "unknown contact policy %q", recipientPolicy)
	}
}
