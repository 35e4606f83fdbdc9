// Package mail implements the coordination bus's messaging tools: send,
// reply, inbox/topic fetch, read/ack receipts, and retention purge.
package mail

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/messaging"
	"github.com/agentmail/agentmail-mcp/internal/store"
	"github.com/agentmail/agentmail-mcp/internal/tools/toolkit"
)

// --- send_message ---

type sendParams struct {
	ProjectSlug string   `json:"project_slug"`
	SenderID    int64    `json:"sender_id"`
	To          []string `json:"to"`
	CC          []string `json:"cc"`
	BCC         []string `json:"bcc"`
	ThreadID    string   `json:"thread_id"`
	Topic       string   `json:"topic"`
	Subject     string   `json:"subject"`
	BodyMD      string   `json:"body_md"`
	Importance  string   `json:"importance"`
	AckRequired bool     `json:"ack_required"`
	Format      string   `json:"format,omitempty"`
}

// SendMessage composes and commits a new message through the full
// contact-policy and reservation-conflict pipeline.
type SendMessage struct {
	Store    *store.Store
	Composer *messaging.Composer
	Archives messaging.ArchiveAccessor
}

func NewSendMessage(s *store.Store, composer *messaging.Composer, archives messaging.ArchiveAccessor) *SendMessage {
	return &SendMessage{Store: s, Composer: composer, Archives: archives}
}

func (t *SendMessage) Name() string { return "send_message" }
func (t *SendMessage) Description() string {
	return "Send a new threaded message to one or more agents, gated by each recipient's contact policy."
}
func (t *SendMessage) Cluster() mcp.Cluster           { return mcp.ClusterMessaging }
func (t *SendMessage) RequiredCapabilities() []string { return nil }
func (t *SendMessage) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "sender_id": {"type": "integer"},
    "to": {"type": "array", "items": {"type": "string"}},
    "cc": {"type": "array", "items": {"type": "string"}},
    "bcc": {"type": "array", "items": {"type": "string"}},
    "thread_id": {"type": "string"},
    "topic": {"type": "string"},
    "subject": {"type": "string"},
    "body_md": {"type": "string"},
    "importance": {"type": "string", "enum": ["low", "normal", "high", "urgent"]},
    "ack_required": {"type": "boolean"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "sender_id", "to", "subject", "body_md"]
}`)
}

func (t *SendMessage) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p sendParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}

	importance := store.ImportanceNormal
	if p.Importance != "" {
		importance = store.Importance(p.Importance)
	}

	msg, warnings, err := t.Composer.Send(ctx, t.Archives, project, messaging.SendRequest{
		ProjectID:   project.ID,
		SenderID:    p.SenderID,
		To:          p.To,
		CC:          p.CC,
		BCC:         p.BCC,
		ThreadID:    p.ThreadID,
		Topic:       p.Topic,
		Subject:     p.Subject,
		BodyMD:      p.BodyMD,
		Importance:  importance,
		AckRequired: p.AckRequired,
	}, nil, time.Now().UTC())
	if err != nil {
		return toolkit.Err(params, err)
	}

	return toolkit.Ok(params, map[string]any{
		"message_id": msg.ID,
		"thread_id":  msg.ThreadID,
		"warnings":   warnings,
	})
}

// --- reply_message ---

type replyParams struct {
	ProjectSlug   string   `json:"project_slug"`
	SenderID      int64    `json:"sender_id"`
	InReplyTo     int64    `json:"in_reply_to"`
	BodyMD        string   `json:"body_md"`
	CC            []string `json:"cc"`
	AckRequired   bool     `json:"ack_required"`
	Format        string   `json:"format,omitempty"`
}

// ReplyMessage sends a reply within the original message's thread,
// addressed back to its sender with the subject "Re: "-prefixed
// idempotently.
type ReplyMessage struct {
	Store    *store.Store
	Composer *messaging.Composer
	Archives messaging.ArchiveAccessor
}

func NewReplyMessage(s *store.Store, composer *messaging.Composer, archives messaging.ArchiveAccessor) *ReplyMessage {
	return &ReplyMessage{Store: s, Composer: composer, Archives: archives}
}

func (t *ReplyMessage) Name() string        { return "reply_message" }
func (t *ReplyMessage) Description() string { return "Reply within an existing message's thread." }
func (t *ReplyMessage) Cluster() mcp.Cluster { return mcp.ClusterMessaging }
func (t *ReplyMessage) RequiredCapabilities() []string { return nil }
func (t *ReplyMessage) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "sender_id": {"type": "integer"},
    "in_reply_to": {"type": "integer"},
    "body_md": {"type": "string"},
    "cc": {"type": "array", "items": {"type": "string"}},
    "ack_required": {"type": "boolean"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "sender_id", "in_reply_to", "body_md"]
}`)
}

func (t *ReplyMessage) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p replyParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	original, err := t.Store.GetMessage(ctx, p.InReplyTo)
	if err != nil {
		return toolkit.Err(params, err)
	}
	sender, err := t.Store.GetAgentByID(ctx, original.SenderID)
	if err != nil {
		return toolkit.Err(params, err)
	}

	msg, warnings, err := t.Composer.Send(ctx, t.Archives, project, messaging.SendRequest{
		ProjectID:   project.ID,
		SenderID:    p.SenderID,
		To:          []string{sender.Name},
		CC:          p.CC,
		ThreadID:    messaging.ThreadIDFor(original),
		Topic:       original.Topic,
		Subject:     messaging.ReplySubject(original.Subject),
		BodyMD:      p.BodyMD,
		Importance:  original.Importance,
		AckRequired: p.AckRequired,
	}, nil, time.Now().UTC())
	if err != nil {
		return toolkit.Err(params, err)
	}

	return toolkit.Ok(params, map[string]any{
		"message_id": msg.ID,
		"thread_id":  msg.ThreadID,
		"warnings":   warnings,
	})
}

// --- fetch_inbox ---

type fetchInboxParams struct {
	AgentID     int64  `json:"agent_id"`
	UnreadOnly  bool   `json:"unread_only"`
	AckRequired bool   `json:"ack_required"`
	Topic       string `json:"topic"`
	Limit       int    `json:"limit"`
	Format      string `json:"format,omitempty"`
}

// FetchInbox returns an agent's received messages, newest first, optionally
// narrowed to unread, ack-required, or a single topic.
type FetchInbox struct {
	Store *store.Store
}

func NewFetchInbox(s *store.Store) *FetchInbox { return &FetchInbox{Store: s} }

func (t *FetchInbox) Name() string        { return "fetch_inbox" }
func (t *FetchInbox) Description() string { return "Fetch an agent's received messages, newest first." }
func (t *FetchInbox) Cluster() mcp.Cluster { return mcp.ClusterMessaging }
func (t *FetchInbox) RequiredCapabilities() []string { return nil }
func (t *FetchInbox) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_id": {"type": "integer"},
    "unread_only": {"type": "boolean"},
    "ack_required": {"type": "boolean"},
    "topic": {"type": "string"},
    "limit": {"type": "integer"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["agent_id"]
}`)
}

func (t *FetchInbox) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p fetchInboxParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	messages, err := t.Store.FetchInbox(ctx, p.AgentID, store.InboxFilter{
		UnreadOnly:  p.UnreadOnly,
		AckRequired: p.AckRequired,
		Topic:       p.Topic,
		Limit:       limit,
	})
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, messages)
}

// --- fetch_topic ---

type fetchTopicParams struct {
	ProjectSlug string `json:"project_slug"`
	ThreadID    string `json:"thread_id"`
	Format      string `json:"format,omitempty"`
}

// FetchTopic returns every message in a thread, oldest first.
type FetchTopic struct {
	Store *store.Store
}

func NewFetchTopic(s *store.Store) *FetchTopic { return &FetchTopic{Store: s} }

func (t *FetchTopic) Name() string        { return "fetch_topic" }
func (t *FetchTopic) Description() string { return "Fetch every message in a thread, oldest first." }
func (t *FetchTopic) Cluster() mcp.Cluster { return mcp.ClusterMessaging }
func (t *FetchTopic) RequiredCapabilities() []string { return nil }
func (t *FetchTopic) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "thread_id": {"type": "string"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "thread_id"]
}`)
}

func (t *FetchTopic) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p fetchTopicParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	if err := messaging.ValidateThreadID(p.ThreadID); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	messages, err := t.Store.ListThread(ctx, project.ID, p.ThreadID)
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, messages)
}

// --- mark_message_read / acknowledge_message ---

type receiptParams struct {
	MessageID int64 `json:"message_id"`
	AgentID   int64 `json:"agent_id"`
	Format    string `json:"format,omitempty"`
}

// MarkMessageRead records a monotonic read receipt; a repeat call is a
// no-op, per the ordering guarantee that later calls never un-set a
// receipt field.
type MarkMessageRead struct {
	Store *store.Store
}

func NewMarkMessageRead(s *store.Store) *MarkMessageRead { return &MarkMessageRead{Store: s} }

func (t *MarkMessageRead) Name() string        { return "mark_message_read" }
func (t *MarkMessageRead) Description() string { return "Record a read receipt for a message." }
func (t *MarkMessageRead) Cluster() mcp.Cluster { return mcp.ClusterMessaging }
func (t *MarkMessageRead) RequiredCapabilities() []string { return nil }
func (t *MarkMessageRead) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "message_id": {"type": "integer"},
    "agent_id": {"type": "integer"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["message_id", "agent_id"]
}`)
}

func (t *MarkMessageRead) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p receiptParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	if err := t.Store.MarkRead(ctx, p.MessageID, p.AgentID); err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{"message_id": p.MessageID, "agent_id": p.AgentID, "read": true})
}

// AcknowledgeMessage records an ack receipt for a message that required one.
type AcknowledgeMessage struct {
	Store *store.Store
}

func NewAcknowledgeMessage(s *store.Store) *AcknowledgeMessage { return &AcknowledgeMessage{Store: s} }

func (t *AcknowledgeMessage) Name() string        { return "acknowledge_message" }
func (t *AcknowledgeMessage) Description() string { return "Record an acknowledgement receipt for a message." }
func (t *AcknowledgeMessage) Cluster() mcp.Cluster { return mcp.ClusterMessaging }
func (t *AcknowledgeMessage) RequiredCapabilities() []string { return nil }
func (t *AcknowledgeMessage) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "message_id": {"type": "integer"},
    "agent_id": {"type": "integer"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["message_id", "agent_id"]
}`)
}

func (t *AcknowledgeMessage) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p receiptParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	if err := t.Store.AcknowledgeMessage(ctx, p.MessageID, p.AgentID); err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{"message_id": p.MessageID, "agent_id": p.AgentID, "acknowledged": true})
}

// --- purge_old_messages ---

type purgeParams struct {
	ProjectSlug string `json:"project_slug"`
	BeforeDays  int    `json:"before_days"`
	DryRun      bool   `json:"dry_run"`
	Format      string `json:"format,omitempty"`
}

// PurgeOldMessages trims the relational store's working set of messages
// older than a retention window. The git archive's history is untouched —
// it remains the durable record.
type PurgeOldMessages struct {
	Store *store.Store
}

func NewPurgeOldMessages(s *store.Store) *PurgeOldMessages { return &PurgeOldMessages{Store: s} }

func (t *PurgeOldMessages) Name() string { return "purge_old_messages" }
func (t *PurgeOldMessages) Description() string {
	return "Delete (or, with dry_run, count) messages older than a retention window from the relational store. The git archive is untouched."
}
func (t *PurgeOldMessages) Cluster() mcp.Cluster           { return mcp.ClusterMessaging }
func (t *PurgeOldMessages) RequiredCapabilities() []string { return []string{"destructive"} }
func (t *PurgeOldMessages) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "before_days": {"type": "integer", "description": "Purge messages older than this many days"},
    "dry_run": {"type": "boolean"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "before_days"]
}`)
}

func (t *PurgeOldMessages) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p purgeParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	if p.BeforeDays <= 0 {
		return toolkit.Err(params, apperr.New(apperr.InvalidArgument, "before_days must be positive"))
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	before := time.Now().UTC().AddDate(0, 0, -p.BeforeDays)
	n, err := messaging.PurgeOldMessages(ctx, t.Store, project.ID, before, p.DryRun)
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{"purged": n, "dry_run": p.DryRun})
}
