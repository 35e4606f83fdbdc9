package messaging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/archive"
	"github.com/agentmail/agentmail-mcp/internal/contacts"
	"github.com/agentmail/agentmail-mcp/internal/reservations"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// Composer wires the store, archive, contact policy, and reservation
// conflict check into the single send_message/reply_message pipeline.
type Composer struct {
	Store        *store.Store
	Resolver     Resolver
	Reservations *reservations.Service
	Transcoder   AttachmentTranscoder
	LockTimeout  time.Duration
	LinkTTL      time.Duration
	AutoAccept   bool
}

// SendRequest is the input to Send. The archive write surfaces a send will
// touch are never caller-supplied: Send derives them itself from the
// sender and resolved recipients (see writeSurfaces), since a malicious or
// careless caller could otherwise omit a path and dodge an active
// reservation entirely.
type SendRequest struct {
	ProjectID   int64
	SenderID    int64
	To, CC, BCC []string
	ThreadID    string // empty for a new thread
	Topic       string
	Subject     string
	BodyMD      string
	Importance  store.Importance
	AckRequired bool
	Attachments []InputAttachment
}

// InputAttachment is a caller-supplied attachment before processing.
type InputAttachment struct {
	Data      []byte
	MediaType string
	Filename  string
}

// ArchiveAccessor opens (and caches) per-project Archives; implemented by
// internal/archiveset so Composer doesn't own archive lifecycle itself.
type ArchiveAccessor interface {
	Open(projectSlug string) (*archive.Archive, error)
}

// recipientWrite pairs a resolved recipient with the archive its inbox
// copy belongs in — which is the recipient's OWN project archive, not
// necessarily the sender's, for cross-project sends.
type recipientWrite struct {
	agent *store.Agent
	kind  store.RecipientKind
}

// Send runs the full compose pipeline: contact-policy gate (with one
// auto-handshake retry), reservation conflict pre-check against the send's
// server-derived write surfaces, attachment processing, and a combined
// store+archive commit. It returns the inserted message and any non-fatal
// handshake warnings.
//
// Per Invariant #1, every (message, recipient) pair gets a matching inbox
// copy: the canonical messages/YYYY/MM/*.md file is written once, the
// sender's agents/<Name>/outbox gets one copy, and every to/cc/bcc
// recipient (bcc included, for audit purposes — bcc only ever omits the
// notification breadcrumb, never the archive write) gets one copy under
// their own agents/<Name>/inbox.
func (c *Composer) Send(ctx context.Context, archives ArchiveAccessor, project *store.Project, req SendRequest, intro contacts.IntroSender, now time.Time) (*store.Message, []string, error) {
	if req.ThreadID != "" {
		if err := ValidateThreadID(req.ThreadID); err != nil {
			return nil, nil, err
		}
	}

	senderAgent, err := c.Store.GetAgentByID(ctx, req.SenderID)
	if err != nil {
		return nil, nil, err
	}

	resolved, err := ResolveAll(ctx, c.Resolver, req.ProjectID, req.SenderID, req.To, req.CC, req.BCC)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	var recipients []store.Recipient
	var writes []recipientWrite
	for _, r := range resolved {
		if r.Agent.ID != req.SenderID {
			decision, err := contacts.Evaluate(ctx, c.Store, req.ProjectID, req.SenderID, r.Agent.ProjectID, r.Agent.ID, r.Agent.ContactPolicy, now)
			if err != nil {
				return nil, nil, err
			}
			if !decision.Allowed && decision.NeedsHandshake {
				decision, err = contacts.AutoHandshake(ctx, c.Store, intro, req.ProjectID, req.SenderID, r.Agent.ProjectID, r.Agent.ID, r.Agent.ContactPolicy, c.AutoAccept, c.LinkTTL, now)
				if err != nil {
					return nil, nil, err
				}
				if decision.Allowed {
					warnings = append(warnings, fmt.Sprintf("auto-handshake accepted with %s", r.Agent.Name))
				}
			}
			if !decision.Allowed {
				return nil, nil, apperr.Newf(apperr.ContactBlocked, "%s does not accept messages from this agent yet", r.Agent.Name)
			}
		}
		recipients = append(recipients, store.Recipient{AgentID: r.Agent.ID, Kind: r.Kind})
		writes = append(writes, recipientWrite{agent: r.Agent, kind: r.Kind})
	}

	surfaces := writeSurfaces(senderAgent.Name, writes, now)
	if err := c.checkReservationConflicts(ctx, req.ProjectID, req.SenderID, surfaces, now); err != nil {
		return nil, nil, err
	}

	var attachments []store.Attachment
	var canonicalAttachmentChanges []archive.Change
	for _, in := range req.Attachments {
		att, data, path, err := ProcessAttachment(ctx, in.Data, in.MediaType, in.Filename, senderAgent.AttachmentsPolicy, c.Transcoder)
		if err != nil {
			return nil, nil, err
		}
		attachments = append(attachments, att)
		if data != nil {
			canonicalAttachmentChanges = append(canonicalAttachmentChanges, archive.Change{Path: path, Data: data})
		}
	}

	msg := &store.Message{
		ProjectID: req.ProjectID, SenderID: req.SenderID, ThreadID: req.ThreadID,
		Topic: req.Topic, Subject: req.Subject, BodyMD: req.BodyMD,
		Importance: req.Importance, AckRequired: req.AckRequired, CreatedTS: now,
		Attachments: attachments,
	}
	inserted, err := c.Store.InsertMessage(ctx, msg, recipients)
	if err != nil {
		return nil, nil, err
	}

	frontmatter := messageFrontmatter(inserted, project, senderAgent.Name, writes)
	body := archive.RenderMessage(frontmatter, inserted.BodyMD)

	senderArchive, err := archives.Open(project.Slug)
	if err != nil {
		return nil, nil, err
	}

	canonicalRel := archive.MessageRelPath(inserted.CreatedTS, inserted.Subject, inserted.ID)
	senderChanges := append([]archive.Change{{Path: canonicalRel, Data: body}}, canonicalAttachmentChanges...)
	senderChanges = append(senderChanges, archive.Change{
		Path: archive.AgentOutboxRelPath(senderAgent.Name, inserted.CreatedTS, inserted.Subject, inserted.ID),
		Data: body,
	})

	// Local recipients (same project as the sender) land in the same
	// commit as the canonical file and outbox copy; cross-project
	// recipients need their own commit against their own archive, since
	// Archive.Commit can only touch one project's git repo at a time.
	byArchiveSlug := map[string][]archive.Change{}
	for _, w := range writes {
		// Every recipient gets an inbox copy, even the sender addressing
		// themself (Self) — the outbox copy above records the send, this
		// one records the receipt, and Invariant #1 treats them as
		// separate (message, recipient) pairs.
		inboxRel := archive.AgentInboxRelPath(w.agent.Name, inserted.CreatedTS, inserted.Subject, inserted.ID)
		change := archive.Change{Path: inboxRel, Data: body}
		if w.agent.ProjectID == req.ProjectID {
			senderChanges = append(senderChanges, change)
			continue
		}
		recipientProject, err := c.Store.GetProjectByID(ctx, w.agent.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		byArchiveSlug[recipientProject.Slug] = append(byArchiveSlug[recipientProject.Slug], change)
	}

	commitMsg := fmt.Sprintf("message %d: %s", inserted.ID, inserted.Subject)
	if err := senderArchive.Commit(c.LockTimeout, commitMsg, senderChanges); err != nil {
		return nil, nil, err
	}
	for slug, changes := range byArchiveSlug {
		recipientArchive, err := archives.Open(slug)
		if err != nil {
			return nil, nil, err
		}
		if err := recipientArchive.Commit(c.LockTimeout, commitMsg, changes); err != nil {
			return nil, nil, err
		}
	}

	return inserted, warnings, nil
}

// writeSurfaces derives the set of archive directories a send will write
// into: the canonical month directory, the sender's outbox month
// directory, and every distinct recipient's inbox month directory. These
// are checked against active file reservations before anything is
// written, so a send can never silently bypass a reservation simply by
// not mentioning a path.
func writeSurfaces(senderName string, writes []recipientWrite, now time.Time) []string {
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
		}
	}
	add(archive.MessagesMonthDir(now))
	add(archive.AgentOutboxMonthDir(senderName, now))
	for _, w := range writes {
		add(archive.AgentInboxMonthDir(w.agent.Name, now))
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// checkReservationConflicts fails the send if any derived write surface
// falls under an active, exclusive reservation held by an agent other
// than the sender.
func (c *Composer) checkReservationConflicts(ctx context.Context, projectID, senderID int64, surfaces []string, now time.Time) error {
	active, err := c.Store.ActiveReservations(ctx, projectID, now)
	if err != nil {
		return err
	}
	idx := reservations.BuildIndex(active)
	for _, surface := range surfaces {
		for _, conflict := range idx.FindConflicts(surface, true) {
			if conflict.AgentID != senderID && conflict.Exclusive {
				return apperr.Newf(apperr.FileReservationConf, "%s is under an active reservation held by another agent", surface)
			}
		}
	}
	return nil
}

// messageFrontmatter builds the full field set spec.md names for an
// archived message: id, thread_id, project, project_slug, topic, subject,
// from, to, cc, bcc, importance, ack_required, created, attachments.
func messageFrontmatter(msg *store.Message, project *store.Project, senderName string, writes []recipientWrite) map[string]string {
	var to, cc, bcc, attachmentPaths []string
	for _, w := range writes {
		switch w.kind {
		case store.RecipientTo:
			to = append(to, w.agent.Name)
		case store.RecipientCC:
			cc = append(cc, w.agent.Name)
		case store.RecipientBCC:
			bcc = append(bcc, w.agent.Name)
		}
	}
	for _, att := range msg.Attachments {
		switch att.Type {
		case "file":
			attachmentPaths = append(attachmentPaths, att.Path)
		case "inline":
			attachmentPaths = append(attachmentPaths, att.DataURI)
		}
	}

	fields := map[string]string{
		"id":           fmt.Sprintf("%d", msg.ID),
		"thread_id":    msg.ThreadID,
		"project":      project.HumanKey,
		"project_slug": project.Slug,
		"topic":        msg.Topic,
		"subject":      msg.Subject,
		"from":         senderName,
		"to":           strings.Join(to, ", "),
		"cc":           strings.Join(cc, ", "),
		"bcc":          strings.Join(bcc, ", "),
		"importance":   string(msg.Importance),
		"created":      msg.CreatedTS.UTC().Format(time.RFC3339),
		"attachments":  strings.Join(attachmentPaths, ", "),
	}
	if msg.AckRequired {
		fields["ack_required"] = "true"
	}
	return fields
}
