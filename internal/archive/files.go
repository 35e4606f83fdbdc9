package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// imagePattern matches inline markdown image references so the compose
// pipeline can find attachments worth transcoding; ported from the
// original archive's equivalent regex rather than invented fresh.
var imagePattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)\)`)

// ImageReferences returns every inline image path/URI referenced in body.
func ImageReferences(body string) []string {
	matches := imagePattern.FindAllStringSubmatch(body, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// MessageFilename returns the canonical archive filename for a message:
// <ISO8601>__<subject-slug>__<id>.md. The slug is truncated to keep
// filenames portable across filesystems.
func MessageFilename(createdTS time.Time, subject string, id int64) string {
	s := slug.Make(subject)
	if len(s) > 60 {
		s = s[:60]
	}
	if s == "" {
		s = "message"
	}
	ts := createdTS.UTC().Format("20060102T150405Z")
	return fmt.Sprintf("%s__%s__%d.md", ts, s, id)
}

// LegacyMessageFilename returns the pre-rename bare-id filename, used only
// to resolve references to messages archived before subject-slug naming
// was introduced.
func LegacyMessageFilename(id int64) string {
	return fmt.Sprintf("%d.md", id)
}

// monthDir returns the "YYYY/MM" partition a message's copies live under,
// keeping any one directory from accumulating every message a project ever
// sent.
func monthDir(createdTS time.Time) string {
	ts := createdTS.UTC()
	return filepath.Join(ts.Format("2006"), ts.Format("01"))
}

// MessagesMonthDir returns the canonical messages/ subdirectory (relative to
// the archive root) a message created at createdTS is filed under.
func MessagesMonthDir(createdTS time.Time) string {
	return filepath.Join("messages", monthDir(createdTS))
}

// MessageRelPath returns the canonical messages/YYYY/MM/<file> path
// (relative to the archive root) for one message.
func MessageRelPath(createdTS time.Time, subject string, id int64) string {
	return filepath.Join(MessagesMonthDir(createdTS), MessageFilename(createdTS, subject, id))
}

// AgentOutboxMonthDir returns the agents/<name>/outbox/ subdirectory
// (relative to the archive root) a message sent at createdTS is filed under.
func AgentOutboxMonthDir(agentName string, createdTS time.Time) string {
	return filepath.Join("agents", agentName, "outbox", monthDir(createdTS))
}

// AgentOutboxRelPath returns an agent's outbox copy path for one message,
// relative to the archive root.
func AgentOutboxRelPath(agentName string, createdTS time.Time, subject string, id int64) string {
	return filepath.Join(AgentOutboxMonthDir(agentName, createdTS), MessageFilename(createdTS, subject, id))
}

// AgentInboxMonthDir returns the agents/<name>/inbox/ subdirectory (relative
// to the archive root) a message received at createdTS is filed under.
func AgentInboxMonthDir(agentName string, createdTS time.Time) string {
	return filepath.Join("agents", agentName, "inbox", monthDir(createdTS))
}

// AgentInboxRelPath returns one recipient's inbox copy path for one message,
// relative to the archive root.
func AgentInboxRelPath(agentName string, createdTS time.Time, subject string, id int64) string {
	return filepath.Join(AgentInboxMonthDir(agentName, createdTS), MessageFilename(createdTS, subject, id))
}

// ResolveMessagePath finds a message's file on disk, trying the canonical
// name first and falling back to a glob on the id suffix, then the legacy
// bare-id name.
func ResolveMessagePath(inboxDir string, createdTS time.Time, subject string, id int64) (string, error) {
	canonical := filepath.Join(inboxDir, MessageFilename(createdTS, subject, id))
	if _, err := os.Stat(canonical); err == nil {
		return canonical, nil
	}

	matches, err := filepath.Glob(filepath.Join(inboxDir, fmt.Sprintf("*__%d.md", id)))
	if err == nil && len(matches) > 0 {
		return matches[0], nil
	}

	legacy := filepath.Join(inboxDir, LegacyMessageFilename(id))
	if _, err := os.Stat(legacy); err == nil {
		return legacy, nil
	}

	return "", fmt.Errorf("no archived file found for message %d", id)
}

// RenderMessage produces the YAML-frontmatter markdown document stored for
// one message.
func RenderMessage(fields map[string]string, body string) []byte {
	var b strings.Builder
	b.WriteString("---\n")
	for _, k := range orderedKeys(fields) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(frontmatterValue(fields[k]))
		b.WriteString("\n")
	}
	b.WriteString("---\n\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// frontmatterKeyOrder fixes the emission order of common fields so archived
// files diff cleanly across commits; any key not listed here sorts after,
// in map iteration order (rare — only custom caller-supplied fields).
var frontmatterKeyOrder = []string{
	"id", "thread_id", "project", "project_slug", "topic", "subject", "from",
	"to", "cc", "bcc", "importance", "ack_required", "created", "attachments",
}

func orderedKeys(fields map[string]string) []string {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, k := range frontmatterKeyOrder {
		if v, ok := fields[k]; ok && v != "" {
			out = append(out, k)
			seen[k] = true
		}
	}
	for k := range fields {
		if !seen[k] {
			out = append(out, k)
		}
	}
	return out
}

func frontmatterValue(v string) string {
	if strings.ContainsAny(v, ":#[]{}\"'") || v == "" {
		return fmt.Sprintf("%q", v)
	}
	return v
}

func applyChange(root string, c Change) error {
	full := filepath.Join(root, c.Path)
	if c.Delete {
		return os.Remove(full)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, c.Data, 0o644)
}
