package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/store"
)

// SummaryRefiner optionally rewrites a heuristic digest through an LLM for
// better prose; a narrow seam left without a concrete implementation here
// — the coordination core never picks or calls a specific model provider.
type SummaryRefiner interface {
	Refine(ctx context.Context, heuristic string, messages []*store.Message) (text string, model string, costUSD float64, err error)
}

// Digest produces (or reuses, within tolerance) a project-wide summary
// covering [since, now).
func Digest(ctx context.Context, s *store.Store, projectID int64, since, now time.Time, toleranceSeconds int, refiner SummaryRefiner) (*store.MessageSummary, error) {
	if cached, err := s.RecentSummary(ctx, projectID, now, toleranceSeconds); err == nil {
		return cached, nil
	}

	messages, err := recentMessages(ctx, s, projectID, since)
	if err != nil {
		return nil, err
	}

	heuristic := heuristicDigest(messages, since, now)
	text := heuristic
	model := ""
	cost := 0.0
	if refiner != nil && len(messages) > 0 {
		if refinedText, refinedModel, refinedCost, err := refiner.Refine(ctx, heuristic, messages); err == nil && refinedText != "" {
			text, model, cost = refinedText, refinedModel, refinedCost
		}
	}

	threadIDs := uniqueThreadIDs(messages)
	return s.InsertSummary(ctx, &store.MessageSummary{
		ProjectID: projectID, StartTS: since, EndTS: now,
		SourceMessageCount: len(messages), SourceThreadIDs: threadIDs,
		SummaryText: text, LLMModel: model, CostUSD: cost,
	})
}

// SummarizeThread produces a heuristic (or LLM-refined) digest of one
// thread's messages.
func SummarizeThread(ctx context.Context, messages []*store.Message, refiner SummaryRefiner) (string, string, float64, error) {
	if len(messages) == 0 {
		return "No messages in this thread.", "", 0, nil
	}
	heuristic := heuristicThreadDigest(messages)
	if refiner == nil {
		return heuristic, "", 0, nil
	}
	text, model, cost, err := refiner.Refine(ctx, heuristic, messages)
	if err != nil || text == "" {
		return heuristic, "", 0, nil
	}
	return text, model, cost, nil
}

func recentMessages(ctx context.Context, s *store.Store, projectID int64, since time.Time) ([]*store.Message, error) {
	return s.RecentProjectMessages(ctx, projectID, since)
}

func heuristicDigest(messages []*store.Message, since, now time.Time) string {
	if len(messages) == 0 {
		return fmt.Sprintf("No activity between %s and %s.", since.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	byTopic := map[string]int{}
	urgent := 0
	for _, m := range messages {
		topic := m.Topic
		if topic == "" {
			topic = "(untopiced)"
		}
		byTopic[topic]++
		if m.Importance == store.ImportanceUrgent || m.Importance == store.ImportanceHigh {
			urgent++
		}
	}

	topics := make([]string, 0, len(byTopic))
	for t := range byTopic {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool { return byTopic[topics[i]] > byTopic[topics[j]] })

	var b strings.Builder
	fmt.Fprintf(&b, "%d messages since %s", len(messages), since.Format(time.RFC3339))
	if urgent > 0 {
		fmt.Fprintf(&b, " (%d high/urgent)", urgent)
	}
	b.WriteString(". Top topics: ")
	limit := len(topics)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%d)", topics[i], byTopic[topics[i]])
	}
	b.WriteString(".")
	return b.String()
}

func heuristicThreadDigest(messages []*store.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thread with %d message(s). Subject: %q.", len(messages), messages[0].Subject)
	last := messages[len(messages)-1]
	fmt.Fprintf(&b, " Most recent at %s: %s", last.CreatedTS.Format(time.RFC3339), truncate(last.BodyMD, 160))
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func uniqueThreadIDs(messages []*store.Message) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range messages {
		if m.ThreadID == "" || seen[m.ThreadID] {
			continue
		}
		seen[m.ThreadID] = true
		out = append(out, m.ThreadID)
	}
	return out
}
