package mcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityRecordAndSince(t *testing.T) {
	a := NewActivity()
	now := time.Now().UTC()

	a.Record("send_message", "messaging", "", now.Add(-10*time.Minute))
	a.Record("fetch_inbox", "messaging", "NOT_FOUND", now.Add(-1*time.Minute))

	recent := a.Since(now.Add(-5 * time.Minute))
	require.Len(t, recent, 1)
	assert.Equal(t, "fetch_inbox", recent[0].Tool)
	assert.Equal(t, "NOT_FOUND", recent[0].ErrorType)

	all := a.Since(now.Add(-1 * time.Hour))
	require.Len(t, all, 2)
	assert.Equal(t, "send_message", all[0].Tool)
}

func TestActivityWrapsAtCapacity(t *testing.T) {
	a := NewActivity()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < activityCapacity+10; i++ {
		a.Record("tool", "cluster", "", base.Add(time.Duration(i)*time.Second))
	}
	events := a.Since(base.Add(-time.Second))
	assert.Len(t, events, activityCapacity)
	// Oldest surviving event should be the 11th recorded (0-indexed 10),
	// since the first 10 were overwritten by the wrap.
	assert.Equal(t, base.Add(10*time.Second), events[0].At)
}
