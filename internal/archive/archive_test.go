package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInitializesRepo(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir, "widget-api")
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(a.Root(), ".git"))
	assert.DirExists(t, a.MessagesDir())
	assert.DirExists(t, a.AttachmentsDir())
	assert.DirExists(t, a.ThreadsDir())
	assert.DirExists(t, a.ReservationsDir())

	require.NoError(t, a.EnsureAgentDirs("CrimsonFalcon"))
	assert.DirExists(t, a.AgentInboxDir("CrimsonFalcon"))
	assert.DirExists(t, a.AgentOutboxDir("CrimsonFalcon"))
}

func TestCommitWritesAndCommitsFile(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir, "widget-api")
	require.NoError(t, err)

	now := time.Now().UTC()
	body := RenderMessage(map[string]string{
		"id": "1", "subject": "Hello", "from": "CrimsonFalcon", "created": now.Format(time.RFC3339),
	}, "Body text.")

	rel := MessageRelPath(now, "Hello", 1)
	err = a.Commit(5*time.Second, "add message 1", []Change{
		{Path: rel, Data: body},
	})
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(a.Root(), rel))
	require.NoError(t, err)
	assert.Contains(t, string(written), "Hello")
	assert.Contains(t, string(written), "Body text.")
}

func TestResolveMessagePathFallsBackToLegacy(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir, "widget-api")
	require.NoError(t, err)
	require.NoError(t, a.EnsureAgentDirs("CrimsonFalcon"))

	inbox := a.AgentInboxDir("CrimsonFalcon")
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "42.md"), []byte("legacy"), 0o644))

	path, err := ResolveMessagePath(inbox, time.Now(), "Nonexistent subject", 42)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(inbox, "42.md"), path)
}

func TestProjectLockRecordsOwnerWhileHeld(t *testing.T) {
	dir := t.TempDir()
	lock, err := NewProjectLock(dir)
	require.NoError(t, err)

	release, err := lock.Acquire(time.Second)
	require.NoError(t, err)

	_, _, _, ok := lock.Owner()
	assert.True(t, ok)

	release()
	_, _, _, ok = lock.Owner()
	assert.False(t, ok)
}

func TestImageReferences(t *testing.T) {
	body := "See ![diagram](./diagram.png) and ![shot](https://example.com/a.png)."
	refs := ImageReferences(body)
	require.Len(t, refs, 2)
	assert.Equal(t, "./diagram.png", refs[0])
}

func TestRenderReservationIsLineOriented(t *testing.T) {
	rec := ReservationRecord{ID: 7, Project: "widget-api", AgentName: "AmberWolf", PathPattern: "src/**/*.go", Exclusive: true}
	out := string(RenderReservation(rec))
	assert.Contains(t, out, "id=7\n")
	assert.Contains(t, out, "project=widget-api\n")
	assert.Contains(t, out, "agent=AmberWolf\n")
	assert.Contains(t, out, "pattern=src/**/*.go\n")
	assert.NotContains(t, out, "released_ts=")
}

func TestReservationFilenameIsPatternHash(t *testing.T) {
	a := ReservationFilename("src/**/*.go")
	b := ReservationFilename("src/**/*.go")
	c := ReservationFilename("docs/**/*.md")
	assert.Equal(t, a, b, "renewing the same pattern must produce the same mirror filename")
	assert.NotEqual(t, a, c)
}
