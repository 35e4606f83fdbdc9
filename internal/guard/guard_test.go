package guard

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cmd := exec.Command("git", "init", dir)
	require.NoError(t, cmd.Run())
	return dir
}

func TestInstallWritesChainRunnerAndPlugin(t *testing.T) {
	repo := initRepo(t)
	inst := &Installer{ReservationsDir: filepath.Join(repo, "file_reservations"), Mode: ModeBlock}
	require.NoError(t, inst.Install(repo, HookPreCommit))

	hookPath := filepath.Join(repo, ".git", "hooks", "pre-commit")
	data, err := os.ReadFile(hookPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "agentmail chain runner")

	pluginPath := filepath.Join(repo, ".git", "hooks", "hooks.d", "pre-commit", pluginFilename)
	pluginData, err := os.ReadFile(pluginPath)
	require.NoError(t, err)
	assert.Contains(t, string(pluginData), "AGENT_MAIL_BYPASS")

	for _, shim := range []string{hookPath + ".cmd", hookPath + ".ps1"} {
		_, err := os.Stat(shim)
		require.NoError(t, err)
	}
}

func TestInstallPreservesExistingHookAsOrig(t *testing.T) {
	repo := initRepo(t)
	hooksDir := filepath.Join(repo, ".git", "hooks")
	require.NoError(t, os.MkdirAll(hooksDir, 0o755))
	existing := "#!/bin/sh\necho pre-existing hook\n"
	require.NoError(t, os.WriteFile(filepath.Join(hooksDir, "pre-commit"), []byte(existing), 0o755))

	inst := &Installer{ReservationsDir: filepath.Join(repo, "file_reservations"), Mode: ModeWarn}
	require.NoError(t, inst.Install(repo, HookPreCommit))

	origData, err := os.ReadFile(filepath.Join(hooksDir, "pre-commit.orig"))
	require.NoError(t, err)
	assert.Equal(t, existing, string(origData))
}

func TestInstallIsIdempotent(t *testing.T) {
	repo := initRepo(t)
	inst := &Installer{ReservationsDir: filepath.Join(repo, "file_reservations"), Mode: ModeBlock}
	require.NoError(t, inst.Install(repo, HookPreCommit))
	require.NoError(t, inst.Install(repo, HookPreCommit))

	hooksDir := filepath.Join(repo, ".git", "hooks")
	_, err := os.Stat(filepath.Join(hooksDir, "pre-commit.orig"))
	assert.True(t, os.IsNotExist(err), "a chain runner installed over itself should never be preserved as .orig")
}

func TestUninstallRestoresOriginalHook(t *testing.T) {
	repo := initRepo(t)
	hooksDir := filepath.Join(repo, ".git", "hooks")
	require.NoError(t, os.MkdirAll(hooksDir, 0o755))
	existing := "#!/bin/sh\necho pre-existing hook\n"
	require.NoError(t, os.WriteFile(filepath.Join(hooksDir, "pre-commit"), []byte(existing), 0o755))

	inst := &Installer{ReservationsDir: filepath.Join(repo, "file_reservations"), Mode: ModeBlock}
	require.NoError(t, inst.Install(repo, HookPreCommit))
	require.NoError(t, inst.Uninstall(repo, HookPreCommit))

	restored, err := os.ReadFile(filepath.Join(hooksDir, "pre-commit"))
	require.NoError(t, err)
	assert.Equal(t, existing, string(restored))

	_, err = os.Stat(filepath.Join(hooksDir, "pre-commit.orig"))
	assert.True(t, os.IsNotExist(err))
}

func TestUninstallRemovesChainRunnerWhenNoOriginalExisted(t *testing.T) {
	repo := initRepo(t)
	inst := &Installer{ReservationsDir: filepath.Join(repo, "file_reservations"), Mode: ModeBlock}
	require.NoError(t, inst.Install(repo, HookPreCommit))
	require.NoError(t, inst.Uninstall(repo, HookPreCommit))

	_, err := os.Stat(filepath.Join(repo, ".git", "hooks", "pre-commit"))
	assert.True(t, os.IsNotExist(err))
}

func TestPluginScriptBlockModeExitsNonZero(t *testing.T) {
	script := PluginScript(HookPreCommit, "/tmp/reservations", ModeBlock)
	assert.Contains(t, script, "exit 1")
}

func TestPluginScriptWarnModeNeverExits(t *testing.T) {
	script := PluginScript(HookPreCommit, "/tmp/reservations", ModeWarn)
	assert.NotContains(t, script, "exit 1")
}
