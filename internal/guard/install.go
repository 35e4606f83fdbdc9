package guard

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// Installer installs and removes the chain-runner hook layout in a git
// worktree's hooks directory.
type Installer struct {
	ReservationsDir string
	Mode            Mode
}

// hooksDir resolves the effective hooks directory for repoRoot, honoring
// core.hooksPath if the repo has customized it.
func hooksDir(repoRoot string) (string, error) {
	cmd := exec.Command("git", "-C", repoRoot, "config", "--get", "core.hooksPath")
	out, err := cmd.Output()
	if err == nil {
		if path := strings.TrimSpace(string(out)); path != "" {
			if filepath.IsAbs(path) {
				return path, nil
			}
			return filepath.Join(repoRoot, path), nil
		}
	}
	return filepath.Join(repoRoot, ".git", "hooks"), nil
}

// Install sets up the chain-runner layout for hook in repoRoot: preserving
// any pre-existing non-chain-runner hook as <hook>.orig, writing the chain
// runner at .git/hooks/<hook>, and dropping the reservation-guard plugin
// into hooks.d/<hook>/50-agent-mail.sh (plus Windows .cmd/.ps1 shims).
func (inst *Installer) Install(repoRoot string, hook Hook) error {
	dir, err := hooksDir(repoRoot)
	if err != nil {
		return apperr.Wrap(apperr.OSError, err, "resolving git hooks directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.OSError, err, "creating hooks directory")
	}

	hookPath := filepath.Join(dir, string(hook))
	if existing, err := os.ReadFile(hookPath); err == nil {
		if !isOurChainRunner(string(existing)) {
			origPath := filepath.Join(dir, string(hook)+".orig")
			if _, err := os.Stat(origPath); os.IsNotExist(err) {
				if err := os.WriteFile(origPath, existing, 0o755); err != nil {
					return apperr.Wrap(apperr.OSError, err, "preserving existing hook as .orig")
				}
			}
		}
	}

	if err := os.WriteFile(hookPath, []byte(ChainRunnerScript(hook)), 0o755); err != nil {
		return apperr.Wrap(apperr.OSError, err, "writing chain runner")
	}

	chainDir := filepath.Join(dir, "hooks.d", string(hook))
	if err := os.MkdirAll(chainDir, 0o755); err != nil {
		return apperr.Wrap(apperr.OSError, err, "creating hook chain directory")
	}
	pluginPath := filepath.Join(chainDir, pluginFilename)
	if err := os.WriteFile(pluginPath, []byte(PluginScript(hook, inst.ReservationsDir, inst.Mode)), 0o755); err != nil {
		return apperr.Wrap(apperr.OSError, err, "writing reservation guard plugin")
	}

	cmdShim, ps1Shim := RenderWindowsShims(hook)
	if err := os.WriteFile(hookPath+".cmd", []byte(cmdShim), 0o755); err != nil {
		return apperr.Wrap(apperr.OSError, err, "writing windows cmd shim")
	}
	if err := os.WriteFile(hookPath+".ps1", []byte(ps1Shim), 0o755); err != nil {
		return apperr.Wrap(apperr.OSError, err, "writing windows ps1 shim")
	}

	return nil
}

// Uninstall removes the plugin and, if the chain directory is now empty,
// restores the preserved .orig hook (or removes the chain runner outright
// if there never was one).
func (inst *Installer) Uninstall(repoRoot string, hook Hook) error {
	dir, err := hooksDir(repoRoot)
	if err != nil {
		return apperr.Wrap(apperr.OSError, err, "resolving git hooks directory")
	}

	chainDir := filepath.Join(dir, "hooks.d", string(hook))
	pluginPath := filepath.Join(chainDir, pluginFilename)
	_ = os.Remove(pluginPath)

	remaining, _ := os.ReadDir(chainDir)
	if len(remaining) > 0 {
		return nil // other chained hooks still need the runner in place
	}
	_ = os.Remove(chainDir)

	hookPath := filepath.Join(dir, string(hook))
	origPath := hookPath + ".orig"
	if data, err := os.ReadFile(origPath); err == nil {
		if err := os.WriteFile(hookPath, data, 0o755); err != nil {
			return apperr.Wrap(apperr.OSError, err, "restoring original hook")
		}
		_ = os.Remove(origPath)
	} else {
		_ = os.Remove(hookPath)
	}
	_ = os.Remove(hookPath + ".cmd")
	_ = os.Remove(hookPath + ".ps1")
	return nil
}

func isOurChainRunner(content string) bool {
	return strings.Contains(content, "agentmail chain runner")
}
