package main

import (
	"fmt"

	"github.com/agentmail/agentmail-mcp/internal/archiveset"
	"github.com/agentmail/agentmail-mcp/internal/guard"
	"github.com/spf13/cobra"
)

var (
	guardRepoRoot string
	guardHook     string
	guardMode     string
)

var installGuardCmd = &cobra.Command{
	Use:   "install-guard PROJECT_SLUG",
	Short: "Install the reservation guard into a git worktree's hooks",
	Long: `Install a chain-runner pre-commit or pre-push hook that blocks (or warns
on) commits touching a path another agent holds an active exclusive file
reservation on. Any pre-existing hook at the target path is preserved as
<hook>.orig and re-invoked by the chain runner.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstallGuard,
}

var uninstallGuardCmd = &cobra.Command{
	Use:   "uninstall-guard",
	Short: "Remove the reservation guard from a git worktree's hooks",
	Long:  `Remove the reservation-guard plugin, restoring any hook it preserved.`,
	Args:  cobra.NoArgs,
	RunE:  runUninstallGuard,
}

func init() {
	installGuardCmd.Flags().StringVar(&guardRepoRoot, "repo-root", "", "absolute path to the git worktree to install into (required)")
	installGuardCmd.Flags().StringVar(&guardHook, "hook", string(guard.HookPreCommit), "pre-commit or pre-push")
	installGuardCmd.Flags().StringVar(&guardMode, "mode", string(guard.ModeBlock), "block or warn")
	_ = installGuardCmd.MarkFlagRequired("repo-root")
	rootCmd.AddCommand(installGuardCmd)

	uninstallGuardCmd.Flags().StringVar(&guardRepoRoot, "repo-root", "", "absolute path to the git worktree to remove the hook from (required)")
	uninstallGuardCmd.Flags().StringVar(&guardHook, "hook", string(guard.HookPreCommit), "pre-commit or pre-push")
	_ = uninstallGuardCmd.MarkFlagRequired("repo-root")
	rootCmd.AddCommand(uninstallGuardCmd)
}

func runInstallGuard(cmd *cobra.Command, args []string) error {
	slug := args[0]
	hook, err := parseHook(guardHook)
	if err != nil {
		return err
	}
	mode, err := parseMode(guardMode)
	if err != nil {
		return err
	}

	archives := archiveset.New(cfg.Archive.StorageRoot)
	ar, err := archives.Open(slug)
	if err != nil {
		return fmt.Errorf("opening archive for %q: %w", slug, err)
	}

	inst := &guard.Installer{ReservationsDir: ar.ReservationsDir(), Mode: mode}
	if err := inst.Install(guardRepoRoot, hook); err != nil {
		return fmt.Errorf("installing guard: %w", err)
	}
	fmt.Printf("installed %s guard (%s mode) into %s\n", hook, mode, guardRepoRoot)
	return nil
}

func runUninstallGuard(cmd *cobra.Command, args []string) error {
	hook, err := parseHook(guardHook)
	if err != nil {
		return err
	}
	inst := &guard.Installer{}
	if err := inst.Uninstall(guardRepoRoot, hook); err != nil {
		return fmt.Errorf("uninstalling guard: %w", err)
	}
	fmt.Printf("uninstalled %s guard from %s\n", hook, guardRepoRoot)
	return nil
}

func parseHook(name string) (guard.Hook, error) {
	switch name {
	case "", string(guard.HookPreCommit):
		return guard.HookPreCommit, nil
	case string(guard.HookPrePush):
		return guard.HookPrePush, nil
	default:
		return "", fmt.Errorf("unknown hook %q, expected pre-commit or pre-push", name)
	}
}

func parseMode(name string) (guard.Mode, error) {
	switch name {
	case "", string(guard.ModeBlock):
		return guard.ModeBlock, nil
	case string(guard.ModeWarn):
		return guard.ModeWarn, nil
	default:
		return "", fmt.Errorf("unknown mode %q, expected block or warn", name)
	}
}
