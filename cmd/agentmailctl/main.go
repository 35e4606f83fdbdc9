// Command agentmailctl is the operator-facing companion to agentmail-mcp.
//
// It performs the handful of operations an operator or CI job needs to run
// outside of an MCP client: installing or removing the pre-commit/pre-push
// reservation guard in a git worktree, forcing a single reservation sweep
// without waiting for the janitor's schedule, and inspecting a project's
// on-disk archive (its lock owner and mirrored reservation files) without a
// database connection.
package main

import (
	"fmt"
	"os"

	"github.com/agentmail/agentmail-mcp/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "agentmailctl",
	Short: "Operate an agentmail-mcp deployment from outside an MCP client",
	Long: `agentmailctl performs the operator-side tasks that don't belong behind
the MCP tool surface: installing the commit-time reservation guard into a
git worktree, running a reservation sweep on demand, and inspecting a
project's archive directly.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to agentmail.toml (overrides AGENTMAIL_CONFIG and the default search path)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
