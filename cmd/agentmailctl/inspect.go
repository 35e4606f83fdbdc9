package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/archiveset"
	"github.com/spf13/cobra"
)

var inspectArchiveCmd = &cobra.Command{
	Use:   "inspect-archive PROJECT_SLUG",
	Short: "Show a project's archive lock status and mirrored reservations",
	Long: `Read a project's git archive directly from disk — no database
connection required — and print whether its write lock is currently held
and which file reservations are mirrored into it.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectArchive,
}

func init() {
	rootCmd.AddCommand(inspectArchiveCmd)
}

func runInspectArchive(cmd *cobra.Command, args []string) error {
	slug := args[0]

	archives := archiveset.New(cfg.Archive.StorageRoot)
	ar, err := archives.Open(slug)
	if err != nil {
		return fmt.Errorf("opening archive for %q: %w", slug, err)
	}

	fmt.Printf("archive root: %s\n", ar.Root())

	if holderID, pid, acquiredAt, ok := ar.Lock().Owner(); ok {
		fmt.Printf("lock: held by %s (pid %d) since %s\n", holderID, pid, acquiredAt.Format(time.RFC3339))
	} else {
		fmt.Println("lock: free")
	}

	entries, err := os.ReadDir(ar.ReservationsDir())
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("reservations: none mirrored yet")
			return nil
		}
		return fmt.Errorf("reading reservations dir: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("reservations: none active")
		return nil
	}

	fmt.Println("reservations:")
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(ar.ReservationsDir(), e.Name()))
		if err != nil {
			fmt.Printf("  %s: <unreadable: %v>\n", e.Name(), err)
			continue
		}
		fmt.Printf("  --- %s ---\n%s\n", e.Name(), data)
	}
	return nil
}
