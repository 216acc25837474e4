package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/ppiankov/originpoint/internal/controller"
	"github.com/ppiankov/originpoint/internal/history"
	"github.com/ppiankov/originpoint/internal/render"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse completed interactions",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		entries, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(os.Stderr, "No interactions recorded yet\n")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tWHEN\tMODULE\tQUERY")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Module, truncate(e.Query, 60))
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recorded interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		entry, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var snap controller.Snapshot
		if err := json.Unmarshal(entry.Payload, &snap); err != nil {
			return fmt.Errorf("decode interaction %s: %w", entry.ID, err)
		}

		fmt.Fprintf(os.Stderr, "Recorded %s\n\n", entry.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if outJSON != "" {
			var buf bytes.Buffer
			if err := render.JSON(&buf, snap); err != nil {
				return err
			}
			return os.WriteFile(outJSON, buf.Bytes(), 0o644)
		}
		return render.NewTerminal(cmd.OutOrStdout(), "auto", 100).Render(snap)
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to list")
	historyShowCmd.Flags().StringVar(&outJSON, "json", "", "write the interaction as JSON to this path instead")

	historyCmd.AddCommand(historyListCmd, historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory opens the configured history store without building a backend
func openHistory() (*history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dir := cfg.History.Dir
	if dir == "" {
		dir = filepath.Join(xdg.DataHome, "originpoint")
	}
	return history.Open(dir)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}
