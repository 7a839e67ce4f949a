package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/spf13/cobra"
)

var anchorsCmd = &cobra.Command{
	Use:   "anchors",
	Short: "Inspect and repair the anchor store",
	Long: `List, inspect, draw and remove stored anchors. These commands work on raw
records and bypass permissions; rm does not clean up adjacency.`,
}

var anchorsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored anchors",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, b, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		records, err := loadAll(cmd, b.Store)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "No anchors stored.")
			return nil
		}
		s := tui.NewStyler(out)
		for _, rec := range records {
			fmt.Fprintf(out, "%s  %-6s %s %s\n", s.ID(string(rec.ID)), rec.Kind, s.Kind(rec.Type), s.Faint("root="+string(rec.RootID)))
		}
		return nil
	},
}

var anchorsInspectCmd = &cobra.Command{
	Use:   "inspect <anchor-id>",
	Short: "Print an anchor record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := domain.ParseID(args[0])
		if err != nil {
			return err
		}
		_, _, b, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		rec, err := b.Store.Get(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to load anchor %s: %w", id, err)
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var anchorsRmCmd = &cobra.Command{
	Use:   "rm <anchor-id>...",
	Short: "Remove one or more anchors",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]domain.ID, 0, len(args))
		for _, arg := range args {
			id, err := domain.ParseID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		_, _, b, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.Store.Commit(cmd.Context(), ports.Batch{Remove: ids}); err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed anchor '%s'\n", id)
		}
		return nil
	},
}

var anchorsGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the stored graph as a Mermaid flowchart",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, b, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		records, err := loadAll(cmd, b.Store)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(records, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(anchorsCmd)
	anchorsCmd.AddCommand(anchorsLsCmd)
	anchorsCmd.AddCommand(anchorsInspectCmd)
	anchorsCmd.AddCommand(anchorsRmCmd)
	anchorsCmd.AddCommand(anchorsGraphCmd)
}

// loadAll reads every stored record. Records that fail to load are reported
// and skipped.
func loadAll(cmd *cobra.Command, store ports.AnchorStore) ([]*domain.Record, error) {
	ids, err := store.List(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to list anchors: %w", err)
	}
	records := make([]*domain.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := store.Get(cmd.Context(), id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", id, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
