package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the reference traversal",
	Long: `Builds root -> n1 -> n2 under a fresh tenant root in the configured store and
sends a visitor through it. The visitor logs every place it reaches.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, b, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		eng := cli.NewEngine(cfg, b, logger, observability.LogHooks(logger))
		if err := cli.DefineDemo(eng); err != nil {
			return err
		}

		skip, _ := cmd.Flags().GetString("skip")
		stopAt, _ := cmd.Flags().GetString("stop-at")
		demo, err := cli.RunDemo(cmd.Context(), eng, &cli.Visitor{Skip: skip, StopAt: stopAt})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		s := tui.NewStyler(out)
		fmt.Fprintf(out, "%s %s\n", s.Faint("root"), s.ID(demo.Root.String()))
		for i, name := range demo.Log {
			fmt.Fprintf(out, "%d. %s\n", i+1, s.Kind(name))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().String("skip", "", "Place the visitor ignores")
	demoCmd.Flags().String("stop-at", "", "Place where the visitor disengages")
}
