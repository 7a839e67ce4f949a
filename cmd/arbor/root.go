package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor is a graph-native walker runtime",
	Long: `Arbor persists per-tenant graphs of nodes and edges and runs walkers over them.
This command inspects anchor stores, serves engines over HTTP and runs the reference traversal.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "arbor.yaml", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().String("store", "", "Override the store driver (memory, file, bolt, badger, redis)")
	rootCmd.PersistentFlags().String("path", "", "Override the store path")
}

// loadConfig reads --config and applies the store overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if driver, _ := cmd.Flags().GetString("store"); driver != "" {
		cfg.Store.Driver = driver
	}
	if p, _ := cmd.Flags().GetString("path"); p != "" {
		cfg.Store.Path = p
	}
	return cfg, cfg.Validate()
}

// openBackend loads the configuration, the logger and the store.
func openBackend(cmd *cobra.Command) (*config.Config, *slog.Logger, *cli.Backend, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := cli.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := cli.OpenBackend(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, b, nil
}
