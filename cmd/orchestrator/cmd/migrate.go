package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gtmcore/orchestrator/internal/checkpoint"
	"github.com/gtmcore/orchestrator/internal/config"
	"github.com/gtmcore/orchestrator/internal/core"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending checkpoint schema migrations",
	Long: `Open the checkpoint store, applying any pending schema migrations,
and report the schema version the store is at once it is open.

Fails with exit code 4 if the database was written by a newer build
than this binary knows how to read.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return newExitError(2, fmt.Errorf("loading config: %w", err))
	}

	store, err := checkpoint.Open(cfg.Store.SQLitePath)
	if err != nil {
		var de *core.DomainError
		if errors.As(err, &de) && de.Code == "SCHEMA_MISMATCH" {
			return newExitError(4, err)
		}
		return newExitError(3, fmt.Errorf("opening checkpoint store: %w", err))
	}
	defer store.Close()

	version, err := store.SchemaVersion(context.Background())
	if err != nil {
		return newExitError(3, fmt.Errorf("reading schema version: %w", err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "checkpoint store %q is at schema version %d (current: %d)\n",
		cfg.Store.SQLitePath, version, checkpoint.CurrentSchemaVersion)
	return nil
}
