package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pinmap/pinmap/internal/observability"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent geocode cache",
}

var cacheClearYes bool

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached geocode results",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cacheClearYes {
			return errors.New("--yes is required to clear the cache")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		deleted, err := db.ClearCache(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Deleted %d cached result(s)\n", deleted)
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cached geocode results",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		deleted, err := db.PruneCache(cmd.Context())
		if err != nil {
			return err
		}

		observability.CLILogger.Debug("Cache prune complete", zap.Int64("deleted", deleted))
		fmt.Printf("Pruned %d expired result(s)\n", deleted)
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().BoolVar(&cacheClearYes, "yes", false, "Confirm destructive clear")
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
