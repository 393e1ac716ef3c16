package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wangshicheng1995/phonetemp/internal/config"
	"github.com/wangshicheng1995/phonetemp/internal/logger"
)

func newPruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete history records past the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())

			store := openStore(cfg)
			defer store.Close()

			if olderThan <= 0 {
				olderThan = time.Duration(cfg.RetentionDays) * 24 * time.Hour
			}

			deleted, err := store.Prune(context.Background(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d records\n", deleted)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Delete records older than this age (defaults to the retention window)")

	return cmd
}
