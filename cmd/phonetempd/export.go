package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/wangshicheng1995/phonetemp/internal/config"
	"github.com/wangshicheng1995/phonetemp/internal/history"
	"github.com/wangshicheng1995/phonetemp/internal/logger"
)

func newExportCmd() *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded history as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())

			store := openStore(cfg)
			defer store.Close()

			r := history.FullRange()
			if since > 0 {
				r.From = time.Now().Add(-since)
			}

			return store.Export(context.Background(), r, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "Only export records newer than this age (e.g. 24h)")

	return cmd
}
