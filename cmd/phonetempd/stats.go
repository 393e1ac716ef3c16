package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wangshicheng1995/phonetemp/internal/config"
	"github.com/wangshicheng1995/phonetemp/internal/history"
	"github.com/wangshicheng1995/phonetemp/internal/logger"
	"github.com/wangshicheng1995/phonetemp/internal/stats"
	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

func newStatsCmd() *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate statistics from recorded history",
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

			records, err := store.Query(context.Background(), r)
			if err != nil {
				return err
			}

			s := stats.Compute(records, time.Now())
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Records:         %d\n", s.TotalRecords)
			for level := thermal.Normal; level <= thermal.Critical; level++ {
				fmt.Fprintf(out, "  %-14s %d\n", level.String()+":", s.PerStateCounts[level])
			}
			fmt.Fprintf(out, "Most frequent:   %s\n", s.MostFrequentState)
			fmt.Fprintf(out, "Peak state:      %s\n", s.PeakState)
			fmt.Fprintf(out, "Longest normal:  %s\n", s.LongestNormalDuration.Round(time.Second))

			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "Only consider records newer than this age (e.g. 24h)")

	return cmd
}

func openStore(cfg *config.Config) *history.Service {
	return history.Open(history.Config{
		DBPath:           cfg.Database,
		SamplingInterval: time.Duration(cfg.Interval) * time.Second,
		Retention:        time.Duration(cfg.RetentionDays) * 24 * time.Hour,
	})
}
