package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wangshicheng1995/phonetemp/internal/config"
	"github.com/wangshicheng1995/phonetemp/internal/history"
	"github.com/wangshicheng1995/phonetemp/internal/lifecycle"
	"github.com/wangshicheng1995/phonetemp/internal/liveactivity"
	"github.com/wangshicheng1995/phonetemp/internal/logger"
	"github.com/wangshicheng1995/phonetemp/internal/notify"
	"github.com/wangshicheng1995/phonetemp/internal/pid"
	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

const (
	retentionSweepInterval = time.Hour
	shutdownTimeout        = 5 * time.Second
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDaemon()
		},
	}
}

// statusProvider adapts the sampler and store to the status feed.
type statusProvider struct {
	sampler *thermal.Sampler
	store   *history.Service
}

func (p statusProvider) CurrentState() thermal.Level {
	return p.sampler.Current()
}

func (p statusProvider) IsDurable() bool {
	return p.store.IsDurable()
}

func runDaemon() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	interval := time.Duration(cfg.Interval) * time.Second

	store := history.Open(history.Config{
		DBPath:              cfg.Database,
		SamplingInterval:    interval,
		Retention:           time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		HealthCheckInterval: 60 * time.Second,
	})
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close history store")
		}
	}()
	store.StartHealthCheck()

	source, cleanup, err := newSource(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	sampler := thermal.NewSampler(source, interval)

	hub := liveactivity.NewHub(
		cfg.Listen,
		filepath.Join(filepath.Dir(cfg.Database), "sessions.json"),
		statusProvider{sampler: sampler, store: store},
	)
	if cfg.Listen != "" {
		go func() {
			if err := hub.Run(); err != nil {
				logger.Warn().Err(err).Msg("Live status feed unavailable")
			}
		}()
	}

	var dispatcher notify.Dispatcher = notify.NoopDispatcher{}
	if cfg.WebhookURL != "" {
		webhook, err := notify.NewWebhookDispatcher(cfg.WebhookURL, cfg.DeviceLabel)
		if err != nil {
			return err
		}
		dispatcher = webhook
	}

	coordCfg := lifecycle.DefaultConfig()
	coordCfg.DeviceLabel = cfg.DeviceLabel
	coord := lifecycle.NewCoordinator(coordCfg, sampler, store, hub, dispatcher)
	coord.Start()
	defer coord.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, coord)

	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	sweep := time.NewTicker(retentionSweepInterval)
	defer sweep.Stop()

	logger.Info().
		Str("device", cfg.DeviceLabel).
		Str("source", cfg.Source).
		Int("interval_s", cfg.Interval).
		Msg("phonetempd monitoring")

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := hub.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Live status feed shutdown failed")
			}
			shutdownCancel()
			logger.Info().Msg("Exiting...")
			return nil
		case <-sweep.C:
			deleted, err := store.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				logger.Warn().Err(err).Msg("Retention sweep failed")
			} else if deleted > 0 {
				logger.Info().Int("deleted", deleted).Msg("Retention sweep pruned records")
			}
		}
	}
}

func newSource(cfg *config.Config) (thermal.RawSource, func(), error) {
	switch cfg.Source {
	case "nvml":
		source, err := thermal.NewNVMLSource()
		if err != nil {
			return nil, nil, err
		}
		return source, func() {
			if err := source.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to shut down NVML")
			}
		}, nil
	default:
		return thermal.NewSysfsSource(cfg.ThermalZone), func() {}, nil
	}
}

// handleSignals maps OS signals onto coordinator events: SIGUSR1 backgrounds
// the app, SIGUSR2 foregrounds it, SIGINT/SIGTERM terminate.
func handleSignals(cancel context.CancelFunc, coord *lifecycle.Coordinator) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)

	for sig := range sigs {
		switch sig {
		case syscall.SIGUSR1:
			coord.HandleSignal(lifecycle.WillResignActive)
			coord.HandleSignal(lifecycle.DidEnterBackground)
		case syscall.SIGUSR2:
			coord.HandleSignal(lifecycle.WillEnterForeground)
			coord.HandleSignal(lifecycle.DidBecomeActive)
		default:
			logger.Info().Msg("Received termination signal.")
			cancel()
			return
		}
	}
}
