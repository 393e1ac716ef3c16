package history

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/wangshicheng1995/phonetemp/internal/errors"
	"github.com/wangshicheng1995/phonetemp/internal/logger"
	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

// Service wraps the active Store backend and degrades transparently: durable
// sqlite first, then in-memory, then a discard-only terminal mode. Callers see
// the same Store interface throughout; only IsDurable exposes the mode.
type Service struct {
	cfg Config

	mu      sync.Mutex
	backend Store
	durable bool

	healthStop chan struct{}
	healthDone chan struct{}
}

// Open initializes the history service. It never fails: a durable-backend
// initialization error drops the service into in-memory mode and is logged.
func Open(cfg Config) *Service {
	s := &Service{cfg: cfg}

	if err := cfg.Validate(); err != nil {
		logger.Warn().Err(err).Msg("Invalid history config, using discard-only store")
		s.backend = noopStore{}
		return s
	}

	if sqlite, err := newSQLiteStore(cfg); err == nil {
		s.backend = sqlite
		s.durable = true
		logger.Info().Str("path", cfg.DBPath).Msg("History store opened")
	} else {
		logger.Warn().Err(err).Msg("Durable history store unavailable, falling back to memory")
		s.backend = newMemoryStore(cfg)
	}

	return s
}

// IsDurable reports whether records are currently written to the durable
// backend.
func (s *Service) IsDurable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durable
}

func (s *Service) store() Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend
}

func (s *Service) Append(ctx context.Context, state thermal.Level, at time.Time, label string) error {
	return s.store().Append(ctx, state, at, label)
}

func (s *Service) Query(ctx context.Context, r TimeRange) ([]Record, error) {
	return s.store().Query(ctx, r)
}

func (s *Service) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	return s.store().Prune(ctx, olderThan)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store().Count(ctx)
}

func (s *Service) LastRecordTime(ctx context.Context) (time.Time, bool, error) {
	return s.store().LastRecordTime(ctx)
}

// Export writes all records in the range as a JSON array with stable field
// names (timestamp, state, device_label).
func (s *Service) Export(ctx context.Context, r TimeRange, w io.Writer) error {
	errFactory := errors.New()

	records, err := s.Query(ctx, r)
	if err != nil {
		return errFactory.Wrap(ErrExportFailed, err)
	}

	type exportRecord struct {
		Timestamp   string `json:"timestamp"`
		State       string `json:"state"`
		DeviceLabel string `json:"device_label"`
	}

	out := make([]exportRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, exportRecord{
			Timestamp:   rec.Timestamp.UTC().Format(time.RFC3339Nano),
			State:       rec.State.String(),
			DeviceLabel: rec.DeviceLabel,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return errFactory.Wrap(ErrExportFailed, err)
	}

	return nil
}

// StartHealthCheck launches the periodic backend probe. When the durable
// backend stops responding the service re-initializes it, migrating any
// records accumulated in the memory fallback. Idempotent.
func (s *Service) StartHealthCheck() {
	s.mu.Lock()
	if s.healthStop != nil {
		s.mu.Unlock()
		return
	}
	s.healthStop = make(chan struct{})
	s.healthDone = make(chan struct{})
	stop, done := s.healthStop, s.healthDone
	s.mu.Unlock()

	interval := s.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = defaultHealthCheckInterval
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.checkHealth()
			}
		}
	}()
}

// StopHealthCheck stops the probe goroutine. Idempotent.
func (s *Service) StopHealthCheck() {
	s.mu.Lock()
	stop, done := s.healthStop, s.healthDone
	s.healthStop, s.healthDone = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *Service) checkHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.mu.Lock()
	backend := s.backend
	durable := s.durable
	s.mu.Unlock()

	if durable {
		sqlite, ok := backend.(*sqliteStore)
		if !ok {
			return
		}
		if err := sqlite.ping(ctx); err == nil {
			return
		}
		logger.Warn().Msg("History store unreachable, degrading to memory")
		s.mu.Lock()
		s.backend = newMemoryStore(s.cfg)
		s.durable = false
		s.mu.Unlock()
		if err := sqlite.Close(); err != nil {
			logger.Debug().Err(err).Msg("Failed to close unhealthy store")
		}
		return
	}

	// Degraded: attempt to re-initialize the durable backend. A config that
	// never validated stays in discard-only mode; an empty DB path would
	// otherwise open an unnamed temporary database and report it as durable.
	if err := s.cfg.Validate(); err != nil {
		return
	}

	logger.Info().Msg("Attempting history store re-initialization")
	sqlite, err := newSQLiteStore(s.cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("History store re-initialization failed")
		return
	}

	s.mu.Lock()
	old := s.backend
	s.backend = sqlite
	s.durable = true
	s.mu.Unlock()

	if mem, ok := old.(*memoryStore); ok {
		migrated := 0
		for _, rec := range mem.drain() {
			if err := sqlite.Append(ctx, rec.State, rec.Timestamp, rec.DeviceLabel); err == nil {
				migrated++
			}
		}
		if migrated > 0 {
			logger.Info().Int("records", migrated).Msg("Migrated fallback records to durable store")
		}
	}

	logger.Info().Msg("History store re-initialized")
}

func (s *Service) Close() error {
	s.StopHealthCheck()
	return s.store().Close()
}
