package history

import (
	"time"

	"github.com/wangshicheng1995/phonetemp/internal/errors"
)

const (
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/phonetemp/history.db"

	// DefaultRetention is the window after which records become eligible for
	// pruning.
	DefaultRetention = 7 * 24 * time.Hour

	// clockSkewTolerance bounds how far in the future an append timestamp may
	// lie before it is rejected.
	clockSkewTolerance = 30 * time.Second

	// maxRecordAge bounds how old an append timestamp may be.
	maxRecordAge = 365 * 24 * time.Hour

	defaultHealthCheckInterval = 60 * time.Second
)

type Config struct {
	DBPath              string
	SamplingInterval    time.Duration
	Retention           time.Duration
	HealthCheckInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		DBPath:              defaultDBPath,
		SamplingInterval:    2 * time.Second,
		Retention:           DefaultRetention,
		HealthCheckInterval: defaultHealthCheckInterval,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.SamplingInterval <= 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "sampling interval must be positive")
	}
	if c.Retention <= 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "retention must be positive")
	}
	return nil
}

// validateTimestamp enforces the data-integrity guard on append timestamps.
func validateTimestamp(at, now time.Time) error {
	errFactory := errors.New()
	if at.After(now.Add(clockSkewTolerance)) {
		return errFactory.WithData(ErrValidation, "timestamp in the future")
	}
	if at.Before(now.Add(-maxRecordAge)) {
		return errFactory.WithData(ErrValidation, "timestamp older than one year")
	}
	return nil
}
