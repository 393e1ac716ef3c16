package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wangshicheng1995/phonetemp/internal/errors"
	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

// sqliteStore is the durable Store backend. Writes are serialized through a
// mutex; reads run on separate connections and see committed records only.
type sqliteStore struct {
	db       *sql.DB
	interval time.Duration
	mu       sync.Mutex
	now      func() time.Time
}

func newSQLiteStore(cfg Config) (*sqliteStore, error) {
	errFactory := errors.New()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{
		db:       db,
		interval: cfg.SamplingInterval,
		now:      time.Now,
	}, nil
}

func (s *sqliteStore) Append(ctx context.Context, state thermal.Level, at time.Time, label string) error {
	errFactory := errors.New()

	if err := validateTimestamp(at, s.now()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastMilli int64
	var lastState string
	err := s.db.QueryRowContext(ctx, `
        SELECT timestamp, state FROM history
        ORDER BY timestamp DESC, id DESC LIMIT 1
    `).Scan(&lastMilli, &lastState)

	switch {
	case err == nil:
		last := time.UnixMilli(lastMilli)
		if lastState == state.String() && at.Sub(last) < s.interval {
			// Coalesce: same state within the sampling interval.
			return nil
		}
	case errors.Is(err, sql.ErrNoRows):
		// First record.
	default:
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	if _, err := s.db.ExecContext(ctx, insertRecordSQL, at.UnixMilli(), state.String(), label); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (s *sqliteStore) Query(ctx context.Context, r TimeRange) ([]Record, error) {
	errFactory := errors.New()

	query := `SELECT timestamp, state, device_label FROM history`
	args := []any{}
	switch {
	case !r.From.IsZero() && !r.To.IsZero():
		query += ` WHERE timestamp >= ? AND timestamp <= ?`
		args = append(args, r.From.UnixMilli(), r.To.UnixMilli())
	case !r.From.IsZero():
		query += ` WHERE timestamp >= ?`
		args = append(args, r.From.UnixMilli())
	case !r.To.IsZero():
		query += ` WHERE timestamp <= ?`
		args = append(args, r.To.UnixMilli())
	}
	// Insertion order breaks timestamp ties so the transition sequence is
	// preserved exactly.
	query += ` ORDER BY timestamp ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var milli int64
		var stateCode, label string
		if err := rows.Scan(&milli, &stateCode, &label); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		records = append(records, Record{
			Timestamp:   time.UnixMilli(milli),
			State:       thermal.LevelFromString(stateCode),
			StateCode:   stateCode,
			DeviceLabel: label,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return records, nil
}

func (s *sqliteStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	// The most recent record is never pruned, however old it is.
	res, err := s.db.ExecContext(ctx, `
        DELETE FROM history
        WHERE timestamp < ?
          AND timestamp != (SELECT MAX(timestamp) FROM history)
    `, olderThan.UnixMilli())
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	return int(deleted), nil
}

func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&count); err != nil {
		return 0, errors.New().Wrap(ErrStorageAccess, err)
	}
	return count, nil
}

func (s *sqliteStore) LastRecordTime(ctx context.Context) (time.Time, bool, error) {
	var milli int64
	err := s.db.QueryRowContext(ctx, `
        SELECT timestamp FROM history ORDER BY timestamp DESC, id DESC LIMIT 1
    `).Scan(&milli)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.New().Wrap(ErrStorageAccess, err)
	}
	return time.UnixMilli(milli), true, nil
}

func (s *sqliteStore) ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.New().Wrap(ErrStorageUnavailable, err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	if err := s.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}
