package history

import (
	"context"
	"sync"
	"time"

	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

// memoryStore is the best-effort in-memory fallback used when the durable
// backend cannot be initialized. Semantics match sqliteStore.
type memoryStore struct {
	interval time.Duration
	mu       sync.Mutex
	records  []Record
	now      func() time.Time
}

func newMemoryStore(cfg Config) *memoryStore {
	return &memoryStore{
		interval: cfg.SamplingInterval,
		now:      time.Now,
	}
}

func (s *memoryStore) Append(_ context.Context, state thermal.Level, at time.Time, label string) error {
	if err := validateTimestamp(at, s.now()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.records); n > 0 {
		last := s.records[n-1]
		if last.State == state && at.Sub(last.Timestamp) < s.interval {
			return nil
		}
	}

	// Insert sorted by timestamp; appends are almost always in order.
	rec := Record{
		Timestamp:   at,
		State:       state,
		StateCode:   state.String(),
		DeviceLabel: label,
	}
	i := len(s.records)
	for i > 0 && s.records[i-1].Timestamp.After(at) {
		i--
	}
	s.records = append(s.records, Record{})
	copy(s.records[i+1:], s.records[i:])
	s.records[i] = rec

	return nil
}

func (s *memoryStore) Query(_ context.Context, r TimeRange) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, rec := range s.records {
		if r.contains(rec.Timestamp) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memoryStore) Prune(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.records)
	if n == 0 {
		return 0, nil
	}

	kept := s.records[:0]
	deleted := 0
	for i, rec := range s.records {
		if i == n-1 || !rec.Timestamp.Before(olderThan) {
			kept = append(kept, rec)
		} else {
			deleted++
		}
	}
	s.records = kept

	return deleted, nil
}

func (s *memoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *memoryStore) LastRecordTime(_ context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return time.Time{}, false, nil
	}
	return s.records[len(s.records)-1].Timestamp, true, nil
}

// drain returns all records and empties the store. Used when migrating the
// fallback's contents into a re-initialized durable backend.
func (s *memoryStore) drain() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.records
	s.records = nil
	return out
}

func (s *memoryStore) Close() error {
	return nil
}

// noopStore is the terminal fallback: appends are accepted and discarded.
// Reads behave as an empty store.
type noopStore struct{}

func (noopStore) Append(context.Context, thermal.Level, time.Time, string) error { return nil }

func (noopStore) Query(context.Context, TimeRange) ([]Record, error) { return nil, nil }

func (noopStore) Prune(context.Context, time.Time) (int, error) { return 0, nil }

func (noopStore) Count(context.Context) (int, error) { return 0, nil }

func (noopStore) LastRecordTime(context.Context) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (noopStore) Close() error { return nil }
