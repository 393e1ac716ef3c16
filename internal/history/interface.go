package history

import (
	"context"
	"time"

	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

// Record is a single persisted state-change entry. Records are immutable after
// creation and owned exclusively by the store.
type Record struct {
	Timestamp   time.Time     `json:"timestamp"`
	State       thermal.Level `json:"-"`
	StateCode   string        `json:"state"`
	DeviceLabel string        `json:"device_label"`
}

// TimeRange bounds a query. Both ends are inclusive; zero values mean
// unbounded on that side.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// FullRange matches every record.
func FullRange() TimeRange {
	return TimeRange{}
}

func (r TimeRange) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Store is the persistence abstraction for state-change history.
// Implementations serialize writes; reads never observe partial records.
type Store interface {
	// Append inserts a record, coalescing it into the previous record when the
	// state is unchanged and less than the sampling interval has elapsed.
	// Timestamps beyond clock-skew tolerance in the future or older than one
	// year are rejected with ErrValidation.
	Append(ctx context.Context, state thermal.Level, at time.Time, label string) error

	// Query returns records within the range, ordered by timestamp ascending.
	Query(ctx context.Context, r TimeRange) ([]Record, error)

	// Prune deletes records older than the given instant, always keeping the
	// single most recent record overall. Returns the number deleted.
	Prune(ctx context.Context, olderThan time.Time) (int, error)

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int, error)

	// LastRecordTime returns the timestamp of the most recent record.
	// The bool is false when the store is empty.
	LastRecordTime(ctx context.Context) (time.Time, bool, error)

	Close() error
}
