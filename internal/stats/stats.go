// Package stats derives aggregate statistics from history records. All
// functions are pure: the reference time is passed in explicitly and no clock
// is read internally.
package stats

import (
	"sort"
	"time"

	"github.com/wangshicheng1995/phonetemp/internal/history"
	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

// Stats is a derived value, recomputed on demand and never stored.
type Stats struct {
	TotalRecords          int
	PerStateCounts        map[thermal.Level]int
	MostFrequentState     thermal.Level
	PeakState             thermal.Level
	LongestNormalDuration time.Duration
}

// Compute aggregates a record set. Empty input yields zero stats with Normal
// defaults. A trailing run of Normal records is open-ended and measured
// against now.
//
// When two states have equal counts, the lower-severity state is reported as
// most frequent.
func Compute(records []history.Record, now time.Time) Stats {
	s := Stats{
		PerStateCounts:    make(map[thermal.Level]int, 4),
		MostFrequentState: thermal.Normal,
		PeakState:         thermal.Normal,
	}

	if len(records) == 0 {
		return s
	}

	sorted := make([]history.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	s.TotalRecords = len(sorted)
	for _, rec := range sorted {
		s.PerStateCounts[rec.State]++
	}

	best := -1
	for level := thermal.Normal; level <= thermal.Critical; level++ {
		count := s.PerStateCounts[level]
		if count > best {
			best = count
			s.MostFrequentState = level
		}
		if count > 0 {
			s.PeakState = level
		}
	}

	s.LongestNormalDuration = longestNormalRun(sorted, now)

	return s
}

// longestNormalRun returns the maximal contiguous span of Normal records.
// A closed run is measured from its first record to the non-Normal record
// that ends it; an open trailing run is measured to now.
func longestNormalRun(sorted []history.Record, now time.Time) time.Duration {
	var longest time.Duration
	var runStart time.Time
	inRun := false

	for _, rec := range sorted {
		if rec.State == thermal.Normal {
			if !inRun {
				runStart = rec.Timestamp
				inRun = true
			}
			continue
		}
		if inRun {
			if d := rec.Timestamp.Sub(runStart); d > longest {
				longest = d
			}
			inRun = false
		}
	}

	if inRun {
		if d := now.Sub(runStart); d > longest {
			longest = d
		}
	}

	return longest
}
