package thermal

// Level is the canonical thermal state, totally ordered by severity.
type Level int

const (
	Normal Level = iota
	Fair
	Serious
	Critical
)

// String implements the Stringer interface
func (l Level) String() string {
	switch l {
	case Normal:
		return "normal"
	case Fair:
		return "fair"
	case Serious:
		return "serious"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// IsValid returns whether the level is one of the four canonical states.
func (l Level) IsValid() bool {
	return l >= Normal && l <= Critical
}

// LevelFromString parses a persisted level code. Unknown codes map to Normal
// so that records written by a newer version never escalate on replay.
func LevelFromString(code string) Level {
	switch code {
	case "normal":
		return Normal
	case "fair":
		return Fair
	case "serious":
		return Serious
	case "critical":
		return Critical
	default:
		return Normal
	}
}

// LevelFromRaw buckets a raw platform thermal level into a canonical Level.
// Unknown or future raw levels map to Normal: a false "normal" is less harmful
// than a false "critical".
func LevelFromRaw(raw int) Level {
	if raw < int(Normal) || raw > int(Critical) {
		return Normal
	}
	return Level(raw)
}

// Transition carries a single canonical state change.
type Transition struct {
	From Level
	To   Level
}

// RawSource reads the platform thermal level. Implementations must be safe to
// call from the sampler goroutine; a failed read returns an error and the
// sampler holds its last known state.
type RawSource interface {
	ReadRawLevel() (int, error)
}

// NotifyingSource is a RawSource that can additionally push change hints.
// The sampler treats a notification as a request to re-evaluate immediately;
// the poll path remains authoritative when no notifications arrive.
type NotifyingSource interface {
	RawSource
	Notifications() <-chan struct{}
}
