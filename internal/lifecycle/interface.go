package lifecycle

import (
	"time"

	"github.com/wangshicheng1995/phonetemp/internal/liveactivity"
	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

// State is the coordinator's position in its lifecycle state machine.
type State int

const (
	Idle State = iota
	Monitoring
	LiveStatusStarting
	LiveStatusActive
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Monitoring:
		return "monitoring"
	case LiveStatusStarting:
		return "live_status_starting"
	case LiveStatusActive:
		return "live_status_active"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Signal is an application-lifecycle event fed into the coordinator.
type Signal int

const (
	WillResignActive Signal = iota
	DidEnterBackground
	WillEnterForeground
	DidBecomeActive
)

func (s Signal) String() string {
	switch s {
	case WillResignActive:
		return "will_resign_active"
	case DidEnterBackground:
		return "did_enter_background"
	case WillEnterForeground:
		return "will_enter_foreground"
	case DidBecomeActive:
		return "did_become_active"
	default:
		return "unknown"
	}
}

// Session tracks the coordinator's belief about the live status surface.
// The coordinator is the sole owner; a stale active flag never survives the
// reconciliation check performed on Start.
type Session struct {
	Active             bool
	Handle             liveactivity.SessionHandle
	LastPublishedState thermal.Level
	LastUpdateTime     time.Time
}

// Sampler is the coordinator's view of the thermal sampler.
type Sampler interface {
	Current() thermal.Level
	Transitions() <-chan thermal.Transition
	Start()
	Stop()
}

// RetryPolicy makes the live-status start retry behavior explicit and
// testable. Attempts counts the initial try.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

type Config struct {
	DeviceLabel      string
	PublisherTimeout time.Duration
	Retry            RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		PublisherTimeout: 5 * time.Second,
		Retry: RetryPolicy{
			Attempts: 2,
			Backoff:  500 * time.Millisecond,
		},
	}
}
