package thermal

import (
	"sync"
	"time"

	"github.com/wangshicheng1995/phonetemp/internal/logger"
)

const transitionBuffer = 16

// Sampler polls a RawSource on a fixed interval and funnels both the poll path
// and the push-notification path through a single evaluation point, so a state
// change is never processed twice. Transitions are emitted strictly after the
// internal state has been updated.
type Sampler struct {
	source   RawSource
	interval time.Duration

	mu      sync.Mutex
	current Level
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	transitions chan Transition
}

// NewSampler creates a sampler over the given source. The initial state is
// read eagerly so Current is meaningful before Start; a failed initial read
// leaves the state at Normal.
func NewSampler(source RawSource, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	s := &Sampler{
		source:      source,
		interval:    interval,
		transitions: make(chan Transition, transitionBuffer),
	}

	if raw, err := source.ReadRawLevel(); err == nil {
		s.current = LevelFromRaw(raw)
	}

	return s
}

// Current returns the last-sampled canonical state. Never blocks.
func (s *Sampler) Current() Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Transitions returns the channel on which canonical state changes are
// delivered, one per change, in emission order.
func (s *Sampler) Transitions() <-chan Transition {
	return s.transitions
}

// Start begins periodic sampling. Calling Start while already running is a
// no-op.
func (s *Sampler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	var notify <-chan struct{}
	if ns, ok := s.source.(NotifyingSource); ok {
		notify = ns.Notifications()
	}

	go s.loop(stopCh, doneCh, notify)

	logger.Debug().Dur("interval", s.interval).Msg("Thermal sampler started")
}

// Stop cancels the periodic timer. Idempotent; no further transitions are
// emitted after Stop returns.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	logger.Debug().Msg("Thermal sampler stopped")
}

func (s *Sampler) loop(stopCh, doneCh chan struct{}, notify <-chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.evaluate()
		case _, ok := <-notify:
			if !ok {
				notify = nil
				continue
			}
			s.evaluate()
		}
	}
}

// evaluate is the single funnel for both the timer tick and the push path.
// Last writer wins: whichever path reaches the lock first records the change
// and the other observes no delta.
func (s *Sampler) evaluate() {
	raw, err := s.source.ReadRawLevel()
	if err != nil {
		// Hold last known state and retry on the next tick.
		logger.Debug().Err(err).Msg("Thermal source read failed")
		return
	}

	level := LevelFromRaw(raw)

	s.mu.Lock()
	if level == s.current {
		s.mu.Unlock()
		return
	}
	from := s.current
	s.current = level
	s.mu.Unlock()

	select {
	case s.transitions <- Transition{From: from, To: level}:
	default:
		logger.Warn().
			Str("from", from.String()).
			Str("to", level.String()).
			Msg("Transition buffer full, dropping oldest")
		select {
		case <-s.transitions:
		default:
		}
		select {
		case s.transitions <- Transition{From: from, To: level}:
		default:
		}
	}
}
