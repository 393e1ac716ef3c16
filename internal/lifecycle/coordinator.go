package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/wangshicheng1995/phonetemp/internal/errors"
	"github.com/wangshicheng1995/phonetemp/internal/history"
	"github.com/wangshicheng1995/phonetemp/internal/liveactivity"
	"github.com/wangshicheng1995/phonetemp/internal/logger"
	"github.com/wangshicheng1995/phonetemp/internal/notify"
	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

const (
	signalBuffer     = 8
	sideEffectBuffer = 16
)

// Coordinator subscribes to sampler transitions and app-lifecycle signals and
// drives the history store, the live status surface and the notification
// channel. The history append for each transition runs on the event loop,
// strictly before the side effects are enqueued; live-status and notification
// deliveries run on their own worker goroutines so a slow publisher never
// delays the next transition's append and a failure in one side-effect
// channel never blocks the other.
type Coordinator struct {
	cfg        Config
	sampler    Sampler
	store      history.Store
	publisher  liveactivity.Publisher
	dispatcher notify.Dispatcher

	mu         sync.Mutex
	state      State
	foreground bool
	session    Session
	running    bool
	signals    chan Signal
	liveCh     chan thermal.Level
	notifyCh   chan thermal.Transition
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewCoordinator(
	cfg Config,
	sampler Sampler,
	store history.Store,
	publisher liveactivity.Publisher,
	dispatcher notify.Dispatcher,
) *Coordinator {
	if cfg.PublisherTimeout <= 0 {
		cfg.PublisherTimeout = DefaultConfig().PublisherTimeout
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = DefaultConfig().Retry
	}

	return &Coordinator{
		cfg:        cfg,
		sampler:    sampler,
		store:      store,
		publisher:  publisher,
		dispatcher: dispatcher,
		state:      Idle,
		foreground: true,
	}
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the coordinator's live status session belief.
func (c *Coordinator) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Start begins monitoring: the sampler is started, any pre-existing live
// status session left behind by a previous process is reconciled, and the
// event loop is launched. Idempotent.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.signals = make(chan Signal, signalBuffer)
	c.liveCh = make(chan thermal.Level, sideEffectBuffer)
	c.notifyCh = make(chan thermal.Transition, sideEffectBuffer)
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	c.sampler.Start()
	c.reconcile()

	c.mu.Lock()
	if c.state == Idle {
		c.state = Monitoring
	}
	signals, liveCh, notifyCh, stopCh := c.signals, c.liveCh, c.notifyCh, c.stopCh
	c.mu.Unlock()

	c.wg.Add(3)
	go c.loop(signals, stopCh)
	go c.liveWorker(liveCh, stopCh)
	go c.notifyWorker(notifyCh, stopCh)

	logger.Info().Str("state", c.State().String()).Msg("Lifecycle coordinator started")
}

// Stop tears everything down: the sampler timer is cancelled, any live status
// session is ended, and the event loop exits. Safe to call multiple times.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.state = Stopping
	stopCh := c.stopCh
	c.mu.Unlock()

	c.sampler.Stop()
	close(stopCh)
	c.wg.Wait()

	c.endLiveStatus()

	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()

	logger.Info().Msg("Lifecycle coordinator stopped")
}

// HandleSignal feeds an application-lifecycle signal into the event loop.
// Signals received while the coordinator is not running are dropped.
func (c *Coordinator) HandleSignal(sig Signal) {
	c.mu.Lock()
	running, signals := c.running, c.signals
	c.mu.Unlock()

	if !running {
		return
	}

	select {
	case signals <- sig:
	default:
		logger.Warn().Str("signal", sig.String()).Msg("Signal buffer full, dropping")
	}
}

// reconcile resolves the coordinator's session belief against the publisher's
// actual state, so a session that outlived the previous process is adopted
// instead of a redundant start being issued.
func (c *Coordinator) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublisherTimeout)
	defer cancel()

	sessions, err := c.publisher.ListActiveSessions(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Session reconciliation failed")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(sessions) == 0 {
		c.session = Session{}
		return
	}

	handle := sessions[0]
	c.session = Session{
		Active:             true,
		Handle:             handle,
		LastPublishedState: handle.State,
		LastUpdateTime:     handle.UpdatedAt,
	}
	c.state = LiveStatusActive
	logger.Info().Str("session", handle.ID).Msg("Adopted pre-existing live status session")
}

func (c *Coordinator) loop(signals chan Signal, stopCh chan struct{}) {
	defer c.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case tr := <-c.sampler.Transitions():
			c.handleTransition(tr)
		case sig := <-signals:
			c.handleSignal(sig)
		}
	}
}

// liveWorker delivers live-status publications off the event loop.
func (c *Coordinator) liveWorker(states chan thermal.Level, stopCh chan struct{}) {
	defer c.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case state := <-states:
			c.publishLiveStatus(state)
		}
	}
}

// notifyWorker delivers notifications off the event loop.
func (c *Coordinator) notifyWorker(transitions chan thermal.Transition, stopCh chan struct{}) {
	defer c.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case tr := <-transitions:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublisherTimeout)
			err := c.dispatcher.Send(ctx, tr, true)
			cancel()

			if err != nil {
				if errors.HasCode(err, notify.ErrDenied) {
					logger.Debug().Msg("Notification permission denied, skipping")
				} else {
					logger.Warn().Err(err).Msg("Notification dispatch failed")
				}
			}
		}
	}
}

// handleTransition processes one canonical state change on the event loop.
// The history append always happens first; live-status and notification
// effects are enqueued to their workers afterwards so neither can stall the
// next transition's append.
func (c *Coordinator) handleTransition(tr thermal.Transition) {
	logger.Debug().
		Str("from", tr.From.String()).
		Str("to", tr.To.String()).
		Msg("Thermal transition")

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublisherTimeout)
	defer cancel()

	if err := c.store.Append(ctx, tr.To, time.Now(), c.cfg.DeviceLabel); err != nil {
		logger.Warn().Err(err).Msg("Failed to append history record")
	}

	c.mu.Lock()
	foreground := c.foreground
	liveCh, notifyCh := c.liveCh, c.notifyCh
	c.mu.Unlock()

	if foreground {
		return
	}

	select {
	case liveCh <- tr.To:
	default:
		logger.Warn().Str("state", tr.To.String()).Msg("Live status queue full, dropping")
	}
	select {
	case notifyCh <- tr:
	default:
		logger.Warn().Str("state", tr.To.String()).Msg("Notification queue full, dropping")
	}
}

// publishLiveStatus starts or updates the session for the given state.
// A state that was already published is skipped.
func (c *Coordinator) publishLiveStatus(state thermal.Level) {
	c.mu.Lock()
	active := c.session.Active
	published := c.session.LastPublishedState
	c.mu.Unlock()

	if !active {
		c.startLiveStatus(state)
		return
	}
	if published == state {
		return
	}
	c.updateLiveStatus(state)
}

func (c *Coordinator) handleSignal(sig Signal) {
	logger.Debug().Str("signal", sig.String()).Msg("App lifecycle signal")

	switch sig {
	case WillResignActive, DidEnterBackground:
		c.mu.Lock()
		c.foreground = false
		liveCh := c.liveCh
		c.mu.Unlock()

		// Publish the surface proactively with the current sampled state:
		// publishing windows may close shortly after backgrounding.
		select {
		case liveCh <- c.sampler.Current():
		default:
		}

	case WillEnterForeground, DidBecomeActive:
		c.mu.Lock()
		c.foreground = true
		c.mu.Unlock()

		// The live surface is a background-only convenience.
		c.endLiveStatus()
	}
}

// startLiveStatus attempts to start the live status session, applying the
// configured retry policy on the live worker. Failure is logged and leaves
// the coordinator in Monitoring.
func (c *Coordinator) startLiveStatus(state thermal.Level) {
	c.mu.Lock()
	if c.session.Active {
		c.mu.Unlock()
		return
	}
	c.state = LiveStatusStarting
	c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Retry.Attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(c.cfg.Retry.Backoff)
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublisherTimeout)
		handle, err := c.publisher.Start(ctx, state)
		cancel()

		if err == nil {
			c.mu.Lock()
			c.session = Session{
				Active:             true,
				Handle:             handle,
				LastPublishedState: state,
				LastUpdateTime:     time.Now(),
			}
			c.state = LiveStatusActive
			c.mu.Unlock()

			logger.Info().
				Str("session", handle.ID).
				Str("state", state.String()).
				Msg("Live status session started")
			return
		}
		lastErr = err
	}

	c.mu.Lock()
	c.state = Monitoring
	c.mu.Unlock()

	logger.Warn().Err(lastErr).Int("attempts", c.cfg.Retry.Attempts).Msg("Live status start failed")
}

// updateLiveStatus publishes a new state on the active session. A delayed
// update whose target no longer matches the current sampled state is dropped
// so a stale value never overwrites a newer one.
func (c *Coordinator) updateLiveStatus(state thermal.Level) {
	if c.sampler.Current() != state {
		logger.Debug().Str("state", state.String()).Msg("Dropping stale live status update")
		return
	}

	c.mu.Lock()
	handle := c.session.Handle
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublisherTimeout)
	defer cancel()

	if err := c.publisher.Update(ctx, handle, state); err != nil {
		if errors.HasCode(err, liveactivity.ErrSessionNotFound) {
			// The publisher no longer knows the session; drop our belief.
			c.mu.Lock()
			c.session = Session{}
			c.state = Monitoring
			c.mu.Unlock()
		}
		logger.Warn().Err(err).Msg("Live status update failed")
		return
	}

	c.mu.Lock()
	c.session.LastPublishedState = state
	c.session.LastUpdateTime = time.Now()
	c.mu.Unlock()
}

func (c *Coordinator) endLiveStatus() {
	c.mu.Lock()
	if !c.session.Active {
		c.mu.Unlock()
		return
	}
	handle := c.session.Handle
	c.session = Session{}
	if c.state == LiveStatusActive || c.state == LiveStatusStarting {
		c.state = Monitoring
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublisherTimeout)
	defer cancel()

	if err := c.publisher.End(ctx, handle); err != nil {
		logger.Warn().Err(err).Msg("Live status end failed")
		return
	}

	logger.Info().Str("session", handle.ID).Msg("Live status session ended")
}
