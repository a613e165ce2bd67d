// Package clock drives the competition countdown: it polls the config
// provider, resolves the phase and emits a snapshot once per tick.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/designjam/countdown/go/internal/models"
)

// Provider supplies the competition config. CachedIfFresh must not block.
type Provider interface {
	Fetch(ctx context.Context) (models.CompetitionConfig, error)
	CachedIfFresh() (models.CompetitionConfig, bool)
}

// Sink receives every snapshot, on the runner goroutine.
type Sink func(Snapshot)

// Config holds the runner cadence.
type Config struct {
	TickInterval  time.Duration // cadence while a countdown target is active
	IdleInterval  time.Duration // re-check cadence once the competition is over
	RetryInterval time.Duration // re-check cadence while the config is unavailable
}

// DefaultConfig returns a one second tick, a ten second retry and a five
// minute idle re-check.
func DefaultConfig() Config {
	return Config{
		TickInterval:  time.Second,
		IdleInterval:  5 * time.Minute,
		RetryInterval: 10 * time.Second,
	}
}

// Runner re-evaluates the competition status on a fixed cadence.
type Runner struct {
	provider Provider
	sink     Sink
	clock    clockwork.Clock
	config   Config

	wake chan struct{}

	mu     sync.RWMutex
	latest Snapshot
	ready  bool
}

// NewRunner creates a runner. A nil clock means the real clock.
func NewRunner(provider Provider, sink Sink, config Config, clk clockwork.Clock) *Runner {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Second
	}
	if config.IdleInterval <= 0 {
		config.IdleInterval = DefaultConfig().IdleInterval
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultConfig().RetryInterval
	}
	if sink == nil {
		sink = func(Snapshot) {}
	}
	return &Runner{
		provider: provider,
		sink:     sink,
		clock:    clk,
		config:   config,
		wake:     make(chan struct{}, 1),
	}
}

// Wake forces an immediate re-evaluation, e.g. after the config changed.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Latest returns the most recent snapshot and whether one exists yet.
func (r *Runner) Latest() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.ready
}

// Run evaluates immediately and then keeps the countdown current until ctx
// is cancelled. Ticking stops while there is no target and resumes on Wake,
// after the retry interval while loading, or after the idle interval once
// the competition is over.
func (r *Runner) Run(ctx context.Context) error {
	log.Info().
		Dur("tick_interval", r.config.TickInterval).
		Dur("idle_interval", r.config.IdleInterval).
		Dur("retry_interval", r.config.RetryInterval).
		Msg("competition clock started")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("competition clock shutting down")
			return nil
		}

		snap := r.step(ctx)
		if snap.Active() {
			var stopped bool
			if snap, stopped = r.poll(ctx); stopped {
				log.Info().Msg("competition clock shutting down")
				return nil
			}
		}

		if stopped := r.idle(ctx, r.waitFor(snap)); stopped {
			log.Info().Msg("competition clock shutting down")
			return nil
		}
	}
}

// poll ticks until the target disappears and returns the snapshot that had
// none. It reports true if ctx ended.
func (r *Runner) poll(ctx context.Context) (Snapshot, bool) {
	ticker := r.clock.NewTicker(r.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Snapshot{}, true
		case <-r.wake:
		case <-ticker.Chan():
		}

		if snap := r.step(ctx); !snap.Active() {
			log.Debug().Bool("loading", snap.Loading).Msg("countdown target cleared, polling stopped")
			return snap, false
		}
	}
}

func (r *Runner) waitFor(snap Snapshot) time.Duration {
	if snap.Loading {
		return r.config.RetryInterval
	}
	return r.config.IdleInterval
}

// idle waits for a wake-up or d. It reports true if ctx ended.
func (r *Runner) idle(ctx context.Context, d time.Duration) bool {
	timer := r.clock.NewTimer(d)
	defer stopAndDrainTimer(timer)

	select {
	case <-ctx.Done():
		return true
	case <-r.wake:
		return false
	case <-timer.Chan():
		return false
	}
}

// step samples now once after the config is in hand and evaluates with it.
func (r *Runner) step(ctx context.Context) Snapshot {
	config, ok := r.loadConfig(ctx)

	var snap Snapshot
	if ok {
		snap = Evaluate(&config, r.clock.Now())
	} else {
		snap = Evaluate(nil, r.clock.Now())
	}

	r.mu.Lock()
	r.latest = snap
	r.ready = true
	r.mu.Unlock()

	r.sink(snap)
	return snap
}

func (r *Runner) loadConfig(ctx context.Context) (models.CompetitionConfig, bool) {
	if config, ok := r.provider.CachedIfFresh(); ok {
		return config, true
	}

	config, err := r.provider.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("competition config unavailable")
		}
		return models.CompetitionConfig{}, false
	}
	return config, true
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
