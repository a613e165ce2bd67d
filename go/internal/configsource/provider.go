package configsource

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/designjam/countdown/go/internal/models"
)

// Cache is a shared second-level store, e.g. Redis, consulted before the
// source.
type Cache interface {
	Get(ctx context.Context) (models.CompetitionConfig, bool, error)
	Set(ctx context.Context, config models.CompetitionConfig, ttl time.Duration) error
	Delete(ctx context.Context) error
}

// ProviderConfig tunes the freshness window.
type ProviderConfig struct {
	FreshFor   time.Duration // how long a fetched config is served without refetching
	RetryAfter time.Duration // pause before hitting a failing source again
}

func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		FreshFor:   5 * time.Minute,
		RetryAfter: 10 * time.Second,
	}
}

// Provider caches the config in memory for FreshFor. When the source fails
// it keeps serving the last good config. Concurrent fetches share one trip
// to the cache and source, and no lock is held while it is in flight.
type Provider struct {
	source Source
	cache  Cache
	clock  clockwork.Clock
	cfg    ProviderConfig
	group  singleflight.Group

	mu         sync.RWMutex
	config     *models.CompetitionConfig
	fetchedAt  time.Time
	failedAt   time.Time
	lastErr    error
	generation uint64 // bumped by Invalidate; results from older fetches are dropped

	listenersMu sync.Mutex
	listeners   []func()
}

// NewProvider builds a provider. cache and clk may be nil.
func NewProvider(source Source, cache Cache, cfg ProviderConfig, clk clockwork.Clock) *Provider {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	defaults := DefaultProviderConfig()
	if cfg.FreshFor <= 0 {
		cfg.FreshFor = defaults.FreshFor
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = defaults.RetryAfter
	}
	return &Provider{
		source: source,
		cache:  cache,
		clock:  clk,
		cfg:    cfg,
	}
}

// CachedIfFresh returns the in-memory config if it is within the freshness
// window. It never does I/O.
func (p *Provider) CachedIfFresh() (models.CompetitionConfig, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.freshLocked()
}

func (p *Provider) freshLocked() (models.CompetitionConfig, bool) {
	if p.config == nil {
		return models.CompetitionConfig{}, false
	}
	if p.clock.Since(p.fetchedAt) >= p.cfg.FreshFor {
		return models.CompetitionConfig{}, false
	}
	return *p.config, true
}

// Fetch returns a fresh config, going to the shared cache and then the
// source when the in-memory copy has gone stale. Callers that arrive while a
// fetch is in flight wait for its result, bound to the first caller's ctx.
func (p *Provider) Fetch(ctx context.Context) (models.CompetitionConfig, error) {
	p.mu.RLock()
	if config, ok := p.freshLocked(); ok {
		p.mu.RUnlock()
		return config, nil
	}
	if !p.failedAt.IsZero() && p.clock.Since(p.failedAt) < p.cfg.RetryAfter {
		defer p.mu.RUnlock()
		return p.staleLocked(p.lastErr)
	}
	gen := p.generation
	p.mu.RUnlock()

	v, err, _ := p.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return p.refresh(ctx, gen)
	})
	if err != nil {
		return models.CompetitionConfig{}, err
	}
	return v.(models.CompetitionConfig), nil
}

func (p *Provider) refresh(ctx context.Context, gen uint64) (models.CompetitionConfig, error) {
	config, fromCache, err := p.load(ctx)

	p.mu.Lock()
	if p.generation != gen {
		p.mu.Unlock()
		log.Debug().Msg("config invalidated during fetch, result not cached")
		if err != nil {
			return models.CompetitionConfig{}, fmt.Errorf("failed to load competition config: %w", err)
		}
		return config, nil
	}
	if err != nil && ctx.Err() != nil {
		// the caller gave up; that says nothing about the source
		defer p.mu.Unlock()
		if p.config != nil {
			return *p.config, nil
		}
		return models.CompetitionConfig{}, fmt.Errorf("failed to load competition config: %w", err)
	}
	if err != nil {
		p.failedAt = p.clock.Now()
		p.lastErr = err
		defer p.mu.Unlock()
		return p.staleLocked(err)
	}
	p.storeLocked(config)
	fetchedAt := p.fetchedAt
	p.mu.Unlock()

	if p.cache != nil && !fromCache {
		if err := p.cache.Set(ctx, config, p.cfg.FreshFor); err != nil {
			log.Warn().Err(err).Msg("failed to write config to shared cache")
		}
	}

	log.Debug().
		Time("fetched_at", fetchedAt).
		Dur("fresh_for", p.cfg.FreshFor).
		Bool("shared_cache", fromCache).
		Msg("competition config refreshed")

	return config, nil
}

// load does the I/O for a refresh. It must be called without p.mu held.
func (p *Provider) load(ctx context.Context) (models.CompetitionConfig, bool, error) {
	if p.cache != nil {
		config, ok, err := p.cache.Get(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read config from shared cache")
		} else if ok {
			return config, true, nil
		}
	}

	config, err := p.source.Fetch(ctx)
	return config, false, err
}

func (p *Provider) storeLocked(config models.CompetitionConfig) {
	p.config = &config
	p.fetchedAt = p.clock.Now()
	p.failedAt = time.Time{}
	p.lastErr = nil
}

func (p *Provider) staleLocked(err error) (models.CompetitionConfig, error) {
	if p.config != nil {
		log.Warn().
			Err(err).
			Time("fetched_at", p.fetchedAt).
			Msg("serving stale competition config")
		return *p.config, nil
	}
	return models.CompetitionConfig{}, fmt.Errorf("failed to load competition config: %w", err)
}

// Invalidate drops the cached config everywhere so the next Fetch goes to
// the source, then notifies subscribers.
func (p *Provider) Invalidate(ctx context.Context) {
	p.mu.Lock()
	p.config = nil
	p.fetchedAt = time.Time{}
	p.failedAt = time.Time{}
	p.lastErr = nil
	p.generation++
	p.mu.Unlock()

	if p.cache != nil {
		if err := p.cache.Delete(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to clear shared config cache")
		}
	}

	log.Info().Msg("competition config invalidated")

	p.listenersMu.Lock()
	listeners := append([]func(){}, p.listeners...)
	p.listenersMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// OnInvalidate registers fn to run after every Invalidate.
func (p *Provider) OnInvalidate(fn func()) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.listeners = append(p.listeners, fn)
}
