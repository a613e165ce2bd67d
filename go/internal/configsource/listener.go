package configsource

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// DefaultNotifyChannel is the channel update_timings notifies on.
const DefaultNotifyChannel = "competition_config_updated"

type ListenerConfig struct {
	DatabaseURL   string // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string
	PingInterval  time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel: DefaultNotifyChannel,
		PingInterval:  90 * time.Second,
	}
}

// Invalidator is what a notification triggers.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Listener invalidates the provider whenever the configs row changes.
type Listener struct {
	listener *pq.Listener
	target   Invalidator
	cfg      ListenerConfig
}

func NewListener(target Invalidator, cfg ListenerConfig) (*Listener, error) {
	if cfg.NotifyChannel == "" {
		cfg.NotifyChannel = DefaultNotifyChannel
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultListenerConfig().PingInterval
	}

	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for config notifications")

	return &Listener{
		listener: l,
		target:   target,
		cfg:      cfg,
	}, nil
}

// Start blocks until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("config listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			// nil means the connection was re-established; anything may
			// have changed meanwhile
			if note == nil {
				log.Warn().Msg("config listener reconnected")
			} else {
				log.Debug().Str("channel", note.Channel).Msg("config change notification")
			}
			l.target.Invalidate(ctx)
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.listener.Close()
}
