package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/designjam/countdown/go/internal/clock"
	"github.com/designjam/countdown/go/internal/countdown"
	"github.com/designjam/countdown/go/internal/phase"
)

// Service turns clock snapshots into viewer events. HandleSnapshot is meant
// to be the clock runner's sink.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	publisher         PhasePublisher
	publishTimeout    time.Duration

	mu       sync.RWMutex
	latest   clock.Snapshot
	ready    bool
	resolved *clock.Snapshot // last snapshot that had a config
	loading  bool
	stopped  bool // guards publishing.Add against Stop

	publishing sync.WaitGroup
}

type Config struct {
	ConnectionConfig ConnectionConfig
	PublishTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		PublishTimeout:   5 * time.Second,
	}
}

// NewService creates the gateway. publisher may be nil.
func NewService(config Config, publisher PhasePublisher) *Service {
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = DefaultConfig().PublishTimeout
	}
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	s := &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		publisher:         publisher,
		publishTimeout:    config.PublishTimeout,
	}
	s.stateHandler = NewStateHandler(s)
	return s
}

// Start runs the connection manager until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("publishing", s.publisher != nil).Msg("starting competition gateway")

	s.connectionManager.Start(ctx)

	log.Info().Msg("competition gateway shutting down")
	return s.Stop()
}

// Stop refuses new publishes, waits for in-flight ones and closes the
// publisher. Calls after the first are no-ops.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.publishing.Wait()
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Close()
}

// Latest returns the last snapshot handed to the gateway.
func (s *Service) Latest() (clock.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ready
}

// HandleSnapshot broadcasts a tick and, when the phase or boundary moved
// since the last resolved snapshot, a PhaseChanged event.
func (s *Service) HandleSnapshot(snap clock.Snapshot) {
	s.mu.Lock()
	prev := s.resolved
	wasLoading := s.loading
	s.latest = snap
	s.ready = true
	s.loading = snap.Loading
	if !snap.Loading {
		resolved := snap
		s.resolved = &resolved
	}
	s.mu.Unlock()

	s.broadcast(EventTypeCountdownTick, snap.Now, tickPayload(snap))

	if snap.Loading {
		if !wasLoading {
			log.Warn().Time("since", snap.Now).Msg("competition config unavailable")
			s.broadcast(EventTypeConfigUnavailable, snap.Now, ConfigUnavailablePayload{Since: snap.Now})
		}
		return
	}

	if prev != nil && prev.Phase == snap.Phase && prev.Boundary() == snap.Boundary() {
		return
	}

	change := PhaseChangedPayload{
		Phase:     snap.Phase,
		Boundary:  snap.Boundary(),
		Label:     snap.Label,
		Target:    snap.Target(),
		ChangedAt: snap.Now,
	}
	if prev != nil {
		change.Previous = prev.Phase
		change.PreviousBoundary = prev.Boundary()
	}

	if prev != nil && phase.Order(*snap.Status) < phase.Order(*prev.Status) {
		log.Warn().
			Str("previous", string(change.Previous)).
			Str("state", string(change.Phase)).
			Msg("competition phase moved backwards, timings were edited")
	}

	log.Info().
		Str("previous", string(change.Previous)).
		Str("state", string(change.Phase)).
		Str("boundary", string(change.Boundary)).
		Dur("remaining", countdown.Remaining(change.Target, snap.Now)).
		Msg("competition phase changed")

	event := s.broadcast(EventTypePhaseChanged, snap.Now, change)
	if event != nil && s.publisher != nil {
		s.publish(event, change)
	}
}

func (s *Service) broadcast(eventType EventType, at time.Time, payload interface{}) *Event {
	event, err := NewEvent(eventType, at, payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to build event")
		return nil
	}
	s.connectionManager.Broadcast(event)
	return event
}

// publish hands the event to the publisher without blocking the caller.
// After Stop the change is only broadcast.
func (s *Service) publish(event *Event, change PhaseChangedPayload) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		log.Debug().Str("state", string(change.Phase)).Msg("gateway stopped, phase change not published")
		return
	}
	s.publishing.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.publishing.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
		defer cancel()

		if err := s.publisher.PublishPhaseChange(ctx, event, change); err != nil {
			log.Error().
				Err(err).
				Str("state", string(change.Phase)).
				Msg("failed to publish phase change")
		}
	}()
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("competition gateway routes registered")
}

func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
