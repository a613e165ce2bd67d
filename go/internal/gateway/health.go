package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/designjam/countdown/go/internal/models"
)

type HealthStatus struct {
	Healthy           bool                    `json:"healthy"`
	LastSnapshot      time.Time               `json:"last_snapshot"`
	Phase             models.CompetitionPhase `json:"state,omitempty"`
	ConfigAvailable   bool                    `json:"config_available"`
	Connections       int                     `json:"connections"`
	DatabaseConnected *bool                   `json:"database_connected,omitempty"`
	NATSConnected     *bool                   `json:"nats_connected,omitempty"`
	Errors            []string                `json:"errors"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ConnectionReporter is satisfied by the JetStream publisher.
type ConnectionReporter interface {
	Connected() bool
}

// HealthChecker reports whether the clock is still producing snapshots and
// whether its optional backends are reachable.
type HealthChecker struct {
	service   *Service
	db        Pinger
	nats      ConnectionReporter
	clock     clockwork.Clock
	threshold time.Duration // max age of the latest snapshot
}

// NewHealthChecker builds a checker. db, nats and clk may be nil.
func NewHealthChecker(service *Service, db Pinger, nats ConnectionReporter, threshold time.Duration, clk clockwork.Clock) *HealthChecker {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &HealthChecker{
		service:   service,
		db:        db,
		nats:      nats,
		clock:     clk,
		threshold: threshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:     true,
		Connections: h.service.GetStats().TotalConnections,
		Errors:      []string{},
	}

	snap, ok := h.service.Latest()
	if !ok {
		status.Healthy = false
		status.Errors = append(status.Errors, "clock has not produced a snapshot")
	} else {
		status.LastSnapshot = snap.Now
		status.Phase = snap.Phase
		status.ConfigAvailable = !snap.Loading
		if !status.ConfigAvailable {
			status.Errors = append(status.Errors, "competition config unavailable")
		}
		if age := h.clock.Since(snap.Now); h.threshold > 0 && age > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no snapshot for %s", age.Round(time.Second)))
		}
	}

	if h.db != nil {
		connected := true
		if err := h.db.PingContext(ctx); err != nil {
			connected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		}
		status.DatabaseConnected = &connected
	}

	if h.nats != nil {
		connected := h.nats.Connected()
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
		status.NATSConnected = &connected
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode health status")
	}
}
