package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/designjam/countdown/go/internal/clock"
	"github.com/designjam/countdown/go/internal/countdown"
	"github.com/designjam/countdown/go/internal/models"
)

// SnapshotSource exposes the most recent clock evaluation.
type SnapshotSource interface {
	Latest() (clock.Snapshot, bool)
}

// CountdownResponse is the body of GET /api/countdown.
type CountdownResponse struct {
	Phase     models.CompetitionPhase `json:"state"`
	Label     string                  `json:"label"`
	Display   string                  `json:"display"`
	Countdown models.CountdownTime    `json:"countdown"`
	Target    *time.Time              `json:"target_date"`
	Loading   bool                    `json:"is_loading"`
	AsOf      time.Time               `json:"as_of"`
}

// StateHandler serves the clock state over plain HTTP for clients that do
// not hold a websocket open.
type StateHandler struct {
	snapshots SnapshotSource
}

func NewStateHandler(snapshots SnapshotSource) *StateHandler {
	return &StateHandler{
		snapshots: snapshots,
	}
}

// HandleGetStatus handles GET /api/status.
func (h *StateHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, ok := h.snapshots.Latest()
	if !ok {
		http.Error(w, "Clock not started", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, snap)
}

// HandleGetCountdown handles GET /api/countdown.
func (h *StateHandler) HandleGetCountdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, ok := h.snapshots.Latest()
	if !ok {
		http.Error(w, "Clock not started", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, CountdownResponse{
		Phase:     snap.Phase,
		Label:     snap.Label,
		Display:   countdown.Format(snap.Countdown),
		Countdown: snap.Countdown,
		Target:    snap.Target(),
		Loading:   snap.Loading,
		AsOf:      snap.Now,
	})
}

func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.HandleGetStatus)
	mux.HandleFunc("/api/countdown", h.HandleGetCountdown)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
