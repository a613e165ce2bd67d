package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/designjam/countdown/go/internal/clock"
	"github.com/designjam/countdown/go/internal/countdown"
	"github.com/designjam/countdown/go/internal/models"
	"github.com/designjam/countdown/go/internal/phase"
)

// Event is the envelope sent to viewers and published to JetStream.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type EventType string

const (
	EventTypeCountdownTick     EventType = "CountdownTick"
	EventTypePhaseChanged      EventType = "PhaseChanged"
	EventTypeConfigUnavailable EventType = "ConfigUnavailable"
)

// CountdownTickPayload is sent once per evaluation.
type CountdownTickPayload struct {
	Phase     models.CompetitionPhase `json:"state"`
	Boundary  models.Boundary         `json:"boundary,omitempty"`
	Label     string                  `json:"label"`
	Target    *time.Time              `json:"target_date"`
	Countdown models.CountdownTime    `json:"countdown"`
	Display   string                  `json:"display"`
	Loading   bool                    `json:"is_loading"`

	// submissions closed, voting not yet open
	AwaitingVoting bool `json:"awaiting_voting"`
}

// PhaseChangedPayload is sent when the phase or the countdown boundary moves.
// Previous is empty for the first resolved snapshot.
type PhaseChangedPayload struct {
	Previous         models.CompetitionPhase `json:"previous_state,omitempty"`
	PreviousBoundary models.Boundary         `json:"previous_boundary,omitempty"`
	Phase            models.CompetitionPhase `json:"state"`
	Boundary         models.Boundary         `json:"boundary,omitempty"`
	Label            string                  `json:"label"`
	Target           *time.Time              `json:"target_date"`
	ChangedAt        time.Time               `json:"changed_at"`
}

// DedupKey identifies a transition independently of which gateway saw it.
func (p PhaseChangedPayload) DedupKey() string {
	target := "none"
	if p.Target != nil {
		target = fmt.Sprintf("%d", p.Target.Unix())
	}
	return fmt.Sprintf("%s.%s.%s", p.Phase, p.Boundary, target)
}

type ConfigUnavailablePayload struct {
	Since time.Time `json:"since"`
}

func NewEvent(eventType EventType, at time.Time, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: at.UTC(),
		Data:      data,
	}, nil
}

func tickPayload(snap clock.Snapshot) CountdownTickPayload {
	return CountdownTickPayload{
		Phase:     snap.Phase,
		Boundary:  snap.Boundary(),
		Label:     snap.Label,
		Target:    snap.Target(),
		Countdown: snap.Countdown,
		Display:   countdown.Format(snap.Countdown),
		Loading:   snap.Loading,

		AwaitingVoting: snap.Status != nil && phase.AwaitingVoting(*snap.Status),
	}
}

// ParseEventPayload decodes event data into the payload struct for its type.
func ParseEventPayload(event *Event) (interface{}, error) {
	switch event.Type {
	case EventTypeCountdownTick:
		var payload CountdownTickPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePhaseChanged:
		var payload PhaseChangedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeConfigUnavailable:
		var payload ConfigUnavailablePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
}
