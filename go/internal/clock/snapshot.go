package clock

import (
	"time"

	"github.com/designjam/countdown/go/internal/countdown"
	"github.com/designjam/countdown/go/internal/models"
	"github.com/designjam/countdown/go/internal/phase"
)

// LabelLoading is shown while no config has been obtained yet.
const LabelLoading = "Loading..."

// Snapshot is one evaluation of the competition clock. Status is nil while
// the config is unavailable.
type Snapshot struct {
	Now       time.Time                 `json:"now"`
	Loading   bool                      `json:"is_loading"`
	Phase     models.CompetitionPhase   `json:"state"`
	Label     string                    `json:"label"`
	Countdown models.CountdownTime      `json:"countdown"`
	Status    *models.CompetitionStatus `json:"status"`
}

// Target is the instant the countdown is aimed at, if any.
func (s Snapshot) Target() *time.Time {
	if s.Status == nil {
		return nil
	}
	return s.Status.CountdownTarget
}

// Active reports whether the snapshot needs further ticks.
func (s Snapshot) Active() bool {
	return s.Target() != nil
}

// Boundary is the config field the countdown targets.
func (s Snapshot) Boundary() models.Boundary {
	if s.Status == nil {
		return models.BoundaryNone
	}
	return s.Status.Boundary
}

// Evaluate resolves the phase and the countdown from a single now sample.
// A nil config produces a loading snapshot with a zero countdown.
func Evaluate(config *models.CompetitionConfig, now time.Time) Snapshot {
	if config == nil {
		return Snapshot{
			Now:       now,
			Loading:   true,
			Phase:     models.PhaseWaitingForSubmissions,
			Label:     LabelLoading,
			Countdown: countdown.Tick(nil, now),
		}
	}

	status := phase.Resolve(*config, now)
	return Snapshot{
		Now:       now,
		Phase:     status.Phase,
		Label:     status.CountdownLabel,
		Countdown: countdown.Tick(status.CountdownTarget, now),
		Status:    &status,
	}
}
