// Package phase derives the competition phase and countdown target from a
// config and the current time.
package phase

import (
	"time"

	"github.com/designjam/countdown/go/internal/models"
)

const (
	LabelSubmissionsOpenIn  = "Submissions open in"
	LabelSubmissionsCloseIn = "Submissions close in"
	LabelVotingBeginsIn     = "Voting begins in"
	LabelVotingEndsIn       = "Voting ends in"
	LabelCompetitionEnded   = "Competition ended"
)

type rule struct {
	boundary models.Boundary
	phase    models.CompetitionPhase
	label    string
	at       func(models.ParsedConfig) *time.Time
}

// Checked in order; the first boundary still ahead of now wins. The window
// between submission_end and voting_start deliberately reports
// SubmissionsOpen and is told apart only by its boundary.
var rules = []rule{
	{
		boundary: models.BoundarySubmissionStart,
		phase:    models.PhaseWaitingForSubmissions,
		label:    LabelSubmissionsOpenIn,
		at:       func(p models.ParsedConfig) *time.Time { return p.SubmissionStart },
	},
	{
		boundary: models.BoundarySubmissionEnd,
		phase:    models.PhaseSubmissionsOpen,
		label:    LabelSubmissionsCloseIn,
		at:       func(p models.ParsedConfig) *time.Time { return p.SubmissionEnd },
	},
	{
		boundary: models.BoundaryVotingStart,
		phase:    models.PhaseSubmissionsOpen,
		label:    LabelVotingBeginsIn,
		at:       func(p models.ParsedConfig) *time.Time { return p.VotingStart },
	},
	{
		boundary: models.BoundaryVotingEnd,
		phase:    models.PhaseVotingOpen,
		label:    LabelVotingEndsIn,
		at:       func(p models.ParsedConfig) *time.Time { return p.VotingEnd },
	},
}

// Resolve maps (config, now) to a status. Missing or unparseable boundaries
// count as already passed. It never fails.
func Resolve(config models.CompetitionConfig, now time.Time) models.CompetitionStatus {
	parsed := config.Parsed()
	for _, r := range rules {
		at := r.at(parsed)
		if at == nil || !now.Before(*at) {
			continue
		}
		target := *at
		return models.CompetitionStatus{
			Phase:           r.phase,
			Config:          config,
			CountdownTarget: &target,
			CountdownLabel:  r.label,
			Boundary:        r.boundary,
		}
	}

	return models.CompetitionStatus{
		Phase:          models.PhaseCompetitionOver,
		Config:         config,
		CountdownLabel: LabelCompetitionEnded,
		Boundary:       models.BoundaryNone,
	}
}

// AwaitingVoting reports whether submissions have closed but voting has not
// yet opened.
func AwaitingVoting(status models.CompetitionStatus) bool {
	return status.Phase == models.PhaseSubmissionsOpen && status.Boundary == models.BoundaryVotingStart
}

// Order returns the position of a status in the forward sequence of
// countdown windows, from 0 (waiting) to 4 (over).
func Order(status models.CompetitionStatus) int {
	for i, r := range rules {
		if r.boundary == status.Boundary && r.phase == status.Phase {
			return i
		}
	}
	return len(rules)
}
