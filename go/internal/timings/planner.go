// Package timings builds and stores the competition schedule.
package timings

import (
	"fmt"
	"time"

	"github.com/designjam/countdown/go/internal/models"
)

// AutoPlan spaces the four boundaries period apart, the first one period
// after now.
func AutoPlan(now time.Time, period time.Duration) (models.ParsedConfig, error) {
	if period <= 0 {
		return models.ParsedConfig{}, ErrInvalidPeriod
	}
	submissionStart := now.Add(period)
	submissionEnd := submissionStart.Add(period)
	votingStart := submissionEnd.Add(period)
	votingEnd := votingStart.Add(period)

	return models.ParsedConfig{
		SubmissionStart: &submissionStart,
		SubmissionEnd:   &submissionEnd,
		VotingStart:     &votingStart,
		VotingEnd:       &votingEnd,
	}, nil
}

// Merge overlays the boundaries set in plan on top of existing.
func Merge(existing, plan models.ParsedConfig) models.ParsedConfig {
	merged := existing
	if plan.SubmissionStart != nil {
		merged.SubmissionStart = plan.SubmissionStart
	}
	if plan.SubmissionEnd != nil {
		merged.SubmissionEnd = plan.SubmissionEnd
	}
	if plan.VotingStart != nil {
		merged.VotingStart = plan.VotingStart
	}
	if plan.VotingEnd != nil {
		merged.VotingEnd = plan.VotingEnd
	}
	return merged
}

// Validate checks submission_start <= submission_end <= voting_start <=
// voting_end over the boundaries that are present.
func Validate(cfg models.ParsedConfig) error {
	ordered := []struct {
		name models.Boundary
		at   *time.Time
	}{
		{models.BoundarySubmissionStart, cfg.SubmissionStart},
		{models.BoundarySubmissionEnd, cfg.SubmissionEnd},
		{models.BoundaryVotingStart, cfg.VotingStart},
		{models.BoundaryVotingEnd, cfg.VotingEnd},
	}

	var prevName models.Boundary
	var prev *time.Time
	for _, b := range ordered {
		if b.at == nil {
			continue
		}
		if prev != nil && b.at.Before(*prev) {
			return fmt.Errorf("%w: %s (%s) is before %s (%s)", ErrOutOfOrder,
				b.name, models.FormatTimestamp(*b.at), prevName, models.FormatTimestamp(*prev))
		}
		prevName, prev = b.name, b.at
	}
	return nil
}

// ParseBoundary parses a command-line timestamp; empty means unset.
func ParseBoundary(name models.Boundary, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, ok := models.ParseTimestamp(value)
	if !ok {
		return nil, fmt.Errorf("invalid %s timestamp %q", name, value)
	}
	return &t, nil
}
