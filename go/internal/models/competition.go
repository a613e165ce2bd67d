package models

import (
	"time"
)

// CompetitionPhase defines which window of the competition is active.
type CompetitionPhase string

const (
	PhaseWaitingForSubmissions CompetitionPhase = "waiting_for_submissions"
	PhaseSubmissionsOpen       CompetitionPhase = "submissions_open"
	PhaseVotingOpen            CompetitionPhase = "voting_open"
	PhaseCompetitionOver       CompetitionPhase = "competition_over"
)

func (p CompetitionPhase) String() string {
	return string(p)
}

// Boundary names the config timestamp a countdown is aimed at.
type Boundary string

const (
	BoundaryNone            Boundary = ""
	BoundarySubmissionStart Boundary = "submission_start"
	BoundarySubmissionEnd   Boundary = "submission_end"
	BoundaryVotingStart     Boundary = "voting_start"
	BoundaryVotingEnd       Boundary = "voting_end"
)

// CompetitionConfig is the four-timestamp record served by GET /api/config.
// Every field is an ISO-8601 string or null.
type CompetitionConfig struct {
	SubmissionStart *string `json:"submission_start"`
	SubmissionEnd   *string `json:"submission_end"`
	VotingStart     *string `json:"voting_start"`
	VotingEnd       *string `json:"voting_end"`
}

// ParsedConfig holds the config boundaries as instants. A nil field is
// either absent or unparseable upstream.
type ParsedConfig struct {
	SubmissionStart *time.Time
	SubmissionEnd   *time.Time
	VotingStart     *time.Time
	VotingEnd       *time.Time
}

// CompetitionStatus is the derived view of a config at one instant.
type CompetitionStatus struct {
	Phase           CompetitionPhase  `json:"state"`
	Config          CompetitionConfig `json:"config"`
	CountdownTarget *time.Time        `json:"target_date"`
	CountdownLabel  string            `json:"label"`
	Boundary        Boundary          `json:"boundary,omitempty"`
}

// CountdownTime is the remaining time to a countdown target.
type CountdownTime struct {
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
	Expired bool  `json:"is_expired"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 date-time. Values without an offset are
// read as UTC. The second return is false for empty or malformed input.
func ParseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders t the way the config endpoint does.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// TimestampPtr is a helper for building configs from instants.
func TimestampPtr(t time.Time) *string {
	s := FormatTimestamp(t)
	return &s
}

func parseOptional(value *string) *time.Time {
	if value == nil {
		return nil
	}
	t, ok := ParseTimestamp(*value)
	if !ok {
		return nil
	}
	return &t
}

// Parsed converts the raw strings. Unparseable values come back as nil so
// callers treat them the same as missing ones.
func (c CompetitionConfig) Parsed() ParsedConfig {
	return ParsedConfig{
		SubmissionStart: parseOptional(c.SubmissionStart),
		SubmissionEnd:   parseOptional(c.SubmissionEnd),
		VotingStart:     parseOptional(c.VotingStart),
		VotingEnd:       parseOptional(c.VotingEnd),
	}
}

// ConfigFromTimes builds a config from optional instants.
func ConfigFromTimes(p ParsedConfig) CompetitionConfig {
	format := func(t *time.Time) *string {
		if t == nil {
			return nil
		}
		return TimestampPtr(*t)
	}
	return CompetitionConfig{
		SubmissionStart: format(p.SubmissionStart),
		SubmissionEnd:   format(p.SubmissionEnd),
		VotingStart:     format(p.VotingStart),
		VotingEnd:       format(p.VotingEnd),
	}
}
