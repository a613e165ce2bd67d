package configsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/designjam/countdown/go/internal/models"
	"github.com/designjam/countdown/go/internal/sqlutil"
)

const selectConfigSQL = `
SELECT submission_start, submission_end, voting_start, voting_end
FROM configs
ORDER BY id
LIMIT 1`

// PostgresSource reads the single row of the configs table.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Fetch(ctx context.Context) (models.CompetitionConfig, error) {
	var submissionStart, submissionEnd, votingStart, votingEnd sql.NullTime

	err := s.db.QueryRowContext(ctx, selectConfigSQL).Scan(
		&submissionStart,
		&submissionEnd,
		&votingStart,
		&votingEnd,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CompetitionConfig{}, ErrNoConfig
	}
	if err != nil {
		return models.CompetitionConfig{}, fmt.Errorf("failed to query config: %w", err)
	}

	return models.ConfigFromTimes(models.ParsedConfig{
		SubmissionStart: sqlutil.FromNullTime(submissionStart),
		SubmissionEnd:   sqlutil.FromNullTime(submissionEnd),
		VotingStart:     sqlutil.FromNullTime(votingStart),
		VotingEnd:       sqlutil.FromNullTime(votingEnd),
	}), nil
}
