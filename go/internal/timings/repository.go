package timings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/designjam/countdown/go/internal/models"
	"github.com/designjam/countdown/go/internal/sqlutil"
)

const (
	selectConfigSQL = `
SELECT id, submission_start, submission_end, voting_start, voting_end
FROM configs
ORDER BY id
LIMIT 1`

	updateConfigSQL = `
UPDATE configs
SET submission_start = $2,
    submission_end   = $3,
    voting_start     = $4,
    voting_end       = $5,
    updated_at       = NOW()
WHERE id = $1`

	insertConfigSQL = `
INSERT INTO configs (submission_start, submission_end, voting_start, voting_end, show_leaderboard)
VALUES ($1, $2, $3, $4, FALSE)`
)

// DB is the slice of *pgxpool.Pool the repository needs.
type DB interface {
	sqlutil.Beginner
	querier
}

var _ DB = (*pgxpool.Pool)(nil)

// Repository reads and writes the single configs row.
type Repository struct {
	db            DB
	notifyChannel string
}

func NewRepository(db DB, notifyChannel string) *Repository {
	return &Repository{db: db, notifyChannel: notifyChannel}
}

// Load returns the stored timings. The bool is false when no row exists.
func (r *Repository) Load(ctx context.Context) (models.ParsedConfig, bool, error) {
	_, cfg, err := loadRow(ctx, r.db)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ParsedConfig{}, false, nil
	}
	if err != nil {
		return models.ParsedConfig{}, false, fmt.Errorf("failed to load timings: %w", err)
	}
	return cfg, true, nil
}

// Apply stores cfg and notifies listeners in the same transaction.
func (r *Repository) Apply(ctx context.Context, cfg models.ParsedConfig) error {
	args := []any{
		sqlutil.ToNullTime(cfg.SubmissionStart),
		sqlutil.ToNullTime(cfg.SubmissionEnd),
		sqlutil.ToNullTime(cfg.VotingStart),
		sqlutil.ToNullTime(cfg.VotingEnd),
	}

	return sqlutil.Run(ctx, r.db, func(tx pgx.Tx) error {
		id, _, err := loadRow(ctx, tx)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			_, err = tx.Exec(ctx, insertConfigSQL, args...)
			if err != nil {
				return fmt.Errorf("failed to insert timings: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to load timings: %w", err)
		default:
			_, err = tx.Exec(ctx, updateConfigSQL, append([]any{id}, args...)...)
			if err != nil {
				return fmt.Errorf("failed to update timings: %w", err)
			}
		}

		if r.notifyChannel != "" {
			if _, err := tx.Exec(ctx, "SELECT pg_notify($1, '')", r.notifyChannel); err != nil {
				return fmt.Errorf("failed to notify %s: %w", r.notifyChannel, err)
			}
		}
		return nil
	})
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadRow(ctx context.Context, q querier) (int64, models.ParsedConfig, error) {
	var id int64
	var submissionStart, submissionEnd, votingStart, votingEnd sql.NullTime
	err := q.QueryRow(ctx, selectConfigSQL).Scan(
		&id,
		&submissionStart,
		&submissionEnd,
		&votingStart,
		&votingEnd,
	)
	if err != nil {
		return 0, models.ParsedConfig{}, err
	}
	return id, models.ParsedConfig{
		SubmissionStart: sqlutil.FromNullTime(submissionStart),
		SubmissionEnd:   sqlutil.FromNullTime(submissionEnd),
		VotingStart:     sqlutil.FromNullTime(votingStart),
		VotingEnd:       sqlutil.FromNullTime(votingEnd),
	}, nil
}

// Summary renders the stored timings for CLI output.
func Summary(cfg models.ParsedConfig) string {
	format := func(t *time.Time) string {
		if t == nil {
			return "unset"
		}
		return models.FormatTimestamp(*t)
	}
	return fmt.Sprintf("submission_start=%s submission_end=%s voting_start=%s voting_end=%s",
		format(cfg.SubmissionStart), format(cfg.SubmissionEnd), format(cfg.VotingStart), format(cfg.VotingEnd))
}
